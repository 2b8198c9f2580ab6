package telegram

import (
	"strings"
	"testing"

	"dialpilot/pkg/config"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(config.TelegramConfig{}, nil); err == nil {
		t.Fatal("NewAdapter accepted empty token, want error")
	}
}

func TestSenderAllowedWithoutAllowList(t *testing.T) {
	t.Parallel()

	adapter, err := NewAdapter(config.TelegramConfig{Token: "123:abc"}, nil)
	if err != nil {
		t.Fatalf("NewAdapter error: %v", err)
	}

	if !adapter.senderAllowed("42") {
		t.Fatal("senderAllowed = false with empty allow list, want true")
	}
}

func TestSenderAllowedWithAllowList(t *testing.T) {
	t.Parallel()

	adapter, err := NewAdapter(config.TelegramConfig{Token: "123:abc", AllowFrom: []string{"100", " 200 "}}, nil)
	if err != nil {
		t.Fatalf("NewAdapter error: %v", err)
	}

	if !adapter.senderAllowed("100") {
		t.Fatal("senderAllowed(100) = false, want true")
	}
	if !adapter.senderAllowed("200") {
		t.Fatal("senderAllowed(200) = false, want true")
	}
	if adapter.senderAllowed("300") {
		t.Fatal("senderAllowed(300) = true, want false")
	}
}

func TestAllowFromSetIgnoresBlankEntries(t *testing.T) {
	t.Parallel()

	if set := allowFromSet([]string{"", "  "}); set != nil {
		t.Fatalf("allowFromSet = %v, want nil", set)
	}
	if set := allowFromSet(nil); set != nil {
		t.Fatalf("allowFromSet(nil) = %v, want nil", set)
	}
}

func TestPreviewText(t *testing.T) {
	t.Parallel()

	if got := previewText("  hello  "); got != "hello" {
		t.Fatalf("previewText = %q, want hello", got)
	}

	long := strings.Repeat("a", messagePreviewLimit+10)
	got := previewText(long)
	if len(got) != messagePreviewLimit+3 {
		t.Fatalf("preview length = %d, want %d", len(got), messagePreviewLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("preview missing ellipsis: %q", got)
	}
}
