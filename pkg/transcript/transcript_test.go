package transcript

import (
	"context"
	"strings"
	"testing"
	"time"

	"dialpilot/pkg/config"
)

func entryAt(at time.Time, role string, text string) Entry {
	return Entry{
		Platform:  "sms",
		Handle:    "+1555",
		Timestamp: at,
		Role:      role,
		Text:      text,
	}
}

func TestNewResolvesStrategies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		strategy string
	}{
		{strategy: ""},
		{strategy: "row_per_turn"},
		{strategy: "cell_merge"},
		{strategy: "dated"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run("strategy_"+tc.strategy, func(t *testing.T) {
			t.Parallel()

			sink, err := New(config.TranscriptConfig{Strategy: tc.strategy}, nil)
			if err != nil {
				t.Fatalf("New(%q) error: %v", tc.strategy, err)
			}
			if sink == nil {
				t.Fatal("New returned nil sink")
			}
		})
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	t.Parallel()

	if _, err := New(config.TranscriptConfig{Strategy: "carrier_pigeon"}, nil); err == nil {
		t.Fatal("New accepted unknown strategy, want error")
	}
}

func TestCellMergeKeepsOneRowPerSender(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	sink := NewCellMerge(store)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

	if err := sink.AppendTurn(ctx, entryAt(at, RoleUser, "hello")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}
	if err := sink.AppendTurn(ctx, entryAt(at.Add(time.Minute), RoleAssistant, "hi there")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	rows, err := store.Rows(ctx)
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	text := rows[0].Cells[3]
	if !strings.Contains(text, "User: hello") || !strings.Contains(text, "AI: hi there") {
		t.Fatalf("merged cell = %q, want both turns", text)
	}
	if strings.Index(text, "User: hello") > strings.Index(text, "AI: hi there") {
		t.Fatalf("merged cell out of order: %q", text)
	}
}

func TestCellMergeSeparatesSenders(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	sink := NewCellMerge(store)
	ctx := context.Background()
	at := time.Now()

	first := entryAt(at, RoleUser, "hello")
	second := entryAt(at, RoleUser, "hola")
	second.Handle = "+1666"

	if err := sink.AppendTurn(ctx, first); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}
	if err := sink.AppendTurn(ctx, second); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	rows, _ := store.Rows(ctx)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
}

func TestRowPerTurnInsertsFirstContactMarker(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	sink := NewRowPerTurn(store)
	ctx := context.Background()
	at := time.Now()

	if err := sink.AppendTurn(ctx, entryAt(at, RoleUser, "hello")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}
	if err := sink.AppendTurn(ctx, entryAt(at, RoleAssistant, "hi")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	rows, _ := store.Rows(ctx)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want marker + 2 turns", len(rows))
	}
	if rows[0].Cells[3] != "New conversation with +1555" {
		t.Fatalf("marker = %q", rows[0].Cells[3])
	}
	if rows[1].Cells[3] != "User: hello" {
		t.Fatalf("first turn = %q", rows[1].Cells[3])
	}
	if rows[2].Cells[3] != "AI: hi" {
		t.Fatalf("second turn = %q", rows[2].Cells[3])
	}
}

func TestRowPerTurnMarkerOncePerHandle(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	sink := NewRowPerTurn(store)
	ctx := context.Background()
	at := time.Now()

	for i := 0; i < 4; i++ {
		if err := sink.AppendTurn(ctx, entryAt(at, RoleUser, "again")); err != nil {
			t.Fatalf("AppendTurn error: %v", err)
		}
	}

	rows, _ := store.Rows(ctx)
	markers := 0
	for _, row := range rows {
		if strings.HasPrefix(row.Cells[3], "New conversation with") {
			markers++
		}
	}
	if markers != 1 {
		t.Fatalf("markers = %d, want 1", markers)
	}
}

func TestDatedSortNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	sink := NewDatedSort(store)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	if err := sink.AppendTurn(ctx, entryAt(base, RoleUser, "oldest")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}
	if err := sink.AppendTurn(ctx, entryAt(base.Add(2*time.Hour), RoleUser, "newest")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}
	if err := sink.AppendTurn(ctx, entryAt(base.Add(time.Hour), RoleUser, "middle")); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	rows, _ := store.Rows(ctx)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	got := []string{rows[0].Cells[3], rows[1].Cells[3], rows[2].Cells[3]}
	want := []string{"User: newest", "User: middle", "User: oldest"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidateRequiresIdentity(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	sink := NewRowPerTurn(store)

	entry := Entry{Timestamp: time.Now(), Role: RoleUser, Text: "hi"}
	if err := sink.AppendTurn(context.Background(), entry); err == nil {
		t.Fatal("AppendTurn accepted entry without identity, want error")
	}
}

func TestMemoryRowStoreUpdateMissingRow(t *testing.T) {
	t.Parallel()

	store := NewMemoryRowStore()
	err := store.Update(context.Background(), "missing", []string{"a"})
	if err != ErrRowNotFound {
		t.Fatalf("Update error = %v, want ErrRowNotFound", err)
	}
}
