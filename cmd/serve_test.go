package cmd

import (
	"context"
	"testing"

	channelpkg "dialpilot/pkg/channel"
	"dialpilot/pkg/config"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func TestEnabledAdaptersRequiresAtLeastOneChannel(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error when no channels are enabled")
	}
}

func TestEnabledAdaptersRejectsIncompleteChannelConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Channels.Twilio.Enabled = true

	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error for twilio channel without credentials")
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "twilio"}, testAdapter{name: "telnyx"}}
	if got := enabledChannelNames(adapters); got != "twilio,telnyx" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "twilio,telnyx")
	}
}

func TestResponderModeDefaults(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if got := responderMode(cfg); got != "conversation" {
		t.Fatalf("responderMode = %q, want conversation", got)
	}

	cfg.Responder.Mode = "oneshot"
	if got := responderMode(cfg); got != "oneshot" {
		t.Fatalf("responderMode = %q, want oneshot", got)
	}
}
