package openai

import (
	"errors"
	"testing"

	backendtypes "dialpilot/pkg/backend/types"
	"dialpilot/pkg/config"

	osdk "github.com/openai/openai-go/v2"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := New(&config.Config{}); err == nil {
		t.Fatal("New accepted empty API key, want error")
	}
}

func TestNewDefaultsModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &config.Config{}
	cfg.Providers.OpenAI.APIKey = "sk-test"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if client.model != defaultModel {
		t.Fatalf("model = %q, want %q", client.model, defaultModel)
	}
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   osdk.RunStatus
		want backendtypes.RunStatus
	}{
		{in: osdk.RunStatusQueued, want: backendtypes.RunStatusQueued},
		{in: osdk.RunStatusInProgress, want: backendtypes.RunStatusInProgress},
		{in: osdk.RunStatusCancelling, want: backendtypes.RunStatusInProgress},
		{in: osdk.RunStatusRequiresAction, want: backendtypes.RunStatusRequiresAction},
		{in: osdk.RunStatusCompleted, want: backendtypes.RunStatusCompleted},
		{in: osdk.RunStatusCancelled, want: backendtypes.RunStatusCancelled},
		{in: osdk.RunStatusFailed, want: backendtypes.RunStatusFailed},
		{in: osdk.RunStatusExpired, want: backendtypes.RunStatusFailed},
		{in: osdk.RunStatusIncomplete, want: backendtypes.RunStatusFailed},
	}

	for _, tc := range cases {
		if got := mapStatus(tc.in); got != tc.want {
			t.Fatalf("mapStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToolParams(t *testing.T) {
	t.Parallel()

	specs := []backendtypes.ToolSpec{
		{
			Name:        "safe_calculate",
			Description: "calculate",
			Parameters:  map[string]any{"type": "object"},
		},
	}

	params := toolParams(specs)
	if len(params) != 1 {
		t.Fatalf("params = %d, want 1", len(params))
	}
	if params[0].OfFunction == nil {
		t.Fatal("params[0].OfFunction is nil")
	}
	if params[0].OfFunction.Function.Name != "safe_calculate" {
		t.Fatalf("function name = %q", params[0].OfFunction.Function.Name)
	}

	if got := toolParams(nil); got != nil {
		t.Fatalf("toolParams(nil) = %v, want nil", got)
	}
}

func TestUnavailableWrapsSentinel(t *testing.T) {
	t.Parallel()

	err := unavailable("start run failed", errors.New("timeout"))
	if !errors.Is(err, backendtypes.ErrUnavailable) {
		t.Fatalf("error %v does not wrap ErrUnavailable", err)
	}

	err = unavailable("empty response", nil)
	if !errors.Is(err, backendtypes.ErrUnavailable) {
		t.Fatalf("error %v does not wrap ErrUnavailable", err)
	}
}
