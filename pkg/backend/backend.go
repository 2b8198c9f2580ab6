package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	backendopenai "dialpilot/pkg/backend/openai"
	backendtypes "dialpilot/pkg/backend/types"
	"dialpilot/pkg/config"
)

// Client drives one generation backend through the context/run protocol.
//
// A context is the backend-held conversation history for one sender. A run is
// one asynchronous generation job against a context; it either completes with
// a new assistant turn or stops in requires_action until tool outputs are
// submitted.
type Client interface {
	Health(ctx context.Context) error
	CreateContext(ctx context.Context) (string, error)
	AppendUserTurn(ctx context.Context, contextID string, text string) error
	StartRun(ctx context.Context, contextID string, tools []backendtypes.ToolSpec) (string, error)
	GetRunStatus(ctx context.Context, contextID string, runID string) (backendtypes.Run, error)
	SubmitToolOutputs(ctx context.Context, contextID string, runID string, outputs []backendtypes.ToolOutput) error
	// ListTurns returns the context's turns newest-first.
	ListTurns(ctx context.Context, contextID string) ([]backendtypes.Turn, error)
}

// Completer produces a single-turn reply with no conversation state.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New resolves the configured generation backend client.
func New(cfg *config.Config) (Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	slog.Default().With("component", "backend.factory").Debug("Resolving generation backend client")

	client, err := backendopenai.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize openai backend: %w", err)
	}

	return client, nil
}

// NewCompleter resolves the configured single-turn completion client.
func NewCompleter(cfg *config.Config) (Completer, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	client, err := backendopenai.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize openai backend: %w", err)
	}

	return client, nil
}
