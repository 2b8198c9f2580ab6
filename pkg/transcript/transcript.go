// Package transcript persists conversation turns to a pluggable log.
//
// A Sink is append-only from the caller's point of view; how turns are merged
// into rows is a per-strategy decision. Sink failures are always safe to
// swallow: the reply path never depends on a transcript write.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dialpilot/pkg/config"
)

// Turn roles as they appear in the log text.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one logged conversation turn.
type Entry struct {
	Platform  string
	Handle    string
	Timestamp time.Time
	Role      string
	Text      string
}

// Sink records conversation turns, merging per its configured strategy.
type Sink interface {
	AppendTurn(ctx context.Context, entry Entry) error
}

// New resolves the configured sink strategy over the configured row backend.
func New(cfg config.TranscriptConfig, log *slog.Logger) (Sink, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := newRowStore(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case "", "row_per_turn":
		return NewRowPerTurn(store), nil
	case "cell_merge":
		return NewCellMerge(store), nil
	case "dated":
		return NewDatedSort(store), nil
	default:
		return nil, fmt.Errorf("unsupported transcript strategy: %s", cfg.Strategy)
	}
}

func newRowStore(cfg config.TranscriptConfig) (RowStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryRowStore(), nil
	case "supabase":
		return NewSupabaseRowStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported transcript backend: %s", cfg.Backend)
	}
}

// rolePrefix renders a turn the way the log sheet labels speakers.
func rolePrefix(role string) string {
	if role == RoleAssistant {
		return "AI"
	}

	return "User"
}

// validate rejects entries the strategies cannot key on.
func validate(entry Entry) error {
	if entry.Platform == "" || entry.Handle == "" {
		return errors.New("transcript entry requires platform and handle")
	}

	return nil
}

// timestampCell is the wall-clock format used in the first column.
func timestampCell(at time.Time) string {
	return at.Format("2006-01-02 15:04")
}
