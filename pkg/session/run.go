package session

import (
	"context"
	"time"

	backendtypes "dialpilot/pkg/backend/types"
)

// resolveRun polls the run until it completes, dispatching tool calls when
// the backend stops in requires_action.
//
// The wait is bounded twice: by a wall-clock timeout and by a maximum poll
// attempt count, whichever trips first. The poll interval grows by the
// configured backoff factor up to a cap.
func (m *Manager) resolveRun(ctx context.Context, contextID string, runID string) error {
	deadline := time.Now().Add(m.poll.timeout)
	interval := m.poll.interval

	for attempt := 1; attempt <= m.poll.maxAttempts; attempt++ {
		run, err := m.backend.GetRunStatus(ctx, contextID, runID)
		if err != nil {
			return err
		}

		switch run.Status {
		case backendtypes.RunStatusCompleted:
			return nil

		case backendtypes.RunStatusFailed, backendtypes.RunStatusCancelled:
			m.log.Warn("Generation run ended without a reply", "context_id", contextID, "run_id", runID, "status", string(run.Status))
			return &GenerationError{Status: run.Status}

		case backendtypes.RunStatusRequiresAction:
			if err := m.runToolLoop(ctx, contextID, runID, run.ToolCalls); err != nil {
				return err
			}
			// Re-poll promptly after unblocking the run.
			interval = m.poll.interval
		}

		if time.Now().After(deadline) {
			return ErrRunTimedOut
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * m.poll.backoff)
		if interval > m.poll.maxInterval {
			interval = m.poll.maxInterval
		}
	}

	return ErrRunTimedOut
}

// runToolLoop resolves every requested tool call and submits the outputs in
// one batch so the run can resume.
//
// Individual tool failures are already folded into error-string outputs by
// the registry; only the submit itself can fail here.
func (m *Manager) runToolLoop(ctx context.Context, contextID string, runID string, calls []backendtypes.ToolCall) error {
	if len(calls) == 0 {
		return nil
	}

	m.log.Debug("Dispatching tool calls", "context_id", contextID, "run_id", runID, "calls", len(calls))
	outputs := m.registry.Dispatch(ctx, calls)

	return m.backend.SubmitToolOutputs(ctx, contextID, runID, outputs)
}
