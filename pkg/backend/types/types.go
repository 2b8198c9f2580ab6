package types

import "errors"

// ErrUnavailable marks any transport, auth, or malformed-response failure
// while talking to the generation backend. Adapters wrap the underlying
// error so callers can classify with errors.Is.
var ErrUnavailable = errors.New("generation backend unavailable")

// RunStatus is the lifecycle state of one generation run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
)

// Terminal reports whether the run can make no further progress.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Run is a point-in-time snapshot of one generation run.
//
// ToolCalls is populated only while Status is requires_action.
type Run struct {
	ID        string
	ContextID string
	Status    RunStatus
	ToolCalls []ToolCall
}

// ToolCall is one backend-requested tool invocation blocking a run.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// ToolOutput is one captured tool result, tagged by its originating call.
type ToolOutput struct {
	CallID string
	Output string
}

// ToolSpec advertises one callable tool to the backend when starting a run.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Turn is one entry of a context's conversation history.
type Turn struct {
	Role string
	Text string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
