package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	backendtypes "dialpilot/pkg/backend/types"
)

// Tool is one named side computation the backend may request mid-run.
//
// Run receives the raw argument payload and must validate it itself. A Run
// error is reported back to the backend as text; it never aborts the run.
type Tool interface {
	Spec() backendtypes.ToolSpec
	Run(ctx context.Context, arguments json.RawMessage) (string, error)
}

// Registry holds the tools advertised to the backend, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	log   *slog.Logger
}

// NewRegistry builds an empty tool registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		tools: make(map[string]Tool),
		log:   log.With("component", "tools.registry"),
	}
}

// Register adds a tool, replacing any prior tool with the same name.
func (r *Registry) Register(tool Tool) {
	if tool == nil {
		return
	}

	spec := tool.Spec()
	r.mu.Lock()
	r.tools[spec.Name] = tool
	r.mu.Unlock()
}

// Specs lists registered tool specs in stable name order.
func (r *Registry) Specs() []backendtypes.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]backendtypes.ToolSpec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, tool.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	return specs
}

// Dispatch resolves every requested call to a string output.
//
// Unknown tools, malformed arguments, and tool failures all become
// human-readable error strings in the output slot for their call ID. Tool
// execution never raises past this boundary.
func (r *Registry) Dispatch(ctx context.Context, calls []backendtypes.ToolCall) []backendtypes.ToolOutput {
	outputs := make([]backendtypes.ToolOutput, 0, len(calls))
	for _, call := range calls {
		outputs = append(outputs, backendtypes.ToolOutput{
			CallID: call.CallID,
			Output: r.dispatchOne(ctx, call),
		})
	}

	return outputs
}

func (r *Registry) dispatchOne(ctx context.Context, call backendtypes.ToolCall) string {
	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("Backend requested unknown tool", "tool", call.Name, "call_id", call.CallID)
		return fmt.Sprintf("Tool error: unknown tool %q", call.Name)
	}

	output, err := tool.Run(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		r.log.Warn("Tool execution failed", "tool", call.Name, "call_id", call.CallID, "error", err)
		return fmt.Sprintf("Tool error: %v", err)
	}

	return output
}

// DecodeArguments strictly unmarshals a tool argument payload into target.
//
// Unknown fields are rejected so a drifting backend schema surfaces as a
// tool error instead of silently dropping data.
func DecodeArguments(arguments json.RawMessage, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(arguments))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	return nil
}
