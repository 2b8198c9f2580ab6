package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	backendtypes "dialpilot/pkg/backend/types"
	"dialpilot/pkg/config"

	osdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const defaultModel = "gpt-4o-mini"

// Client implements the generation backend protocol on the OpenAI
// Assistants API: one thread per context, one run per submitted turn.
type Client struct {
	client         osdk.Client
	assistantID    string
	model          string
	requestTimeout time.Duration
}

// New validates provider configuration and constructs an OpenAI client.
func New(cfg *config.Config) (*Client, error) {
	providerCfg := cfg.Providers.OpenAI

	apiKey := strings.TrimSpace(providerCfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if apiKey == "" {
		return nil, errors.New("providers.openai.api_key is required or OPENAI_API_KEY must be set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(providerCfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(providerCfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(providerCfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	requestTimeout := time.Duration(providerCfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	model := strings.TrimSpace(cfg.Responder.Model)
	if model == "" {
		model = defaultModel
	}

	return &Client{
		client:         osdk.NewClient(opts...),
		assistantID:    strings.TrimSpace(providerCfg.AssistantID),
		model:          model,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("backend request started")

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return unavailable("health check failed", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func (c *Client) CreateContext(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "create_context")
	startedAt := time.Now()
	log.Debug("backend request started")

	thread, err := c.client.Beta.Threads.New(ctx, osdk.BetaThreadNewParams{})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", unavailable("create context failed", err)
	}
	if thread == nil || strings.TrimSpace(thread.ID) == "" {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "empty thread id")
		return "", unavailable("create context returned empty thread id", nil)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "context_id", thread.ID)

	return thread.ID, nil
}

func (c *Client) AppendUserTurn(ctx context.Context, contextID string, text string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "append_user_turn")
	startedAt := time.Now()
	log.Debug("backend request started", "context_id", contextID, "text_length", len(text))

	_, err := c.client.Beta.Threads.Messages.New(ctx, contextID, osdk.BetaThreadMessageNewParams{
		Role:    osdk.BetaThreadMessageNewParamsRoleUser,
		Content: osdk.BetaThreadMessageNewParamsContentUnion{OfString: osdk.String(text)},
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return unavailable("append user turn failed", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func (c *Client) StartRun(ctx context.Context, contextID string, tools []backendtypes.ToolSpec) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "start_run")
	startedAt := time.Now()

	if c.assistantID == "" {
		return "", unavailable("providers.openai.assistant_id is required", nil)
	}
	log.Debug("backend request started", "context_id", contextID, "tools", len(tools))

	run, err := c.client.Beta.Threads.Runs.New(ctx, contextID, osdk.BetaThreadRunNewParams{
		AssistantID: c.assistantID,
		Tools:       toolParams(tools),
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", unavailable("start run failed", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "run_id", run.ID)

	return run.ID, nil
}

func (c *Client) GetRunStatus(ctx context.Context, contextID string, runID string) (backendtypes.Run, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	run, err := c.client.Beta.Threads.Runs.Get(ctx, contextID, runID)
	if err != nil {
		return backendtypes.Run{}, unavailable("get run status failed", err)
	}

	snapshot := backendtypes.Run{
		ID:        run.ID,
		ContextID: contextID,
		Status:    mapStatus(run.Status),
	}

	if snapshot.Status == backendtypes.RunStatusRequiresAction {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			snapshot.ToolCalls = append(snapshot.ToolCalls, backendtypes.ToolCall{
				CallID:    call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}

	return snapshot, nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, contextID string, runID string, outputs []backendtypes.ToolOutput) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "submit_tool_outputs")
	startedAt := time.Now()
	log.Debug("backend request started", "context_id", contextID, "run_id", runID, "outputs", len(outputs))

	params := osdk.BetaThreadRunSubmitToolOutputsParams{}
	for _, output := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, osdk.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: osdk.String(output.CallID),
			Output:     osdk.String(output.Output),
		})
	}

	if _, err := c.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, contextID, runID, params); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return unavailable("submit tool outputs failed", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

// ListTurns returns the thread's messages newest-first, flattening text
// content parts into one string per turn.
func (c *Client) ListTurns(ctx context.Context, contextID string) ([]backendtypes.Turn, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	page, err := c.client.Beta.Threads.Messages.List(ctx, contextID, osdk.BetaThreadMessageListParams{
		Order: osdk.BetaThreadMessageListParamsOrderDesc,
	})
	if err != nil {
		return nil, unavailable("list turns failed", err)
	}

	turns := make([]backendtypes.Turn, 0, len(page.Data))
	for _, message := range page.Data {
		turns = append(turns, backendtypes.Turn{
			Role: string(message.Role),
			Text: messageText(message),
		})
	}

	return turns, nil
}

// Complete produces a single-turn reply through the chat completions API.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "complete")
	startedAt := time.Now()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	log.Debug("backend request started", "model", c.model, "prompt_length", len(prompt))

	completion, err := c.client.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []osdk.ChatCompletionMessageParamUnion{
			osdk.UserMessage(prompt),
		},
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", unavailable("completion failed", err)
	}
	if len(completion.Choices) == 0 {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no choices")
		return "", unavailable("completion returned no choices", nil)
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	return text, nil
}

func backendLogger() *slog.Logger {
	return slog.Default().With("component", "backend.openai")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func unavailable(message string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", backendtypes.ErrUnavailable, message)
	}

	return fmt.Errorf("%w: %s: %v", backendtypes.ErrUnavailable, message, err)
}

func toolParams(tools []backendtypes.ToolSpec) []osdk.AssistantToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	params := make([]osdk.AssistantToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		params = append(params, osdk.AssistantToolUnionParam{
			OfFunction: &osdk.FunctionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: osdk.String(tool.Description),
					Parameters:  shared.FunctionParameters(tool.Parameters),
				},
			},
		})
	}

	return params
}

func messageText(message osdk.Message) string {
	var parts []string
	for _, content := range message.Content {
		if content.Type == "text" {
			parts = append(parts, content.Text.Value)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func mapStatus(status osdk.RunStatus) backendtypes.RunStatus {
	switch status {
	case osdk.RunStatusQueued:
		return backendtypes.RunStatusQueued
	case osdk.RunStatusInProgress, osdk.RunStatusCancelling:
		return backendtypes.RunStatusInProgress
	case osdk.RunStatusRequiresAction:
		return backendtypes.RunStatusRequiresAction
	case osdk.RunStatusCompleted:
		return backendtypes.RunStatusCompleted
	case osdk.RunStatusCancelled:
		return backendtypes.RunStatusCancelled
	default:
		// failed, expired and incomplete all end generation without a reply.
		return backendtypes.RunStatusFailed
	}
}
