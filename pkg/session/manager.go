package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dialpilot/pkg/backend"
	backendtypes "dialpilot/pkg/backend/types"
	"dialpilot/pkg/config"
	"dialpilot/pkg/identity"
	"dialpilot/pkg/session/store"
	"dialpilot/pkg/tools"
	"dialpilot/pkg/transcript"
)

// Responder turns one inbound message into one reply.
type Responder interface {
	Reply(ctx context.Context, platform string, sender string, text string) (string, error)
}

// Manager owns the sender-to-context mapping and drives each submitted turn
// through the run resolution protocol.
//
// Turns are serialized per sender: two messages from the same number are
// handled one after the other, while different senders proceed in parallel.
type Manager struct {
	backend  backend.Client
	contexts store.Store
	registry *tools.Registry
	sink     transcript.Sink
	poll     pollConfig
	log      *slog.Logger

	mu      sync.Mutex
	senders map[identity.Key]*sync.Mutex
}

type pollConfig struct {
	interval    time.Duration
	backoff     float64
	maxInterval time.Duration
	maxAttempts int
	timeout     time.Duration
}

const (
	defaultPollInterval = time.Second
	defaultPollBackoff  = 1.5
	maxPollInterval     = 5 * time.Second
	defaultMaxAttempts  = 120
	defaultRunTimeout   = 90 * time.Second
)

// NewManager wires the session manager. The transcript sink may be nil when
// logging is disabled.
func NewManager(client backend.Client, contexts store.Store, registry *tools.Registry, sink transcript.Sink, cfg config.ResponderConfig, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		backend:  client,
		contexts: contexts,
		registry: registry,
		sink:     sink,
		poll:     resolvePollConfig(cfg),
		log:      log.With("component", "session.manager"),
		senders:  make(map[identity.Key]*sync.Mutex),
	}
}

func resolvePollConfig(cfg config.ResponderConfig) pollConfig {
	poll := pollConfig{
		interval:    time.Duration(cfg.PollIntervalSeconds * float64(time.Second)),
		backoff:     cfg.PollBackoffFactor,
		maxInterval: maxPollInterval,
		maxAttempts: cfg.PollMaxAttempts,
		timeout:     time.Duration(cfg.RunTimeoutSeconds) * time.Second,
	}

	if poll.interval <= 0 {
		poll.interval = defaultPollInterval
	}
	if poll.backoff < 1 {
		poll.backoff = defaultPollBackoff
	}
	if poll.maxAttempts <= 0 {
		poll.maxAttempts = defaultMaxAttempts
	}
	if poll.timeout <= 0 {
		poll.timeout = defaultRunTimeout
	}

	return poll
}

// Reply resolves the sender's context, submits the turn, and returns the
// assistant's reply.
//
// Guarantee: a non-empty reply string or a classified error, never both
// absent. Transcript persistence is triggered on success and never affects
// the returned reply.
func (m *Manager) Reply(ctx context.Context, platform string, sender string, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}

	key := identity.Normalize(platform, sender)
	if key.IsZero() {
		return "", fmt.Errorf("sender handle is required")
	}

	lock := m.senderLock(key)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := m.resolveContext(ctx, key)
	if err != nil {
		return "", err
	}

	reply, err := m.submitTurn(ctx, conversation.ID, text)
	if err != nil {
		return "", err
	}

	m.recordExchange(ctx, key, text, reply)

	return reply, nil
}

// resolveContext returns the sender's existing context or creates one.
//
// Callers hold the sender lock, so two racing messages from the same sender
// cannot create duplicate contexts.
func (m *Manager) resolveContext(ctx context.Context, key identity.Key) (*store.Context, error) {
	existing, err := m.contexts.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("look up context for %s: %w", key, err)
	}
	if existing != nil {
		return existing, nil
	}

	contextID, err := m.backend.CreateContext(ctx)
	if err != nil {
		return nil, err
	}

	created := &store.Context{ID: contextID, CreatedAt: time.Now().UTC()}
	if err := m.contexts.Put(ctx, key, created); err != nil {
		return nil, fmt.Errorf("store context for %s: %w", key, err)
	}

	m.log.Info("Created conversation context", "sender", string(key), "context_id", contextID)

	return created, nil
}

// submitTurn appends the user turn, runs generation to completion, and
// extracts the newest assistant reply.
func (m *Manager) submitTurn(ctx context.Context, contextID string, text string) (string, error) {
	if err := m.backend.AppendUserTurn(ctx, contextID, text); err != nil {
		return "", err
	}

	runID, err := m.backend.StartRun(ctx, contextID, m.registry.Specs())
	if err != nil {
		return "", err
	}

	if err := m.resolveRun(ctx, contextID, runID); err != nil {
		return "", err
	}

	return m.extractReply(ctx, contextID)
}

// extractReply picks the authoritative assistant turn.
//
// The backend lists turns newest-first, so the first assistant-authored turn
// is the reply to the turn just submitted.
func (m *Manager) extractReply(ctx context.Context, contextID string) (string, error) {
	turns, err := m.backend.ListTurns(ctx, contextID)
	if err != nil {
		return "", err
	}

	for _, turn := range turns {
		if turn.Role != backendtypes.RoleAssistant {
			continue
		}

		reply := strings.TrimSpace(turn.Text)
		if reply == "" {
			break
		}

		return reply, nil
	}

	return "", fmt.Errorf("%w: run completed without an assistant reply", backendtypes.ErrUnavailable)
}

// recordExchange queues both turns of a successful exchange to the sink.
// Sink failures are logged and swallowed; the reply has already been
// resolved and must be delivered regardless.
func (m *Manager) recordExchange(ctx context.Context, key identity.Key, userText string, replyText string) {
	if m.sink == nil {
		return
	}

	now := time.Now()
	entries := []transcript.Entry{
		{Platform: key.Platform(), Handle: key.Handle(), Timestamp: now, Role: transcript.RoleUser, Text: userText},
		{Platform: key.Platform(), Handle: key.Handle(), Timestamp: now, Role: transcript.RoleAssistant, Text: replyText},
	}

	for _, entry := range entries {
		if err := m.sink.AppendTurn(ctx, entry); err != nil {
			m.log.Warn("Transcript write failed", "sender", string(key), "role", entry.Role, "error", err)
		}
	}
}

// senderLock returns the mutex serializing turns for one sender, creating it
// on first contact.
func (m *Manager) senderLock(key identity.Key) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.senders[key]
	if !ok {
		lock = &sync.Mutex{}
		m.senders[key] = lock
	}

	return lock
}
