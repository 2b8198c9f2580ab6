// Package store maps sender identities to their generation backend contexts.
//
// The manager depends only on the Store interface, so the in-memory driver
// can be swapped for redis without touching conversation logic.
package store

import (
	"context"
	"fmt"
	"time"

	"dialpilot/pkg/config"
	"dialpilot/pkg/identity"
)

// Context is the durable handle for one sender's backend conversation.
type Context struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the sender-to-context mapping.
type Store interface {
	// Get retrieves the context for a sender.
	// Returns nil when no mapping exists (not an error).
	Get(ctx context.Context, key identity.Key) (*Context, error)

	// Put stores or replaces the mapping for a sender.
	Put(ctx context.Context, key identity.Key, value *Context) error

	// Delete removes the mapping for a sender.
	Delete(ctx context.Context, key identity.Key) error

	// Close releases any store resources.
	Close() error
}

// New resolves the configured context store driver.
func New(cfg config.ContextsConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported context store driver: %s", cfg.Driver)
	}
}
