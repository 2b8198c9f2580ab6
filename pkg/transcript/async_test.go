package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingSink struct {
	mu      sync.Mutex
	entries []Entry
	fail    int
}

func (c *countingSink) AppendTurn(_ context.Context, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail > 0 {
		c.fail--
		return errors.New("temporarily down")
	}

	c.entries = append(c.entries, entry)
	return nil
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestAsyncSinkDrainsOnClose(t *testing.T) {
	t.Parallel()

	inner := &countingSink{}
	sink := NewAsync(inner, 1, nil)

	for i := 0; i < 5; i++ {
		if err := sink.AppendTurn(context.Background(), Entry{Platform: "sms", Handle: "+1555", Role: RoleUser, Text: "hi"}); err != nil {
			t.Fatalf("AppendTurn error: %v", err)
		}
	}

	sink.Close()

	if inner.count() != 5 {
		t.Fatalf("persisted entries = %d, want 5", inner.count())
	}
}

func TestAsyncSinkRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	inner := &countingSink{fail: 1}
	sink := NewAsync(inner, 2, nil)

	if err := sink.AppendTurn(context.Background(), Entry{Platform: "sms", Handle: "+1555", Role: RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for inner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	sink.Close()

	if inner.count() != 1 {
		t.Fatalf("persisted entries = %d, want 1 after retry", inner.count())
	}
}

func TestAsyncSinkDropsAfterRetryBudget(t *testing.T) {
	t.Parallel()

	inner := &countingSink{fail: 10}
	sink := NewAsync(inner, 1, nil)

	if err := sink.AppendTurn(context.Background(), Entry{Platform: "sms", Handle: "+1555", Role: RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	sink.Close()

	if inner.count() != 0 {
		t.Fatalf("persisted entries = %d, want 0 after exhausted retries", inner.count())
	}
}

func TestAsyncSinkAcceptsAfterCloseWithoutPanic(t *testing.T) {
	t.Parallel()

	sink := NewAsync(&countingSink{}, 1, nil)
	sink.Close()

	if err := sink.AppendTurn(context.Background(), Entry{Platform: "sms", Handle: "+1555"}); err != nil {
		t.Fatalf("AppendTurn after close error: %v", err)
	}
}
