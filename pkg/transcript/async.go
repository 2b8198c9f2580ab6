package transcript

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueueSize     = 100
	defaultRetryAttempts = 3
	retryDelay           = 500 * time.Millisecond
)

// AsyncSink decouples transcript writes from the reply path.
//
// AppendTurn enqueues and returns immediately; a single worker drains the
// queue in order, retrying each write a bounded number of times. Failures
// are logged and dropped, never surfaced to the caller.
type AsyncSink struct {
	sink     Sink
	log      *slog.Logger
	attempts int

	queue     chan Entry
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAsync wraps a sink with the fire-and-forget write queue and starts its
// worker.
func NewAsync(sink Sink, attempts int, log *slog.Logger) *AsyncSink {
	if log == nil {
		log = slog.Default()
	}
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}

	s := &AsyncSink{
		sink:     sink,
		log:      log.With("component", "transcript.async"),
		attempts: attempts,
		queue:    make(chan Entry, defaultQueueSize),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// AppendTurn enqueues the entry for background persistence. A full queue
// drops the entry with a warning rather than blocking the reply path.
func (s *AsyncSink) AppendTurn(_ context.Context, entry Entry) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	select {
	case s.queue <- entry:
	default:
		s.log.Warn("Transcript queue full, dropping entry", "platform", entry.Platform, "handle", entry.Handle)
	}

	return nil
}

// Close stops accepting entries, drains what is already queued, and waits
// for the worker to finish.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

func (s *AsyncSink) run() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.queue:
			s.persist(entry)
		case <-s.done:
			for {
				select {
				case entry := <-s.queue:
					s.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncSink) persist(entry Entry) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = s.sink.AppendTurn(ctx, entry)
		cancel()
		if lastErr == nil {
			return
		}

		time.Sleep(retryDelay)
	}

	s.log.Error("Transcript write failed, dropping entry",
		"platform", entry.Platform,
		"handle", entry.Handle,
		"role", entry.Role,
		"attempts", s.attempts,
		"error", lastErr,
	)
}
