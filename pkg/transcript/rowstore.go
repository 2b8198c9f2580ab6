package transcript

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrRowNotFound is returned by Update when the target row no longer exists.
var ErrRowNotFound = errors.New("transcript row not found")

// Row is one sheet row: [timestamp, platform, handle, text] plus a store key.
type Row struct {
	ID    string
	Cells []string
}

// RowStore is the minimal sheet-like surface the merge strategies need.
type RowStore interface {
	Rows(ctx context.Context) ([]Row, error)
	Append(ctx context.Context, cells []string) error
	Update(ctx context.Context, id string, cells []string) error
	// Replace swaps the entire row set; used by strategies that re-sort.
	Replace(ctx context.Context, rows [][]string) error
}

// MemoryRowStore keeps rows in-process; the default backend and the one the
// tests exercise.
type MemoryRowStore struct {
	mu   sync.RWMutex
	rows []Row
}

func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{}
}

func (s *MemoryRowStore) Rows(_ context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Row, len(s.rows))
	for i, row := range s.rows {
		out[i] = Row{ID: row.ID, Cells: append([]string(nil), row.Cells...)}
	}

	return out, nil
}

func (s *MemoryRowStore) Append(_ context.Context, cells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, Row{
		ID:    uuid.NewString(),
		Cells: append([]string(nil), cells...),
	})

	return nil
}

func (s *MemoryRowStore) Update(_ context.Context, id string, cells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range s.rows {
		if row.ID == id {
			s.rows[i].Cells = append([]string(nil), cells...)
			return nil
		}
	}

	return ErrRowNotFound
}

func (s *MemoryRowStore) Replace(_ context.Context, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make([]Row, 0, len(rows))
	for _, cells := range rows {
		s.rows = append(s.rows, Row{
			ID:    uuid.NewString(),
			Cells: append([]string(nil), cells...),
		})
	}

	return nil
}
