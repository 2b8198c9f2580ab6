package transcript

import (
	"context"
	"fmt"
	"strings"
)

// RowPerTurn appends one row per turn and inserts a one-time first-contact
// marker row the first time a handle is seen.
type RowPerTurn struct {
	store RowStore
}

func NewRowPerTurn(store RowStore) *RowPerTurn {
	return &RowPerTurn{store: store}
}

func (s *RowPerTurn) AppendTurn(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}

	rows, err := s.store.Rows(ctx)
	if err != nil {
		return fmt.Errorf("list transcript rows: %w", err)
	}

	if !handleSeen(rows, entry.Handle) {
		marker := []string{
			timestampCell(entry.Timestamp),
			entry.Platform,
			entry.Handle,
			fmt.Sprintf("New conversation with %s", entry.Handle),
		}
		if err := s.store.Append(ctx, marker); err != nil {
			return fmt.Errorf("append first-contact marker: %w", err)
		}
	}

	cells := []string{
		timestampCell(entry.Timestamp),
		entry.Platform,
		entry.Handle,
		fmt.Sprintf("%s: %s", rolePrefix(entry.Role), entry.Text),
	}
	if err := s.store.Append(ctx, cells); err != nil {
		return fmt.Errorf("append transcript row: %w", err)
	}

	return nil
}

func handleSeen(rows []Row, handle string) bool {
	key := strings.ToLower(strings.TrimSpace(handle))
	for _, row := range rows {
		if len(row.Cells) < 3 {
			continue
		}
		if strings.ToLower(strings.TrimSpace(row.Cells[2])) == key {
			return true
		}
	}

	return false
}
