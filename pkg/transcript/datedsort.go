package transcript

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DatedSort appends each turn as its own row and then rewrites the whole row
// set sorted by timestamp descending, so the newest activity always reads
// from the top.
type DatedSort struct {
	store RowStore
}

func NewDatedSort(store RowStore) *DatedSort {
	return &DatedSort{store: store}
}

func (s *DatedSort) AppendTurn(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
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

	rows, err := s.store.Rows(ctx)
	if err != nil {
		return fmt.Errorf("list transcript rows: %w", err)
	}

	sorted := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row.Cells) == 0 || !anyCellSet(row.Cells) {
			continue
		}
		sorted = append(sorted, append([]string(nil), row.Cells...))
	}

	// Timestamp cells share a lexicographically sortable layout.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i][0] > sorted[j][0]
	})

	if err := s.store.Replace(ctx, sorted); err != nil {
		return fmt.Errorf("rewrite sorted transcript: %w", err)
	}

	return nil
}

func anyCellSet(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}

	return false
}
