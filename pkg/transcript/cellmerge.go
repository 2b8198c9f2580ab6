package transcript

import (
	"context"
	"fmt"
	"strings"
)

// CellMerge keeps one row per (platform, handle) and grows its text cell with
// every turn, chronological order preserved by append.
type CellMerge struct {
	store RowStore
}

func NewCellMerge(store RowStore) *CellMerge {
	return &CellMerge{store: store}
}

func (s *CellMerge) AppendTurn(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}

	line := fmt.Sprintf("[%s] %s: %s\n", timestampCell(entry.Timestamp), rolePrefix(entry.Role), entry.Text)

	rows, err := s.store.Rows(ctx)
	if err != nil {
		return fmt.Errorf("list transcript rows: %w", err)
	}

	for _, row := range rows {
		if len(row.Cells) < 4 {
			continue
		}
		if !sameConversation(row.Cells[1], row.Cells[2], entry.Platform, entry.Handle) {
			continue
		}

		cells := append([]string(nil), row.Cells...)
		cells[3] += line
		if err := s.store.Update(ctx, row.ID, cells); err != nil {
			return fmt.Errorf("merge transcript cell: %w", err)
		}

		return nil
	}

	err = s.store.Append(ctx, []string{timestampCell(entry.Timestamp), entry.Platform, entry.Handle, line})
	if err != nil {
		return fmt.Errorf("append transcript row: %w", err)
	}

	return nil
}

func sameConversation(rowPlatform, rowHandle, platform, handle string) bool {
	return strings.EqualFold(strings.TrimSpace(rowPlatform), strings.TrimSpace(platform)) &&
		strings.EqualFold(strings.TrimSpace(rowHandle), strings.TrimSpace(handle))
}
