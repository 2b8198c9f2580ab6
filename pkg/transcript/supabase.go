package transcript

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"dialpilot/pkg/config"
)

const defaultTable = "transcripts"

// transcriptRow is the table shape behind the supabase-backed row store.
type transcriptRow struct {
	ID        string `json:"id"`
	Position  int    `json:"position"`
	Timestamp string `json:"ts"`
	Platform  string `json:"platform"`
	Handle    string `json:"handle"`
	Body      string `json:"body"`
}

// SupabaseRowStore persists transcript rows in a Supabase table, ordered by
// an explicit position column so strategies see sheet-like row order.
type SupabaseRowStore struct {
	client *supabase.Client
	table  string
}

func NewSupabaseRowStore(cfg config.TranscriptConfig) (*SupabaseRowStore, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, errors.New("transcript.supabase_url and transcript.supabase_key are required")
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	return &SupabaseRowStore{client: client, table: table}, nil
}

func (s *SupabaseRowStore) Rows(_ context.Context) ([]Row, error) {
	stored, err := s.fetch()
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(stored))
	for _, row := range stored {
		rows = append(rows, Row{
			ID:    row.ID,
			Cells: []string{row.Timestamp, row.Platform, row.Handle, row.Body},
		})
	}

	return rows, nil
}

func (s *SupabaseRowStore) Append(_ context.Context, cells []string) error {
	stored, err := s.fetch()
	if err != nil {
		return err
	}

	row := rowFromCells(cells)
	row.ID = uuid.NewString()
	row.Position = len(stored) + 1

	if _, _, err := s.client.From(s.table).Insert(row, false, "", "", "").Execute(); err != nil {
		return fmt.Errorf("insert transcript row: %w", err)
	}

	return nil
}

func (s *SupabaseRowStore) Update(_ context.Context, id string, cells []string) error {
	row := rowFromCells(cells)

	if _, _, err := s.client.From(s.table).Update(row, "", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("update transcript row: %w", err)
	}

	return nil
}

func (s *SupabaseRowStore) Replace(_ context.Context, rows [][]string) error {
	if _, _, err := s.client.From(s.table).Delete("", "").Neq("id", "").Execute(); err != nil {
		return fmt.Errorf("clear transcript rows: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	batch := make([]transcriptRow, 0, len(rows))
	for i, cells := range rows {
		row := rowFromCells(cells)
		row.ID = uuid.NewString()
		row.Position = i + 1
		batch = append(batch, row)
	}

	if _, _, err := s.client.From(s.table).Insert(batch, false, "", "", "").Execute(); err != nil {
		return fmt.Errorf("insert transcript rows: %w", err)
	}

	return nil
}

func (s *SupabaseRowStore) fetch() ([]transcriptRow, error) {
	var stored []transcriptRow
	if _, err := s.client.From(s.table).Select("*", "", false).ExecuteTo(&stored); err != nil {
		return nil, fmt.Errorf("select transcript rows: %w", err)
	}

	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })

	return stored, nil
}

func rowFromCells(cells []string) transcriptRow {
	row := transcriptRow{}
	if len(cells) > 0 {
		row.Timestamp = cells[0]
	}
	if len(cells) > 1 {
		row.Platform = cells[1]
	}
	if len(cells) > 2 {
		row.Handle = cells[2]
	}
	if len(cells) > 3 {
		row.Body = cells[3]
	}

	return row
}
