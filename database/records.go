package database

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordStore persists and reads dispatch records.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a new RecordStore instance
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Save inserts one dispatch record. Records are append-only; nothing in the
// pipeline updates or deletes them.
func (s *RecordStore) Save(ctx context.Context, rec DispatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_records
			(record_id, run_id, display_name, status, recipient_email, template_file_id, spreadsheet_file_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RecordID, rec.RunID, rec.DisplayName, rec.Status, rec.RecipientEmail,
		rec.TemplateFileID, rec.SpreadsheetFileID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}
	return nil
}

// ListByRun returns all records created under one run identifier, oldest first.
func (s *RecordStore) ListByRun(ctx context.Context, runID string) ([]DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, run_id, display_name, status, recipient_email, template_file_id, spreadsheet_file_id, created_at
		 FROM dispatch_records
		 WHERE run_id = $1
		 ORDER BY created_at ASC, record_id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch records: %w", err)
	}
	defer rows.Close()

	var records []DispatchRecord
	for rows.Next() {
		var rec DispatchRecord
		if err := rows.Scan(&rec.RecordID, &rec.RunID, &rec.DisplayName, &rec.Status,
			&rec.RecipientEmail, &rec.TemplateFileID, &rec.SpreadsheetFileID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch record row: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over dispatch record rows: %w", err)
	}
	return records, nil
}
