package database

import "time"

// Delivery statuses stored on a dispatch record.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// DispatchRecord represents a row in the dispatch_records table, one per
// recipient per run.
type DispatchRecord struct {
	RecordID          string    `json:"record_id"`
	RunID             string    `json:"run_id"`
	DisplayName       string    `json:"display_name"`
	Status            string    `json:"status"` // "SUCCESS" or "FAILED"
	RecipientEmail    string    `json:"recipient_email"`
	TemplateFileID    string    `json:"template_file_id"`
	SpreadsheetFileID string    `json:"spreadsheet_file_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// StoredFile represents a row in the files table, metadata for an object
// uploaded to the bucket.
type StoredFile struct {
	FileID        string    `json:"file_id"`
	FileName      string    `json:"file_name"`
	FileExtension string    `json:"file_extension"`
	ContentType   string    `json:"content_type"`
	FileSize      int64     `json:"file_size"`
	CreatedAt     time.Time `json:"created_at"`
}
