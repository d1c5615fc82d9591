package database

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

// DefaultPageSize is used when a listing request does not specify a limit.
const DefaultPageSize = 10

// Columns the file listing can be sorted by. Anything else falls back to
// created_at to keep user input out of the ORDER BY clause.
var fileSortColumns = map[string]string{
	"created_at":     "created_at",
	"file_name":      "file_name",
	"file_extension": "file_extension",
	"file_size":      "file_size",
}

// FileListQuery describes one page request against the files table.
type FileListQuery struct {
	Limit      int
	PageToken  string   // opaque continuation token from a previous page
	Extensions []string // OR-filter on file_extension; empty means no filter
	SortBy     string
	SortOrder  string // "ASC" or "DESC"
}

// FilePage is one page of file records. NextPageToken is empty when no more
// rows remain.
type FilePage struct {
	Files         []StoredFile `json:"data"`
	NextPageToken string       `json:"last_evaluated_key,omitempty"`
}

// FileStore persists and lists file metadata.
type FileStore struct {
	db *sql.DB
}

// NewFileStore creates a new FileStore instance
func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

// Insert records metadata for an uploaded object.
func (s *FileStore) Insert(ctx context.Context, f StoredFile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (file_id, file_name, file_extension, content_type, file_size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		f.FileID, f.FileName, f.FileExtension, f.ContentType, f.FileSize, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

// List returns one sorted, filtered page of file records. Sorting and
// filtering are applied here in SQL; callers only pass the page description.
func (s *FileStore) List(ctx context.Context, q FileListQuery) (*FilePage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	offset, err := decodePageToken(q.PageToken)
	if err != nil {
		return nil, fmt.Errorf("invalid page token: %w", err)
	}

	sortColumn, ok := fileSortColumns[q.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "DESC"
	if q.SortOrder == "ASC" {
		direction = "ASC"
	}

	query := `SELECT file_id, file_name, file_extension, content_type, file_size, created_at FROM files`
	var args []interface{}
	if len(q.Extensions) > 0 {
		query += ` WHERE file_extension = ANY($1)`
		args = append(args, pq.Array(q.Extensions))
	}
	// Fetch one extra row to learn whether another page exists.
	query += fmt.Sprintf(" ORDER BY %s %s, file_id ASC LIMIT $%d OFFSET $%d",
		sortColumn, direction, len(args)+1, len(args)+2)
	args = append(args, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query file records: %w", err)
	}
	defer rows.Close()

	var files []StoredFile
	for rows.Next() {
		var f StoredFile
		if err := rows.Scan(&f.FileID, &f.FileName, &f.FileExtension, &f.ContentType, &f.FileSize, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file record row: %w", err)
		}
		files = append(files, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over file record rows: %w", err)
	}

	page := &FilePage{}
	if len(files) > limit {
		page.Files = files[:limit]
		page.NextPageToken = encodePageToken(offset + limit)
	} else {
		page.Files = files
	}
	return page, nil
}

func encodePageToken(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("malformed offset %q", string(raw))
	}
	return offset, nil
}
