package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"mail-dispatcher/database"

	"github.com/google/uuid"
)

// TimeFormat is used for run and record timestamps.
const TimeFormat = "2006-01-02T15:04:05"

// RecipientColumn names the spreadsheet column holding each row's delivery
// address.
const RecipientColumn = "Email"

// ObjectStore fetches raw object bytes by key.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Sender delivers one rendered message to one address.
type Sender interface {
	Send(displayName, toAddress, subject, htmlBody string) error
}

// Recorder persists one dispatch record per recipient per run.
type Recorder interface {
	Save(ctx context.Context, rec database.DispatchRecord) error
}

// DispatchRequest carries the caller's input for one run.
type DispatchRequest struct {
	TemplateFileID    string `json:"template_file_id"`
	SpreadsheetFileID string `json:"spreadsheet_file_id"`
	Subject           string `json:"subject"`
	DisplayName       string `json:"display_name"`
	RunID             string `json:"run_id,omitempty"`
}

// RequestError reports required request fields that were absent. The run is
// rejected before any collaborator is contacted.
type RequestError struct {
	MissingFields []string
}

func (e *RequestError) Error() string {
	return "missing required fields: " + strings.Join(e.MissingFields, ", ")
}

// PlaceholderError reports template placeholders with no matching
// spreadsheet column. The run is rejected before any row is dispatched.
type PlaceholderError struct {
	Missing []string
}

func (e *PlaceholderError) Error() string {
	return "missing columns in spreadsheet for placeholders: " + strings.Join(e.Missing, ", ")
}

// RunResult is the aggregate outcome of one run.
type RunResult struct {
	RunID            string
	Timestamp        string
	QueueMessageID   string
	FailedRecipients []string
}

// Partial reports whether at least one row failed delivery.
func (r *RunResult) Partial() bool {
	return len(r.FailedRecipients) > 0
}

// Dispatcher coordinates one dispatch run: fetch template and recipient
// table, validate placeholders, then render, deliver and record every row.
type Dispatcher struct {
	store       ObjectStore
	sender      Sender
	recorder    Recorder
	concurrency int
}

// NewDispatcher creates a Dispatcher with injected collaborators.
// Concurrency below 1 is treated as strictly sequential dispatch.
func NewDispatcher(store ObjectStore, sender Sender, recorder Recorder, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		store:       store,
		sender:      sender,
		recorder:    recorder,
		concurrency: concurrency,
	}
}

// Dispatch runs the pipeline for one request. It returns a RequestError or
// PlaceholderError when the input is rejected, any other error when setup
// fails before dispatch begins. Once row dispatch has started the run always
// attempts every row; per-row failures surface only in FailedRecipients.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*RunResult, error) {
	var missing []string
	if req.TemplateFileID == "" {
		missing = append(missing, "template_file_id")
	}
	if req.SpreadsheetFileID == "" {
		missing = append(missing, "spreadsheet_file_id")
	}
	if req.Subject == "" {
		missing = append(missing, "subject")
	}
	if req.DisplayName == "" {
		missing = append(missing, "display_name")
	}
	if len(missing) > 0 {
		return nil, &RequestError{MissingFields: missing}
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	template, sheet, err := d.fetchInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	placeholders := ExtractPlaceholders(template)
	if missingCols := MissingColumns(placeholders, sheet.Columns); len(missingCols) > 0 {
		return nil, &PlaceholderError{Missing: missingCols}
	}

	failed := d.dispatchRows(ctx, runID, req, template, placeholders, sheet.Rows)

	return &RunResult{
		RunID:            runID,
		Timestamp:        time.Now().Format(TimeFormat),
		QueueMessageID:   uuid.NewString(),
		FailedRecipients: failed,
	}, nil
}

// fetchInputs retrieves the template and the recipient table in parallel.
// Either failure aborts the run before any delivery is attempted.
func (d *Dispatcher) fetchInputs(ctx context.Context, req DispatchRequest) (string, *Sheet, error) {
	var (
		wg        sync.WaitGroup
		tmplBytes []byte
		sheet     *Sheet
		tmplErr   error
		sheetErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		tmplBytes, tmplErr = d.store.Get(ctx, req.TemplateFileID)
	}()
	go func() {
		defer wg.Done()
		var data []byte
		data, sheetErr = d.store.Get(ctx, req.SpreadsheetFileID)
		if sheetErr == nil {
			sheet, sheetErr = ParseSheet(req.SpreadsheetFileID, data)
		}
	}()
	wg.Wait()

	if tmplErr != nil {
		return "", nil, fmt.Errorf("failed to fetch template %s: %w", req.TemplateFileID, tmplErr)
	}
	if sheetErr != nil {
		return "", nil, fmt.Errorf("failed to fetch spreadsheet %s: %w", req.SpreadsheetFileID, sheetErr)
	}

	template := strings.ReplaceAll(string(tmplBytes), "\r", "")
	return template, sheet, nil
}

// dispatchRows processes every row and returns the addresses of rows that
// failed. One row's failure never halts the loop.
func (d *Dispatcher) dispatchRows(ctx context.Context, runID string, req DispatchRequest, template string, placeholders []string, rows []Row) []string {
	var (
		mu     sync.Mutex
		failed []string
	)

	// Each row's render, send and record happen back to back in one worker,
	// never interleaved with another row's steps.
	process := func(row Row) {
		status := d.dispatchRow(req, template, placeholders, row)
		d.record(ctx, runID, req, row[RecipientColumn], status)
		if status == database.StatusFailed {
			mu.Lock()
			failed = append(failed, row[RecipientColumn])
			mu.Unlock()
		}
	}

	if d.concurrency == 1 {
		for _, row := range rows {
			process(row)
		}
		return failed
	}

	jobs := make(chan Row)
	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				process(row)
			}
		}()
	}
	for _, row := range rows {
		jobs <- row
	}
	close(jobs)
	wg.Wait()

	return failed
}

// dispatchRow renders and delivers one row, returning the delivery status.
// All failures here are recoverable per-row failures: logged and converted
// to a FAILED status, never propagated.
func (d *Dispatcher) dispatchRow(req DispatchRequest, template string, placeholders []string, row Row) string {
	toAddress := row[RecipientColumn]
	if toAddress == "" {
		log.Printf("No email address provided for %s. Skipping...", rowName(row))
		return database.StatusFailed
	}

	body, err := RenderRow(template, placeholders, row)
	if err != nil {
		log.Printf("Failed to render message for %s: %v", rowName(row), err)
		return database.StatusFailed
	}

	if err := d.sender.Send(req.DisplayName, toAddress, req.Subject, body); err != nil {
		log.Printf("Failed to send email to %s: %v", rowName(row), err)
		return database.StatusFailed
	}
	return database.StatusSuccess
}

// record persists the outcome for one row. Persistence failures are logged
// and swallowed; they never change the row's delivery status or halt the run.
func (d *Dispatcher) record(ctx context.Context, runID string, req DispatchRequest, toAddress, status string) {
	rec := database.DispatchRecord{
		RecordID:          uuid.NewString(),
		RunID:             runID,
		DisplayName:       req.DisplayName,
		Status:            status,
		RecipientEmail:    toAddress,
		TemplateFileID:    req.TemplateFileID,
		SpreadsheetFileID: req.SpreadsheetFileID,
		CreatedAt:         time.Now(),
	}
	if err := d.recorder.Save(ctx, rec); err != nil {
		log.Printf("Failed to save dispatch record for run %s: %v", runID, err)
	}
}

// rowName is only used in logs. The response contract carries bare addresses.
func rowName(row Row) string {
	if name := row["Name"]; name != "" {
		return name
	}
	return "Unknown"
}
