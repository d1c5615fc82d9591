package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mail-dispatcher/database"
	"mail-dispatcher/services"
	"mail-dispatcher/storage"
	"mail-dispatcher/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DispatchResponse is the body returned for a completed run.
type DispatchResponse struct {
	Status           string   `json:"status"`
	Message          string   `json:"message"`
	RequestID        string   `json:"request_id"`
	Timestamp        string   `json:"timestamp"`
	QueueMessageID   string   `json:"queue_message_id"`
	FailedRecipients []string `json:"failed_recipients,omitempty"`
}

// DispatchHandler runs the dispatch pipeline for a JSON request.
// Responds 200 on full success, 207 when at least one row failed delivery,
// 400 on client input errors and 500 on anything else.
func DispatchHandler(dispatcher *services.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.DispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, "Invalid request payload", http.StatusBadRequest)
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), req)
		if err != nil {
			var reqErr *services.RequestError
			if errors.As(err, &reqErr) {
				errorResponse(w, "Missing required fields: "+strings.Join(reqErr.MissingFields, ", "), http.StatusBadRequest)
				return
			}
			var phErr *services.PlaceholderError
			if errors.As(err, &phErr) {
				errorResponse(w, "Missing columns in spreadsheet for placeholders: "+strings.Join(phErr.Missing, ", "), http.StatusBadRequest)
				return
			}
			log.Printf("Error dispatching run: %v", err)
			errorResponse(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := DispatchResponse{
			Status:           "success",
			Message:          "Mail request has been queued successfully.",
			RequestID:        result.RunID,
			Timestamp:        result.Timestamp,
			QueueMessageID:   result.QueueMessageID,
			FailedRecipients: result.FailedRecipients,
		}
		statusCode := http.StatusOK
		if result.Partial() {
			statusCode = http.StatusMultiStatus
		}
		respondWithJSON(w, statusCode, resp)
	}
}

// ListFilesHandler returns one page of stored file records. Supports limit,
// last_evaluated_key continuation token, a comma-separated file_extension
// filter, sort_by and sort_order query parameters.
func ListFilesHandler(files *database.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := database.FileListQuery{
			Limit:     database.DefaultPageSize,
			PageToken: r.URL.Query().Get("last_evaluated_key"),
			SortBy:    "created_at",
			SortOrder: "DESC",
		}
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
				q.Limit = parsed
			}
		}
		if sortBy := r.URL.Query().Get("sort_by"); sortBy != "" {
			q.SortBy = sortBy
		}
		if sortOrder := strings.ToUpper(r.URL.Query().Get("sort_order")); sortOrder == "ASC" || sortOrder == "DESC" {
			q.SortOrder = sortOrder
		}
		if extStr := r.URL.Query().Get("file_extension"); extStr != "" {
			for _, ext := range strings.Split(extStr, ",") {
				if ext = strings.TrimSpace(ext); ext != "" {
					q.Extensions = append(q.Extensions, ext)
				}
			}
		}

		page, err := files.List(r.Context(), q)
		if err != nil {
			log.Printf("Error listing file records: %v", err)
			errorResponse(w, "Internal server error fetching files", http.StatusInternalServerError)
			return
		}
		successResponse(w, "File records retrieved successfully", page)
	}
}

// UploadFileHandler stores one multipart file in the bucket and records its
// metadata so it shows up in the listing.
func UploadFileHandler(store *storage.S3Store, files *database.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			errorResponse(w, "Invalid multipart payload", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			errorResponse(w, "Field 'file' is required.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			log.Printf("Error reading uploaded file %s: %v", header.Filename, err)
			errorResponse(w, "Internal server error reading file", http.StatusInternalServerError)
			return
		}

		ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		contentType := header.Header.Get("Content-Type")
		fileID := uuid.NewString()

		// The object key doubles as the file id used by dispatch requests.
		key := fileID
		if ext != "" {
			key = fileID + "." + ext
		}

		if err := store.Put(r.Context(), key, data, contentType); err != nil {
			log.Printf("Error uploading file %s: %v", header.Filename, err)
			errorResponse(w, "Internal server error storing file", http.StatusInternalServerError)
			return
		}

		record := database.StoredFile{
			FileID:        fileID,
			FileName:      header.Filename,
			FileExtension: ext,
			ContentType:   contentType,
			FileSize:      int64(len(data)),
			CreatedAt:     time.Now(),
		}
		if err := files.Insert(r.Context(), record); err != nil {
			log.Printf("Error recording file %s: %v", header.Filename, err)
			errorResponse(w, "Internal server error recording file", http.StatusInternalServerError)
			return
		}

		successResponse(w, "File uploaded successfully", map[string]interface{}{
			"file_id": key,
		})
	}
}

// GetRunRecordsHandler returns every dispatch record created under one run.
func GetRunRecordsHandler(records *database.RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := mux.Vars(r)["run_id"]
		if runID == "" {
			errorResponse(w, "Run id is required.", http.StatusBadRequest)
			return
		}

		recs, err := records.ListByRun(r.Context(), runID)
		if err != nil {
			log.Printf("Error querying records for run %s: %v", runID, err)
			errorResponse(w, "Internal server error fetching records", http.StatusInternalServerError)
			return
		}
		successResponse(w, "Dispatch records retrieved successfully", recs)
	}
}

// GetStatsHandler returns today's SUCCESS/FAILED distribution.
func GetStatsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusCounts, err := utils.GetStatusDistribution(db)
		if err != nil {
			log.Printf("Error fetching dispatch stats: %v", err)
			errorResponse(w, "Internal server error fetching stats", http.StatusInternalServerError)
			return
		}
		successResponse(w, "Dispatch status distribution retrieved", statusCounts)
	}
}

// GetDailySendsHandler returns per-day dispatched row counts for the last
// 'days' days (default 7).
func GetDailySendsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 7
		if daysStr := r.URL.Query().Get("days"); daysStr != "" {
			if parsedDays, err := strconv.Atoi(daysStr); err == nil && parsedDays > 0 {
				days = parsedDays
			}
		}
		dailySends, err := utils.GetDailyDispatchCounts(db, days)
		if err != nil {
			log.Printf("Error fetching daily dispatch counts: %v", err)
			errorResponse(w, "Internal server error fetching daily sends", http.StatusInternalServerError)
			return
		}
		successResponse(w, "Daily dispatch counts retrieved", dailySends)
	}
}
