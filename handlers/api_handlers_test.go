package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mail-dispatcher/database"
	"mail-dispatcher/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore map[string][]byte

func (f fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

type fakeSender struct {
	failTo map[string]bool
}

func (f *fakeSender) Send(displayName, toAddress, subject, htmlBody string) error {
	if f.failTo[toAddress] {
		return fmt.Errorf("smtp rejected %s", toAddress)
	}
	return nil
}

type fakeRecorder struct {
	records []database.DispatchRecord
}

func (f *fakeRecorder) Save(ctx context.Context, rec database.DispatchRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func newTestDispatcher(failTo map[string]bool) (*services.Dispatcher, *fakeRecorder) {
	store := fakeStore{
		"welcome.html":   []byte("Hello {{Name}}!"),
		"recipients.csv": []byte("Name,Email\nAda,ada@example.com\nGrace,grace@example.com\n"),
	}
	recorder := &fakeRecorder{}
	d := services.NewDispatcher(store, &fakeSender{failTo: failTo}, recorder, 1)
	return d, recorder
}

func postDispatch(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/dispatch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestDispatchHandler_Success(t *testing.T) {
	t.Parallel()

	d, recorder := newTestDispatcher(nil)
	rec := postDispatch(t, DispatchHandler(d), `{
		"template_file_id": "welcome.html",
		"spreadsheet_file_id": "recipients.csv",
		"subject": "Welcome",
		"display_name": "Campus Team"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, resp.Timestamp)
	assert.NotEmpty(t, resp.QueueMessageID)
	assert.Empty(t, resp.FailedRecipients)
	assert.Len(t, recorder.records, 2)
}

func TestDispatchHandler_PartialSuccess(t *testing.T) {
	t.Parallel()

	d, recorder := newTestDispatcher(map[string]bool{"grace@example.com": true})
	rec := postDispatch(t, DispatchHandler(d), `{
		"template_file_id": "welcome.html",
		"spreadsheet_file_id": "recipients.csv",
		"subject": "Welcome",
		"display_name": "Campus Team"
	}`)

	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []string{"grace@example.com"}, resp.FailedRecipients)
	assert.Len(t, recorder.records, 2)
}

func TestDispatchHandler_MissingFieldsNamedInBody(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(nil)
	rec := postDispatch(t, DispatchHandler(d), `{
		"template_file_id": "welcome.html",
		"spreadsheet_file_id": "recipients.csv",
		"subject": "Welcome"
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "display_name")
}

func TestDispatchHandler_UnmatchedPlaceholdersListed(t *testing.T) {
	t.Parallel()

	store := fakeStore{
		"welcome.html":   []byte("Call {{Name}} at {{Phone}}"),
		"recipients.csv": []byte("Name,Email\nAda,ada@example.com\n"),
	}
	d := services.NewDispatcher(store, &fakeSender{}, &fakeRecorder{}, 1)

	rec := postDispatch(t, DispatchHandler(d), `{
		"template_file_id": "welcome.html",
		"spreadsheet_file_id": "recipients.csv",
		"subject": "Welcome",
		"display_name": "Campus Team"
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "Phone")
}

func TestDispatchHandler_FetchFailureIsGenericServerError(t *testing.T) {
	t.Parallel()

	d := services.NewDispatcher(fakeStore{}, &fakeSender{}, &fakeRecorder{}, 1)
	rec := postDispatch(t, DispatchHandler(d), `{
		"template_file_id": "welcome.html",
		"spreadsheet_file_id": "recipients.csv",
		"subject": "Welcome",
		"display_name": "Campus Team"
	}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestDispatchHandler_InvalidPayload(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(nil)
	rec := postDispatch(t, DispatchHandler(d), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
