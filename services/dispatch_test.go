package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"mail-dispatcher/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []string
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

type sentMail struct {
	DisplayName string
	To          string
	Subject     string
	Body        string
}

type fakeSender struct {
	mu     sync.Mutex
	failTo map[string]bool
	sent   []sentMail
}

func (f *fakeSender) Send(displayName, toAddress, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[toAddress] {
		return errors.New("smtp rejected")
	}
	f.sent = append(f.sent, sentMail{displayName, toAddress, subject, htmlBody})
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	err     error
	records []database.DispatchRecord
}

func (f *fakeRecorder) Save(ctx context.Context, rec database.DispatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func validRequest() DispatchRequest {
	return DispatchRequest{
		TemplateFileID:    "welcome.html",
		SpreadsheetFileID: "recipients.csv",
		Subject:           "Welcome",
		DisplayName:       "Campus Team",
	}
}

func storeWith(template, csvData string) *fakeStore {
	return &fakeStore{objects: map[string][]byte{
		"welcome.html":   []byte(template),
		"recipients.csv": []byte(csvData),
	}}
}

func TestDispatch_AllRowsSucceed(t *testing.T) {
	t.Parallel()

	store := storeWith(
		"Hello {{Name}}, see you at {{Email}}",
		"Name,Email\nAda,ada@example.com\nGrace,grace@example.com\nMary,mary@example.com\n",
	)
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 1)

	result, err := d.Dispatch(context.Background(), validRequest())
	require.NoError(t, err)

	assert.False(t, result.Partial())
	assert.Empty(t, result.FailedRecipients)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.QueueMessageID)
	assert.NotEmpty(t, result.Timestamp)

	require.Len(t, sender.sent, 3)
	assert.Equal(t, "Hello Ada, see you at ada@example.com", sender.sent[0].Body)
	assert.Equal(t, "Campus Team", sender.sent[0].DisplayName)

	require.Len(t, recorder.records, 3)
	for _, rec := range recorder.records {
		assert.Equal(t, database.StatusSuccess, rec.Status)
		assert.Equal(t, result.RunID, rec.RunID)
		assert.NotEmpty(t, rec.RecordID)
	}
}

func TestDispatch_MissingFieldsRejectedBeforeFetch(t *testing.T) {
	t.Parallel()

	store := storeWith("Hi", "Email\n")
	d := NewDispatcher(store, &fakeSender{}, &fakeRecorder{}, 1)

	_, err := d.Dispatch(context.Background(), DispatchRequest{Subject: "only subject"})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, []string{"template_file_id", "spreadsheet_file_id", "display_name"}, reqErr.MissingFields)
	assert.Empty(t, store.calls, "no collaborator should be contacted on rejection")
}

func TestDispatch_UnmatchedPlaceholdersRejected(t *testing.T) {
	t.Parallel()

	store := storeWith(
		"Call {{Name}} at {{Phone}}",
		"Name,Email\nAda,ada@example.com\n",
	)
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 1)

	_, err := d.Dispatch(context.Background(), validRequest())

	var phErr *PlaceholderError
	require.ErrorAs(t, err, &phErr)
	assert.Equal(t, []string{"Phone"}, phErr.Missing)
	assert.Empty(t, sender.sent, "no delivery may happen on rejection")
	assert.Empty(t, recorder.records)
}

func TestDispatch_RowWithoutAddressIsFailedWithoutSending(t *testing.T) {
	t.Parallel()

	store := storeWith(
		"Hi {{Name}}",
		"Name,Email\nAda,ada@example.com\nGrace,\nMary,mary@example.com\n",
	)
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 1)

	result, err := d.Dispatch(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, result.Partial())
	assert.Equal(t, []string{""}, result.FailedRecipients)

	require.Len(t, sender.sent, 2, "the address-less row must never reach the sender")
	require.Len(t, recorder.records, 3, "every row gets a record regardless of outcome")

	failedCount := 0
	for _, rec := range recorder.records {
		if rec.Status == database.StatusFailed {
			failedCount++
		}
	}
	assert.Equal(t, 1, failedCount)
}

func TestDispatch_DeliveryFailureIsPartialSuccess(t *testing.T) {
	t.Parallel()

	store := storeWith(
		"Hi {{Name}}",
		"Name,Email\nAda,ada@example.com\nGrace,grace@example.com\n",
	)
	sender := &fakeSender{failTo: map[string]bool{"grace@example.com": true}}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 1)

	result, err := d.Dispatch(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, result.Partial())
	assert.Equal(t, []string{"grace@example.com"}, result.FailedRecipients)
	require.Len(t, recorder.records, 2)
	assert.Equal(t, database.StatusSuccess, recorder.records[0].Status)
	assert.Equal(t, database.StatusFailed, recorder.records[1].Status)
}

func TestDispatch_EmptyTableSucceedsWithZeroRecords(t *testing.T) {
	t.Parallel()

	store := storeWith("Hello!", "Name,Email\n")
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 1)

	result, err := d.Dispatch(context.Background(), validRequest())
	require.NoError(t, err)

	assert.False(t, result.Partial())
	assert.Empty(t, sender.sent)
	assert.Empty(t, recorder.records)
}

func TestDispatch_SuppliedRunIDCarriedOnEveryRecord(t *testing.T) {
	t.Parallel()

	store := storeWith("Hi {{Name}}", "Name,Email\nAda,ada@example.com\nGrace,grace@example.com\n")
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, &fakeSender{}, recorder, 1)

	req := validRequest()
	req.RunID = "run-42"
	result, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "run-42", result.RunID)
	require.Len(t, recorder.records, 2)
	for _, rec := range recorder.records {
		assert.Equal(t, "run-42", rec.RunID)
	}
}

func TestDispatch_RecorderFailureNeverChangesOutcome(t *testing.T) {
	t.Parallel()

	store := storeWith("Hi {{Name}}", "Name,Email\nAda,ada@example.com\n")
	sender := &fakeSender{}
	recorder := &fakeRecorder{err: errors.New("db down")}
	d := NewDispatcher(store, sender, recorder, 1)

	result, err := d.Dispatch(context.Background(), validRequest())
	require.NoError(t, err)

	assert.False(t, result.Partial())
	require.Len(t, sender.sent, 1)
}

func TestDispatch_FetchFailureAbortsBeforeAnyDelivery(t *testing.T) {
	t.Parallel()

	store := &fakeStore{objects: map[string][]byte{
		"recipients.csv": []byte("Name,Email\nAda,ada@example.com\n"),
	}}
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 1)

	_, err := d.Dispatch(context.Background(), validRequest())
	require.Error(t, err)

	var reqErr *RequestError
	assert.False(t, errors.As(err, &reqErr))
	assert.Empty(t, sender.sent)
	assert.Empty(t, recorder.records)
}

func TestDispatch_BoundedWorkerPool(t *testing.T) {
	t.Parallel()

	csvData := "Name,Email\n"
	for i := 0; i < 20; i++ {
		csvData += fmt.Sprintf("User%d,user%d@example.com\n", i, i)
	}
	store := storeWith("Hi {{Name}}", csvData)
	sender := &fakeSender{failTo: map[string]bool{"user7@example.com": true}}
	recorder := &fakeRecorder{}
	d := NewDispatcher(store, sender, recorder, 4)

	result, err := d.Dispatch(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"user7@example.com"}, result.FailedRecipients)
	assert.Len(t, sender.sent, 19)
	assert.Len(t, recorder.records, 20)
}
