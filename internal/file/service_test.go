package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestUploadRoundTripKeepsInputFields(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	pin := mustPin(t, "1234")
	records, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "notes.txt", Mimetype: "text/plain", Size: 11, Content: strings.NewReader("hello world")},
	}, pin)
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	listed, err := service.ListByPin(context.Background(), "1234", "", "")
	if err != nil {
		t.Fatalf("ListByPin returned error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 record under pin, got %d", len(listed))
	}

	rec := listed[0]
	if rec.OriginalName != "notes.txt" {
		t.Fatalf("unexpected original name: %s", rec.OriginalName)
	}
	if rec.Size != 11 {
		t.Fatalf("unexpected size: %d", rec.Size)
	}
	if rec.Mimetype != "text/plain" {
		t.Fatalf("unexpected mimetype: %s", rec.Mimetype)
	}
	if rec.Pin.Value() != "1234" {
		t.Fatalf("unexpected pin: %q", rec.Pin.Value())
	}
	if rec.DownloadURL == "" {
		t.Fatalf("expected a download url to be attached")
	}
}

func TestUploadDateHasMillisecondPrecision(t *testing.T) {
	// BSON dates only keep milliseconds; the coordinator truncates up front
	// so the persisted timestamp is identical on both metadata backends.
	service := newTestService(newFakeBlobStore(), newMemMetadataStore())
	service.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	}

	records, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "a.txt", Size: 1, Content: strings.NewReader("a")},
	}, NoPin())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	want := time.Date(2024, 3, 1, 12, 0, 0, 123000000, time.UTC)
	if !records[0].UploadDate.Equal(want) {
		t.Fatalf("expected upload date truncated to %v, got %v", want, records[0].UploadDate)
	}
}

func TestUploadWithoutPinIsAnonymous(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	_, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "a.bin", Size: 3, Content: bytes.NewReader([]byte{1, 2, 3})},
	}, NoPin())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	anonymous, err := service.ListUnassigned(context.Background())
	if err != nil {
		t.Fatalf("ListUnassigned returned error: %v", err)
	}
	if len(anonymous) != 1 {
		t.Fatalf("expected 1 anonymous record, got %d", len(anonymous))
	}
	if anonymous[0].Pin.Assigned() {
		t.Fatalf("expected record to be unassigned")
	}

	scoped, err := service.ListByPin(context.Background(), "1234", "", "")
	if err != nil {
		t.Fatalf("ListByPin returned error: %v", err)
	}
	if len(scoped) != 0 {
		t.Fatalf("anonymous record must not appear in a pin-scoped query")
	}
}

func TestUploadEmptyBatchRejected(t *testing.T) {
	service := newTestService(newFakeBlobStore(), newMemMetadataStore())

	_, err := service.Upload(context.Background(), nil, NoPin())
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestUploadAbortsBatchOnBlobFailureKeepingEarlierFiles(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.failOnStore = 2 // second Store call fails
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	uploads := []Upload{
		{OriginalName: "first.txt", Size: 1, Content: strings.NewReader("a")},
		{OriginalName: "second.txt", Size: 1, Content: strings.NewReader("b")},
		{OriginalName: "third.txt", Size: 1, Content: strings.NewReader("c")},
	}

	_, err := service.Upload(context.Background(), uploads, NoPin())
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}

	remaining, err := service.ListUnassigned(context.Background())
	if err != nil {
		t.Fatalf("ListUnassigned returned error: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected exactly the first file committed, got %d records", len(remaining))
	}
	if remaining[0].OriginalName != "first.txt" {
		t.Fatalf("expected first.txt committed, got %s", remaining[0].OriginalName)
	}
}

func TestUploadAbortsBatchOnPersistFailure(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	meta.failOnPersist = 2
	service := newTestService(blobs, meta)

	uploads := []Upload{
		{OriginalName: "first.txt", Size: 1, Content: strings.NewReader("a")},
		{OriginalName: "second.txt", Size: 1, Content: strings.NewReader("b")},
	}

	_, err := service.Upload(context.Background(), uploads, NoPin())
	if !errors.Is(err, ErrPersistenceWrite) {
		t.Fatalf("expected ErrPersistenceWrite, got %v", err)
	}
	if len(meta.records) != 1 {
		t.Fatalf("expected 1 committed record, got %d", len(meta.records))
	}
}

func TestResolveFailureDoesNotFailListing(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	_, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "a.txt", Size: 1, Content: strings.NewReader("a")},
	}, mustPin(t, "77"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	blobs.resolveErr = fmt.Errorf("%w: endpoint unreachable", ErrStorageResolve)

	records, err := service.ListByPin(context.Background(), "77", "", "")
	if err != nil {
		t.Fatalf("expected listing to succeed despite resolve failure, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].DownloadURL != "" {
		t.Fatalf("expected empty download url on resolve failure, got %q", records[0].DownloadURL)
	}
}

func TestListByPinRequiresPin(t *testing.T) {
	service := newTestService(newFakeBlobStore(), newMemMetadataStore())

	if _, err := service.ListByPin(context.Background(), "", "", ""); !errors.Is(err, ErrEmptyPin) {
		t.Fatalf("expected ErrEmptyPin, got %v", err)
	}
}

func TestAssignPinMovesAnonymousRecords(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	records, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "a.txt", Size: 1, Content: strings.NewReader("a")},
	}, NoPin())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	result, err := service.AssignPin(context.Background(), "9999", []string{records[0].ID})
	if err != nil {
		t.Fatalf("AssignPin returned error: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("expected count 1, got %d", result.Count)
	}
	if len(result.Records) != 1 || result.Records[0].Pin.Value() != "9999" {
		t.Fatalf("expected updated record with pin 9999, got %+v", result.Records)
	}

	anonymous, _ := service.ListUnassigned(context.Background())
	if len(anonymous) != 0 {
		t.Fatalf("expected no anonymous records after assignment, got %d", len(anonymous))
	}

	scoped, _ := service.ListByPin(context.Background(), "9999", "", "")
	if len(scoped) != 1 {
		t.Fatalf("expected record under new pin, got %d", len(scoped))
	}
}

func TestAssignPinIsIdempotent(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	records, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "a.txt", Size: 1, Content: strings.NewReader("a")},
	}, NoPin())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	ids := []string{records[0].ID}

	first, err := service.AssignPin(context.Background(), "42", ids)
	if err != nil {
		t.Fatalf("first AssignPin returned error: %v", err)
	}
	second, err := service.AssignPin(context.Background(), "42", ids)
	if err != nil {
		t.Fatalf("second AssignPin returned error: %v", err)
	}

	if first.Count != second.Count {
		t.Fatalf("expected identical counts, got %d then %d", first.Count, second.Count)
	}
	if second.Records[0].Pin.Value() != "42" {
		t.Fatalf("expected pin 42 after second assignment, got %q", second.Records[0].Pin.Value())
	}
}

func TestAssignPinSkipsUnknownIDs(t *testing.T) {
	blobs := newFakeBlobStore()
	meta := newMemMetadataStore()
	service := newTestService(blobs, meta)

	records, err := service.Upload(context.Background(), []Upload{
		{OriginalName: "a.txt", Size: 1, Content: strings.NewReader("a")},
	}, NoPin())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	result, err := service.AssignPin(context.Background(), "7", []string{records[0].ID, "999999"})
	if err != nil {
		t.Fatalf("AssignPin returned error: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("expected unknown id to be skipped, count %d", result.Count)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected only the existing record in the snapshot, got %d", len(result.Records))
	}
}

func TestAssignPinValidation(t *testing.T) {
	service := newTestService(newFakeBlobStore(), newMemMetadataStore())

	if _, err := service.AssignPin(context.Background(), "", []string{"1"}); !errors.Is(err, ErrEmptyPin) {
		t.Fatalf("expected ErrEmptyPin, got %v", err)
	}
	if _, err := service.AssignPin(context.Background(), "1234", nil); !errors.Is(err, ErrNoIDs) {
		t.Fatalf("expected ErrNoIDs, got %v", err)
	}
}

func TestStorageKeysAreUniqueForIdenticalNames(t *testing.T) {
	blobs := newFakeBlobStore()
	service := newTestService(blobs, newMemMetadataStore())

	var uploads []Upload
	for i := 0; i < 50; i++ {
		uploads = append(uploads, Upload{OriginalName: "same.txt", Size: 1, Content: strings.NewReader("x")})
	}

	records, err := service.Upload(context.Background(), uploads, NoPin())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.StorageKey] {
			t.Fatalf("duplicate storage key %q", rec.StorageKey)
		}
		seen[rec.StorageKey] = true
	}
}

// --- helpers & fakes ---

func newTestService(blobs BlobStore, meta MetadataStore) *Service {
	s := NewService(blobs, meta, nil)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return s
}

func mustPin(t *testing.T, value string) Pin {
	t.Helper()
	pin, err := AssignedPin(value)
	if err != nil {
		t.Fatalf("AssignedPin(%q): %v", value, err)
	}
	return pin
}

type fakeBlobStore struct {
	stored      map[string][]byte
	storeCalls  int
	failOnStore int // 1-based call number to fail on, 0 = never
	resolveErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{stored: make(map[string][]byte)}
}

func (f *fakeBlobStore) Store(ctx context.Context, content io.Reader, size int64, originalName, mimetype string) (StoredBlob, error) {
	f.storeCalls++
	if f.failOnStore != 0 && f.storeCalls == f.failOnStore {
		return StoredBlob{}, fmt.Errorf("%w: disk full", ErrStorageWrite)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return StoredBlob{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	key := newStorageKey(originalName)
	f.stored[key] = data

	return StoredBlob{StorageKey: key, Size: int64(len(data)), Mimetype: mimetype}, nil
}

func (f *fakeBlobStore) Resolve(ctx context.Context, storageKey string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	if _, ok := f.stored[storageKey]; !ok {
		return "", fmt.Errorf("%w: unknown key %q", ErrStorageResolve, storageKey)
	}
	return "/uploads/" + storageKey, nil
}

// memMetadataStore is an in-memory MetadataStore that follows the same
// ordering contract as the real backends via SortRecords.
type memMetadataStore struct {
	records       map[string]Record
	nextID        int64
	persistCalls  int
	failOnPersist int // 1-based call number to fail on, 0 = never
}

func newMemMetadataStore() *memMetadataStore {
	return &memMetadataStore{records: make(map[string]Record), nextID: 1}
}

func (m *memMetadataStore) Persist(ctx context.Context, rec Record) (Record, error) {
	m.persistCalls++
	if m.failOnPersist != 0 && m.persistCalls == m.failOnPersist {
		return Record{}, fmt.Errorf("%w: connection reset", ErrPersistenceWrite)
	}

	rec.ID = strconv.FormatInt(m.nextID, 10)
	m.nextID++
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memMetadataStore) QueryByPin(ctx context.Context, pin string, opts ListOptions) ([]Record, error) {
	matched := []Record{}
	for _, rec := range m.records {
		if rec.Pin.Assigned() && rec.Pin.Value() == pin {
			matched = append(matched, rec)
		}
	}
	SortRecords(matched, opts)
	return matched, nil
}

func (m *memMetadataStore) QueryUnassigned(ctx context.Context) ([]Record, error) {
	matched := []Record{}
	for _, rec := range m.records {
		if !rec.Pin.Assigned() {
			matched = append(matched, rec)
		}
	}
	SortRecords(matched, DefaultListOptions())
	return matched, nil
}

func (m *memMetadataStore) ReassignPin(ctx context.Context, pin string, ids []string) (AssignResult, error) {
	result := AssignResult{Records: []Record{}}
	for _, id := range ids {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		rec.Pin = PinFromPtr(&pin)
		m.records[id] = rec
		result.Count++
		result.Records = append(result.Records, rec)
	}
	SortRecords(result.Records, ListOptions{Field: SortByDate, Order: OrderAsc})
	return result, nil
}
