package file

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// BlobStore durably stores raw file bytes and produces retrieval references.
// Selected once at process start; Store failures abort the surrounding
// operation while Resolve failures degrade gracefully.
type BlobStore interface {
	Store(ctx context.Context, content io.Reader, size int64, originalName, mimetype string) (StoredBlob, error)
	Resolve(ctx context.Context, storageKey string) (string, error)
}

// MetadataStore owns the canonical file records.
type MetadataStore interface {
	Persist(ctx context.Context, rec Record) (Record, error)
	QueryByPin(ctx context.Context, pin string, opts ListOptions) ([]Record, error)
	QueryUnassigned(ctx context.Context) ([]Record, error)
	ReassignPin(ctx context.Context, pin string, ids []string) (AssignResult, error)
}

// Service coordinates uploads, pin assignment and queries over whichever
// blob and metadata backends were selected at startup.
type Service struct {
	blobs BlobStore
	meta  MetadataStore
	logg  *zap.Logger
	now   func() time.Time
}

// NewService constructs the coordinator.
func NewService(blobs BlobStore, meta MetadataStore, logg *zap.Logger) *Service {
	if logg == nil {
		logg = zap.NewNop()
	}
	return &Service{
		blobs: blobs,
		meta:  meta,
		logg:  logg,
		now:   time.Now,
	}
}

// Upload stores each file's bytes and then its metadata, sequentially. The
// first failure aborts the batch; files committed earlier in the batch stay
// committed — there is no compensating rollback and no cross-file atomicity.
func (s *Service) Upload(ctx context.Context, uploads []Upload, pin Pin) ([]Record, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	records := make([]Record, 0, len(uploads))
	for _, up := range uploads {
		blob, err := s.blobs.Store(ctx, up.Content, up.Size, up.OriginalName, up.Mimetype)
		if err != nil {
			return nil, err
		}

		rec := Record{
			OriginalName: up.OriginalName,
			StorageKey:   blob.StorageKey,
			Size:         blob.Size,
			Mimetype:     blob.Mimetype,
			// Millisecond precision is the finest BSON dates preserve, so
			// both metadata backends round-trip the same timestamp.
			UploadDate:   s.now().UTC().Truncate(time.Millisecond),
			Pin:          pin,
		}

		stored, err := s.meta.Persist(ctx, rec)
		if err != nil {
			return nil, err
		}

		s.attachReference(ctx, &stored)
		records = append(records, stored)
	}

	return records, nil
}

// ListByPin returns the records scoped to pin, sorted per the options.
// Unrecognized sort inputs fall back to date descending.
func (s *Service) ListByPin(ctx context.Context, pin, sortBy, order string) ([]Record, error) {
	if pin == "" {
		return nil, ErrEmptyPin
	}

	records, err := s.meta.QueryByPin(ctx, pin, ParseListOptions(sortBy, order))
	if err != nil {
		return nil, err
	}

	s.attachReferences(ctx, records)
	return records, nil
}

// ListUnassigned returns anonymous records, newest first.
func (s *Service) ListUnassigned(ctx context.Context) ([]Record, error) {
	records, err := s.meta.QueryUnassigned(ctx)
	if err != nil {
		return nil, err
	}

	s.attachReferences(ctx, records)
	return records, nil
}

// AssignPin sets pin on every existing record in ids. Unknown ids are
// skipped; reassigning an identical pin is idempotent and still counted.
func (s *Service) AssignPin(ctx context.Context, pin string, ids []string) (AssignResult, error) {
	if pin == "" {
		return AssignResult{}, ErrEmptyPin
	}
	if len(ids) == 0 {
		return AssignResult{}, ErrNoIDs
	}

	result, err := s.meta.ReassignPin(ctx, pin, ids)
	if err != nil {
		return AssignResult{}, err
	}

	s.attachReferences(ctx, result.Records)
	return result, nil
}

// attachReference resolves a retrieval reference and attaches it to the
// record. Resolve failures are non-fatal: the record itself is not in
// question, so it is returned without a reference.
func (s *Service) attachReference(ctx context.Context, rec *Record) {
	url, err := s.blobs.Resolve(ctx, rec.StorageKey)
	if err != nil {
		s.logg.Warn("resolve storage key",
			zap.String("storage_key", rec.StorageKey),
			zap.Error(err),
		)
		return
	}
	rec.DownloadURL = url
}

func (s *Service) attachReferences(ctx context.Context, records []Record) {
	for i := range records {
		s.attachReference(ctx, &records[i])
	}
}
