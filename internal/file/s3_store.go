package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

const resolveTimeout = 5 * time.Second

// S3Store writes blobs to an S3-compatible bucket (AWS S3, Cloudflare R2,
// MinIO). Retrieval references are presigned GET URLs and expire after the
// configured TTL, so callers must re-resolve on every listing rather than
// cache them.
type S3Store struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewS3Store wraps an established client for the given bucket.
func NewS3Store(client *minio.Client, bucket string, presignTTL time.Duration) *S3Store {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &S3Store{
		client:     client,
		bucket:     bucket,
		presignTTL: presignTTL,
	}
}

// Store uploads the content under a freshly generated key.
func (s *S3Store) Store(ctx context.Context, content io.Reader, size int64, originalName, mimetype string) (StoredBlob, error) {
	key := newStorageKey(originalName)

	info, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		ContentType: mimetype,
	})
	if err != nil {
		return StoredBlob{}, fmt.Errorf("%w: put object %q: %v", ErrStorageWrite, key, err)
	}

	stored := info.Size
	if stored <= 0 {
		stored = size
	}

	return StoredBlob{
		StorageKey: key,
		Size:       stored,
		Mimetype:   mimetype,
	}, nil
}

// Resolve issues a presigned GET URL for the key. The disposition header
// makes browsers download the file instead of rendering it inline.
func (s *S3Store) Resolve(ctx context.Context, storageKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", storageKey))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, storageKey, s.presignTTL, reqParams)
	if err != nil {
		return "", fmt.Errorf("%w: presign %q: %v", ErrStorageResolve, storageKey, err)
	}

	return u.String(), nil
}
