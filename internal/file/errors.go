package file

import "errors"

// Validation errors, rejected before any backend call.
var (
	// ErrNoFiles signals an upload batch with no files in it.
	ErrNoFiles = errors.New("no files in upload batch")
	// ErrEmptyPin signals a missing or empty pin where one is required.
	ErrEmptyPin = errors.New("pin must not be empty")
	// ErrNoIDs signals an empty file id set for pin assignment.
	ErrNoIDs = errors.New("file ids must not be empty")
	// ErrFileTooLarge signals that an upload exceeds the per-file limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Backend error kinds. Implementations wrap these so callers can classify
// failures with errors.Is without knowing which backend is live.
var (
	// ErrStorageWrite indicates the blob store failed to store file bytes.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrStorageResolve indicates a retrieval reference could not be produced.
	ErrStorageResolve = errors.New("storage resolve failed")
	// ErrPersistenceWrite indicates the metadata store failed to write a record.
	ErrPersistenceWrite = errors.New("metadata write failed")
	// ErrPersistenceQuery indicates the metadata store failed to answer a query.
	ErrPersistenceQuery = errors.New("metadata query failed")
)
