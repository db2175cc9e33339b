package storage

import "errors"

var (
	// ErrInvalidCategory is returned for a category outside the allowed charset.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrPathTraversal is returned when a resolved path escapes the storage root.
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInvalidFileName is returned for a file name that fails validation.
	ErrInvalidFileName = errors.New("invalid file name")
	// ErrWriteFailed is returned for any I/O failure during a streaming write.
	ErrWriteFailed = errors.New("write failed")
	// ErrFileTooLarge is returned when a stream exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrArchiveEntryFailed is returned on the archive stream when an entry
	// cannot be read after bytes for it were already flushed.
	ErrArchiveEntryFailed = errors.New("archive entry failed")
)
