package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

const defaultBufferSize = 32 * 1024

// Writer persists an incoming byte stream to a target path one chunk at a
// time. Memory use is bounded by the chunk buffer regardless of stream size,
// and a slow disk propagates as backpressure to the reader instead of
// unbounded buffering.
type Writer struct {
	bufSize int
}

// NewWriter creates a streaming writer with the given chunk buffer size.
func NewWriter(bufSize int) *Writer {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Writer{bufSize: bufSize}
}

// Write streams r to target and returns the number of bytes written, which
// is the authoritative file size. The target is opened with exclusive create
// semantics: an existing path is a hard error, never an overwrite. When
// maxBytes > 0 the stream is aborted as soon as the limit is crossed. On any
// failure the partial file is removed before the error is returned.
func (w *Writer) Write(ctx context.Context, r io.Reader, target string, maxBytes int64) (int64, error) {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", ErrWriteFailed, target, err)
	}

	abort := func(cause error) (int64, error) {
		f.Close()
		if rmErr := os.Remove(target); rmErr != nil {
			return 0, fmt.Errorf("%v (partial file cleanup also failed: %v)", cause, rmErr)
		}
		return 0, cause
	}

	buf := make([]byte, w.bufSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return abort(fmt.Errorf("%w: %v", ErrWriteFailed, err))
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if maxBytes > 0 && total > maxBytes {
				return abort(fmt.Errorf("%w: stream exceeds %d bytes", ErrFileTooLarge, maxBytes))
			}
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return abort(fmt.Errorf("%w: %v", ErrWriteFailed, writeErr))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return abort(fmt.Errorf("%w: %v", ErrWriteFailed, readErr))
		}
	}

	if err := f.Sync(); err != nil {
		return abort(fmt.Errorf("%w: sync: %v", ErrWriteFailed, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return 0, fmt.Errorf("%w: close: %v", ErrWriteFailed, err)
	}

	return total, nil
}
