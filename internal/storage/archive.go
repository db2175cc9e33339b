package storage

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// ArchiveEntry is one file scheduled for inclusion in a streamed archive.
type ArchiveEntry struct {
	// Name is the entry name inside the archive (the original file name).
	Name string
	// Path is the storage path the bytes are read from.
	Path string
	// Modified is recorded in the entry header.
	Modified time.Time
}

// Archiver produces a single streamed ZIP from a list of stored files.
type Archiver struct {
	bufSize int
}

// NewArchiver creates an archiver with the given copy buffer size.
func NewArchiver(bufSize int) *Archiver {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Archiver{bufSize: bufSize}
}

// Stream returns a reader producing a ZIP of the given entries, in order.
// Entries are read and archived incrementally through a bounded buffer, so
// total memory use is independent of aggregate file size. Production runs
// concurrently with consumption over an io.Pipe: a consumer that stops
// draining blocks the producer instead of growing a buffer.
//
// An entry whose file cannot be opened is skipped with a logged warning. A
// read failure mid-entry aborts the archive: bytes already flushed cannot be
// recalled, so the failure surfaces as the stream's terminal error. Closing
// the returned reader tears down the producer.
func (a *Archiver) Stream(ctx context.Context, entries []ArchiveEntry) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		zw := zip.NewWriter(pw)
		buf := make([]byte, a.bufSize)

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				zw.Close()
				pw.CloseWithError(err)
				return
			}
			if err := a.writeEntry(zw, entry, buf); err != nil {
				zw.Close()
				pw.CloseWithError(fmt.Errorf("%w: %s: %v", ErrArchiveEntryFailed, entry.Name, err))
				return
			}
		}

		err := zw.Close()
		pw.CloseWithError(err)
	}()

	return pr
}

func (a *Archiver) writeEntry(zw *zip.Writer, entry ArchiveEntry, buf []byte) error {
	f, err := os.Open(entry.Path)
	if err != nil {
		// Nothing written for this entry yet, the archive stays valid.
		log.Printf("Warning: skipping archive entry %s: %v", entry.Name, err)
		return nil
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: entry.Modified,
	})
	if err != nil {
		return err
	}

	_, err = io.CopyBuffer(w, f, buf)
	return err
}
