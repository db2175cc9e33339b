package compress

import (
	"ecm-api/internal/models"
)

// Queue is the bounded hand-off buffer between upload completion and the
// background compression workers. It is created at process start, injected
// into the producers and workers, and closed at shutdown.
type Queue struct {
	ch chan models.File
}

// NewQueue creates a queue holding at most size records.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{ch: make(chan models.File, size)}
}

// Offer hands a record to the workers without blocking. When the queue is
// full the record is dropped and false is returned; a slow transcoder must
// never stall or fail an upload.
func (q *Queue) Offer(file models.File) bool {
	select {
	case q.ch <- file:
		return true
	default:
		return false
	}
}

// Close stops accepting records and lets workers drain what remains.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of queued records.
func (q *Queue) Len() int {
	return len(q.ch)
}
