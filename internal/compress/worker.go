package compress

import (
	"context"
	"log"
	"strings"
	"sync"

	"ecm-api/internal/models"
)

// Worker drains the queue and feeds stored files to the transcoder.
// Compression is best-effort post-processing: a failed item is logged and
// the worker moves on, it never propagates back to the upload path.
type Worker struct {
	queue      *Queue
	transcoder Transcoder
}

// NewWorker creates a worker bound to a queue and a transcoder.
func NewWorker(queue *Queue, transcoder Transcoder) *Worker {
	return &Worker{queue: queue, transcoder: transcoder}
}

// Run consumes records until the queue is closed and drained or the context
// is cancelled. It is safe to run several workers on one queue.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case file, ok := <-w.queue.ch:
			if !ok {
				return
			}
			w.handle(ctx, file)
		}
	}
}

// RunPool starts n workers sharing the queue and returns a wait function.
func (w *Worker) RunPool(ctx context.Context, n int) func() {
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	return wg.Wait
}

func (w *Worker) handle(ctx context.Context, file models.File) {
	// Only video content is transcoded; everything else passes through.
	if !strings.HasPrefix(file.ContentType, "video/") {
		return
	}

	log.Printf("Compressing file: id=%s, path=%s, contentType=%s", file.ID, file.FilePath, file.ContentType)

	outputPath, err := w.transcoder.Compress(ctx, file.FilePath)
	if err != nil {
		log.Printf("Compression failed: id=%s, path=%s: %v", file.ID, file.FilePath, err)
		return
	}

	log.Printf("Compression finished: id=%s, output=%s", file.ID, outputPath)
}
