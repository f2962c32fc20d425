package ingest

import (
	"context"

	"github.com/hyperjump/tafsir/internal/models"
)

// DefaultBatchSize is the record count at which a batch is flushed.
const DefaultBatchSize = 500

// RecordSink receives flushed batches. storage.ReplaceTxn satisfies it.
type RecordSink interface {
	InsertRecords(ctx context.Context, records []models.CommentaryRecord) error
}

// BatchWriter buffers records up to a fixed count and flushes them as a
// single sink call, bounding peak memory regardless of source size. Order
// within a batch is preserved and no record is dropped here.
type BatchWriter struct {
	sink    RecordSink
	size    int
	buf     []models.CommentaryRecord
	written int
}

// NewBatchWriter creates a writer flushing every size records.
// A non-positive size falls back to DefaultBatchSize.
func NewBatchWriter(sink RecordSink, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{
		sink: sink,
		size: size,
		buf:  make([]models.CommentaryRecord, 0, size),
	}
}

// Add buffers one record, flushing when the threshold is reached.
func (w *BatchWriter) Add(ctx context.Context, rec models.CommentaryRecord) error {
	w.buf = append(w.buf, rec)
	if len(w.buf) >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered records and resets the buffer. Called
// unconditionally at end-of-stream for the final partial batch.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.sink.InsertRecords(ctx, w.buf); err != nil {
		return err
	}
	w.written += len(w.buf)
	w.buf = w.buf[:0]
	return nil
}

// Written returns the number of records flushed so far.
func (w *BatchWriter) Written() int {
	return w.written
}

// Buffered returns the number of records currently held in memory.
func (w *BatchWriter) Buffered() int {
	return len(w.buf)
}
