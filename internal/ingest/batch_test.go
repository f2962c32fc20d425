package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/tafsir/internal/models"
)

// captureSink records flushed batches.
type captureSink struct {
	batches [][]models.CommentaryRecord
	fail    bool
}

func (s *captureSink) InsertRecords(_ context.Context, records []models.CommentaryRecord) error {
	if s.fail {
		return errors.New("sink failure")
	}
	batch := make([]models.CommentaryRecord, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func TestBatchWriter_flushesAtThreshold(t *testing.T) {
	sink := &captureSink{}
	w := NewBatchWriter(sink, 3)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		if err := w.Add(ctx, models.CommentaryRecord{SourceID: "s", Chapter: 1, Verse: i, Text: "t"}); err != nil {
			t.Fatal(err)
		}
	}
	if len(sink.batches) != 2 {
		t.Fatalf("got %d batches before final flush, want 2", len(sink.batches))
	}
	if w.Buffered() != 1 {
		t.Errorf("buffered = %d, want 1", w.Buffered())
	}

	if err := w.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("got %d batches after final flush, want 3", len(sink.batches))
	}
	if w.Written() != 7 {
		t.Errorf("written = %d, want 7", w.Written())
	}

	// Order preserved across batches.
	verse := 1
	for _, batch := range sink.batches {
		for _, rec := range batch {
			if rec.Verse != verse {
				t.Fatalf("order broken: got verse %d, want %d", rec.Verse, verse)
			}
			verse++
		}
	}
}

func TestBatchWriter_memoryBounded(t *testing.T) {
	sink := &captureSink{}
	w := NewBatchWriter(sink, 5)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if err := w.Add(ctx, models.CommentaryRecord{SourceID: "s", Chapter: 1, Verse: i + 1, Text: "t"}); err != nil {
			t.Fatal(err)
		}
		if w.Buffered() >= 5 {
			t.Fatalf("buffer grew to %d, threshold is 5", w.Buffered())
		}
	}
}

func TestBatchWriter_emptyFlushIsNoop(t *testing.T) {
	sink := &captureSink{}
	w := NewBatchWriter(sink, 3)
	if err := w.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sink.batches) != 0 {
		t.Error("empty flush should not call the sink")
	}
}

func TestBatchWriter_propagatesSinkError(t *testing.T) {
	sink := &captureSink{fail: true}
	w := NewBatchWriter(sink, 1)
	if err := w.Add(context.Background(), models.CommentaryRecord{}); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestBatchWriter_defaultSize(t *testing.T) {
	w := NewBatchWriter(&captureSink{}, 0)
	if w.size != DefaultBatchSize {
		t.Errorf("size = %d, want %d", w.size, DefaultBatchSize)
	}
}
