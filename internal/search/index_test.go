package search

import (
	"path/filepath"
	"testing"

	"github.com/hyperjump/tafsir/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestIndexAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	records := []models.CommentaryRecord{
		{SourceID: "src", Chapter: 1, Verse: 1, Text: "In the name of Allah the Most Merciful"},
		{SourceID: "src", Chapter: 1, Verse: 2, Text: "All praise is due to Allah"},
		{SourceID: "src", Chapter: 2, Verse: 255, Text: "The verse of the Throne"},
	}
	if err := ix.IndexRecords(records); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Search("throne", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Chapter != 2 || hits[0].Verse != 255 || hits[0].SourceID != "src" {
		t.Errorf("hit = %+v", hits[0])
	}

	hits, err = ix.Search("allah", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits for allah, want 2", len(hits))
	}
}

func TestDeleteSource(t *testing.T) {
	ix := newTestIndex(t)
	_ = ix.IndexRecords([]models.CommentaryRecord{
		{SourceID: "keep", Chapter: 1, Verse: 1, Text: "shared term mercy"},
		{SourceID: "drop", Chapter: 1, Verse: 1, Text: "shared term mercy"},
	})

	if err := ix.DeleteSource("drop"); err != nil {
		t.Fatal(err)
	}
	hits, err := ix.Search("mercy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].SourceID != "keep" {
		t.Errorf("hits after delete = %+v", hits)
	}
}

func TestParseDocID(t *testing.T) {
	h, ok := parseDocID("en-tafsir-ibn-kathir:2:255")
	if !ok || h.SourceID != "en-tafsir-ibn-kathir" || h.Chapter != 2 || h.Verse != 255 {
		t.Errorf("parsed %+v, %v", h, ok)
	}
	if _, ok := parseDocID("garbage"); ok {
		t.Error("expected failure for malformed id")
	}
}
