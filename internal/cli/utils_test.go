package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tafsir/internal/models"
	"github.com/hyperjump/tafsir/internal/search"
)

func TestParseOutputFormat(t *testing.T) {
	if f, err := ParseOutputFormat(""); err != nil || f != OutputText {
		t.Errorf("expected text default, got %q err %v", f, err)
	}
	if f, err := ParseOutputFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("expected json, got %q err %v", f, err)
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSourcesText(t *testing.T) {
	rows := []SourceRow{
		{
			CommentarySource: models.CommentarySource{
				ID: "en-tafsir-ibn-kathir", Name: "Tafsir Ibn Kathir",
				Language: "en", Kind: models.KindCommentary,
			},
			Ingested: true,
			Receipt: &models.IngestionReceipt{
				SourceID: "en-tafsir-ibn-kathir", RecordCount: 6236, ChapterCount: 114,
				IngestedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			CommentarySource: models.CommentarySource{
				ID: "ar-tafsir-jalalayn", Name: "Tafsir al-Jalalayn",
				Language: "ar", Kind: models.KindCommentary,
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteSources(&buf, rows, OutputText); err != nil {
		t.Fatalf("WriteSources: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "6236 records") {
		t.Errorf("expected record count in output:\n%s", out)
	}
	if !strings.Contains(out, "not ingested") {
		t.Errorf("expected not-ingested marker in output:\n%s", out)
	}
}

func TestWriteSourcesJSON(t *testing.T) {
	rows := []SourceRow{
		{
			CommentarySource: models.CommentarySource{ID: "a", Name: "A", Language: "en", Kind: models.KindCommentary},
		},
	}
	var buf bytes.Buffer
	if err := WriteSources(&buf, rows, OutputJSON); err != nil {
		t.Fatalf("WriteSources(json): %v", err)
	}
	var decoded []SourceRow
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != "a" {
		t.Errorf("unexpected decode: %+v", decoded)
	}
}

func TestWriteHits(t *testing.T) {
	hits := []*search.Hit{
		{SourceID: "src", Chapter: 1, Verse: 2, Score: 0.91},
	}
	records := map[string]*models.CommentaryRecord{
		"src:1:2": {SourceID: "src", Chapter: 1, Verse: 2, Text: "All praise belongs to Allah."},
	}

	var buf bytes.Buffer
	if err := WriteHits(&buf, "praise", hits, records, OutputText); err != nil {
		t.Fatalf("WriteHits: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "src 1:2") {
		t.Errorf("expected hit address in output:\n%s", out)
	}
	if !strings.Contains(out, "All praise") {
		t.Errorf("expected record text in output:\n%s", out)
	}

	buf.Reset()
	if err := WriteHits(&buf, "praise", hits, records, OutputJSON); err != nil {
		t.Fatalf("WriteHits(json): %v", err)
	}
	var decoded struct {
		Query string `json:"query"`
		Hits  []struct {
			SourceID string `json:"source_id"`
			Text     string `json:"text"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "praise" || len(decoded.Hits) != 1 || decoded.Hits[0].Text == "" {
		t.Errorf("unexpected decode: %+v", decoded)
	}
}
