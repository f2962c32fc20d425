// Package cli provides output formatting for the tafsir command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/tafsir/internal/models"
	"github.com/hyperjump/tafsir/internal/search"
	"github.com/hyperjump/tafsir/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a -output flag value to a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// SourceRow is one line of the sources listing.
type SourceRow struct {
	models.CommentarySource
	Ingested bool                     `json:"ingested"`
	Receipt  *models.IngestionReceipt `json:"receipt,omitempty"`
}

// WriteSources writes the source listing to w in the given format.
func WriteSources(w io.Writer, rows []SourceRow, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	for _, row := range rows {
		status := "not ingested"
		if row.Ingested && row.Receipt != nil {
			status = fmt.Sprintf("%d records, %d chapters, ingested %s",
				row.Receipt.RecordCount, row.Receipt.ChapterCount,
				row.Receipt.IngestedAt.Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "%-24s %-28s %-4s %-14s %s\n",
			row.ID, utils.Truncate(row.Name, 28), row.Language, row.Kind, status)
	}
	return nil
}

// WriteHits writes search hits with their commentary text to w.
func WriteHits(w io.Writer, query string, hits []*search.Hit, records map[string]*models.CommentaryRecord, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]map[string]interface{}, 0, len(hits))
		for _, h := range hits {
			entry := map[string]interface{}{
				"source_id": h.SourceID,
				"chapter":   h.Chapter,
				"verse":     h.Verse,
				"score":     h.Score,
			}
			if rec := records[hitKey(h)]; rec != nil {
				entry["text"] = rec.Text
			}
			out = append(out, entry)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"query": query, "hits": out})
	}

	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(w, "%d. %s %d:%d (score %.4f)\n", i+1, h.SourceID, h.Chapter, h.Verse, h.Score)
		if rec := records[hitKey(h)]; rec != nil {
			fmt.Fprintf(w, "   %s\n", search.Snippet(rec.Text, query, 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func hitKey(h *search.Hit) string {
	return fmt.Sprintf("%s:%d:%d", h.SourceID, h.Chapter, h.Verse)
}
