// Package search provides a Bleve full-text index over commentary records.
//
// The index is a convenience layer beside the SQLite store: it is rebuilt
// per source on ingest and dropped on delete, so the store stays the single
// source of truth.
package search

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/hyperjump/tafsir/internal/models"
)

// Hit is one search result.
type Hit struct {
	SourceID string  `json:"source_id"`
	Chapter  int     `json:"chapter"`
	Verse    int     `json:"verse"`
	Score    float64 `json:"score"`
}

// recordDoc is the indexed shape of a commentary record.
type recordDoc struct {
	SourceID string `json:"source_id"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse"`
	Text     string `json:"text"`
}

// Index is a Bleve-backed full-text index over commentary text.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. The standard analyzer is
// used (lowercase + tokenize, no stemming) so Arabic and transliterated
// terms match exactly as typed.
func NewIndex(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	sourceFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source_id", sourceFieldMapping)
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// DocID builds the index document id for a record address.
func DocID(sourceID string, chapter, verse int) string {
	return sourceID + ":" + strconv.Itoa(chapter) + ":" + strconv.Itoa(verse)
}

// IndexRecords adds records to the index in one batch.
func (ix *Index) IndexRecords(records []models.CommentaryRecord) error {
	batch := ix.index.NewBatch()
	for _, rec := range records {
		doc := recordDoc{SourceID: rec.SourceID, Chapter: rec.Chapter, Verse: rec.Verse, Text: rec.Text}
		if err := batch.Index(DocID(rec.SourceID, rec.Chapter, rec.Verse), doc); err != nil {
			return fmt.Errorf("batch index: %w", err)
		}
	}
	return ix.index.Batch(batch)
}

// DeleteSource removes all indexed records for a source.
func (ix *Index) DeleteSource(sourceID string) error {
	q := bleve.NewTermQuery(sourceID)
	q.SetField("source_id")
	for {
		req := bleve.NewSearchRequest(q)
		req.Size = 1000
		res, err := ix.index.Search(req)
		if err != nil {
			return fmt.Errorf("delete source search: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := ix.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := ix.index.Batch(batch); err != nil {
			return fmt.Errorf("delete source batch: %w", err)
		}
	}
}

// Search runs a match query over commentary text and returns up to limit hits.
func (ix *Index) Search(query string, limit int) ([]*Hit, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h, ok := parseDocID(hit.ID)
		if !ok {
			continue
		}
		h.Score = hit.Score
		out = append(out, h)
	}
	return out, nil
}

// parseDocID splits "source:chapter:verse" from the right, so source ids
// themselves may not contain the verse address.
func parseDocID(id string) (*Hit, bool) {
	i := strings.LastIndexByte(id, ':')
	if i < 0 {
		return nil, false
	}
	j := strings.LastIndexByte(id[:i], ':')
	if j < 0 {
		return nil, false
	}
	chapter, err1 := strconv.Atoi(id[j+1 : i])
	verse, err2 := strconv.Atoi(id[i+1:])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return &Hit{SourceID: id[:j], Chapter: chapter, Verse: verse}, true
}

// Close closes the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}
