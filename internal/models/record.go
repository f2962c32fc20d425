package models

import "time"

// CommentaryRecord is one verse's (or word-group's) resolved text for one
// source. (SourceID, Chapter, Verse) is unique within a source's record set;
// re-ingestion replaces the whole set.
type CommentaryRecord struct {
	SourceID string `json:"source_id" db:"source_id"`
	Chapter  int    `json:"chapter" db:"chapter"` // 1..114
	Verse    int    `json:"verse" db:"verse"`     // 1-based, upper bound varies per chapter
	Text     string `json:"text" db:"text"`
}

// IngestionReceipt summarizes one completed ingestion. Its presence marks a
// source as "available" rather than merely "known".
type IngestionReceipt struct {
	SourceID      string    `json:"source_id" db:"source_id"`
	Name          string    `json:"name" db:"name"`
	SecondaryName string    `json:"secondary_name,omitempty" db:"secondary_name"`
	Language      string    `json:"language" db:"language"`
	IngestedAt    time.Time `json:"ingested_at" db:"ingested_at"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"` // bytes transferred; 0 for bundled sources
	ChapterCount  int       `json:"chapter_count" db:"chapter_count"`
	RecordCount   int       `json:"record_count" db:"record_count"`
}
