// Package models defines core data structures for sources, records, and receipts.
package models

// SourceKind classifies what a commentary source contains.
type SourceKind string

const (
	KindCommentary SourceKind = "commentary"   // free-text tafsir per verse
	KindWordByWord SourceKind = "word-by-word" // per-word meanings
	KindGrammar    SourceKind = "grammar"      // i'rab grammatical analysis
)

// CommentarySource identifies one exegesis corpus. Sources are immutable
// reference data: defined in the registry, consumed by the ingest pipeline.
type CommentarySource struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	SecondaryName string     `json:"secondary_name,omitempty" yaml:"secondary_name"`
	Language      string     `json:"language" yaml:"language"`
	Kind          SourceKind `json:"kind" yaml:"kind"`
	// RemotePath is the ZIP archive path relative to the configured base URL.
	// Empty for bundled sources.
	RemotePath string `json:"remote_path,omitempty" yaml:"remote_path"`
	// AssetName is the bundled JSON asset name. Empty for remote sources.
	AssetName string `json:"asset_name,omitempty" yaml:"asset_name"`
}

// Bundled reports whether the source ships as a local asset instead of a
// remote archive. Bundled sources skip download and extraction.
func (s *CommentarySource) Bundled() bool {
	return s.AssetName != ""
}
