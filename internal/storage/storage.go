// Package storage defines the persistence interface for commentary records
// and ingestion receipts.
package storage

import (
	"context"

	"github.com/hyperjump/tafsir/internal/models"
)

// Storage defines record and receipt persistence operations.
type Storage interface {
	// Record operations
	BulkUpsertRecords(ctx context.Context, sourceID string, records []models.CommentaryRecord) error
	DeleteAllRecords(ctx context.Context, sourceID string) error
	CountRecords(ctx context.Context, sourceID string) (int64, error)
	CountChapters(ctx context.Context, sourceID string) (int64, error)
	GetRecord(ctx context.Context, sourceID string, chapter, verse int) (*models.CommentaryRecord, error)
	GetByChapter(ctx context.Context, sourceID string, chapter int) ([]*models.CommentaryRecord, error)

	// Receipt operations
	UpsertReceipt(ctx context.Context, receipt *models.IngestionReceipt) error
	GetReceipt(ctx context.Context, sourceID string) (*models.IngestionReceipt, error)
	DeleteReceipt(ctx context.Context, sourceID string) error
	ListReceipts(ctx context.Context) ([]*models.IngestionReceipt, error)

	// BeginReplace opens a transactional replacement of a source's record
	// set: prior records and the receipt are deleted inside the transaction,
	// batches are inserted, and nothing becomes visible until Commit. A
	// rollback leaves the prior ingestion untouched.
	BeginReplace(ctx context.Context, sourceID string) (ReplaceTxn, error)

	Close() error
}

// ReplaceTxn is one in-flight replacement of a source's record set.
// Exactly one of Commit or Rollback must be called.
type ReplaceTxn interface {
	InsertRecords(ctx context.Context, records []models.CommentaryRecord) error
	Commit(ctx context.Context, receipt *models.IngestionReceipt) error
	Rollback() error
}
