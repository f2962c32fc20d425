// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/tafsir/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned for point lookups with no matching row.
var ErrNotFound = errors.New("not found")

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS commentary_records (
		source_id TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		verse INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (source_id, chapter, verse)
	);

	CREATE INDEX IF NOT EXISTS idx_records_source_chapter ON commentary_records(source_id, chapter);

	CREATE TABLE IF NOT EXISTS ingestion_receipts (
		source_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		secondary_name TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		ingested_at TIMESTAMP NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		chapter_count INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := db.Exec(schema)
	return err
}

const upsertRecordSQL = `INSERT INTO commentary_records (source_id, chapter, verse, text)
	 VALUES (?, ?, ?, ?)
	 ON CONFLICT(source_id, chapter, verse) DO UPDATE SET text = excluded.text`

// BulkUpsertRecords inserts records in one transaction, replacing any
// existing text at the same (source, chapter, verse) address.
func (s *SQLiteStorage) BulkUpsertRecords(ctx context.Context, sourceID string, records []models.CommentaryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRecords(ctx, tx, sourceID, records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, sourceID string, records []models.CommentaryRecord) error {
	stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		id := rec.SourceID
		if id == "" {
			id = sourceID
		}
		if _, err := stmt.ExecContext(ctx, id, rec.Chapter, rec.Verse, rec.Text); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllRecords removes every record for a source.
func (s *SQLiteStorage) DeleteAllRecords(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM commentary_records WHERE source_id = ?`, sourceID)
	return err
}

// CountRecords returns the number of records stored for a source.
func (s *SQLiteStorage) CountRecords(ctx context.Context, sourceID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commentary_records WHERE source_id = ?`, sourceID).Scan(&count)
	return count, err
}

// CountChapters returns the number of distinct chapters covered by a source.
func (s *SQLiteStorage) CountChapters(ctx context.Context, sourceID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT chapter) FROM commentary_records WHERE source_id = ?`, sourceID).Scan(&count)
	return count, err
}

// GetRecord returns one record by (source, chapter, verse).
func (s *SQLiteStorage) GetRecord(ctx context.Context, sourceID string, chapter, verse int) (*models.CommentaryRecord, error) {
	var rec models.CommentaryRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, chapter, verse, text FROM commentary_records
		 WHERE source_id = ? AND chapter = ? AND verse = ?`,
		sourceID, chapter, verse,
	).Scan(&rec.SourceID, &rec.Chapter, &rec.Verse, &rec.Text)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s %d:%d: %w", sourceID, chapter, verse, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByChapter returns a chapter's records ordered by verse.
func (s *SQLiteStorage) GetByChapter(ctx context.Context, sourceID string, chapter int) ([]*models.CommentaryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, chapter, verse, text FROM commentary_records
		 WHERE source_id = ? AND chapter = ? ORDER BY verse`,
		sourceID, chapter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.CommentaryRecord
	for rows.Next() {
		var rec models.CommentaryRecord
		if err := rows.Scan(&rec.SourceID, &rec.Chapter, &rec.Verse, &rec.Text); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

const upsertReceiptSQL = `INSERT INTO ingestion_receipts
	 (source_id, name, secondary_name, language, ingested_at, size_bytes, chapter_count, record_count)
	 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	 ON CONFLICT(source_id) DO UPDATE SET
		name = excluded.name,
		secondary_name = excluded.secondary_name,
		language = excluded.language,
		ingested_at = excluded.ingested_at,
		size_bytes = excluded.size_bytes,
		chapter_count = excluded.chapter_count,
		record_count = excluded.record_count`

// UpsertReceipt writes or replaces the receipt for a source.
func (s *SQLiteStorage) UpsertReceipt(ctx context.Context, receipt *models.IngestionReceipt) error {
	_, err := s.db.ExecContext(ctx, upsertReceiptSQL,
		receipt.SourceID, receipt.Name, receipt.SecondaryName, receipt.Language,
		receipt.IngestedAt, receipt.SizeBytes, receipt.ChapterCount, receipt.RecordCount)
	return err
}

// GetReceipt returns the receipt for a source.
func (s *SQLiteStorage) GetReceipt(ctx context.Context, sourceID string) (*models.IngestionReceipt, error) {
	var r models.IngestionReceipt
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, name, secondary_name, language, ingested_at, size_bytes, chapter_count, record_count
		 FROM ingestion_receipts WHERE source_id = ?`, sourceID,
	).Scan(&r.SourceID, &r.Name, &r.SecondaryName, &r.Language, &r.IngestedAt, &r.SizeBytes, &r.ChapterCount, &r.RecordCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("receipt %s: %w", sourceID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReceipt removes the receipt for a source.
func (s *SQLiteStorage) DeleteReceipt(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingestion_receipts WHERE source_id = ?`, sourceID)
	return err
}

// ListReceipts returns all receipts ordered by ingestion time, newest first.
func (s *SQLiteStorage) ListReceipts(ctx context.Context) ([]*models.IngestionReceipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, name, secondary_name, language, ingested_at, size_bytes, chapter_count, record_count
		 FROM ingestion_receipts ORDER BY ingested_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*models.IngestionReceipt
	for rows.Next() {
		var r models.IngestionReceipt
		if err := rows.Scan(&r.SourceID, &r.Name, &r.SecondaryName, &r.Language, &r.IngestedAt, &r.SizeBytes, &r.ChapterCount, &r.RecordCount); err != nil {
			return nil, err
		}
		receipts = append(receipts, &r)
	}
	return receipts, rows.Err()
}

// BeginReplace starts a transaction that deletes the source's prior records
// and receipt, accepts inserted batches, and publishes everything atomically
// on Commit.
func (s *SQLiteStorage) BeginReplace(ctx context.Context, sourceID string) (ReplaceTxn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM commentary_records WHERE source_id = ?`, sourceID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingestion_receipts WHERE source_id = ?`, sourceID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &sqliteReplaceTxn{tx: tx, sourceID: sourceID}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type sqliteReplaceTxn struct {
	tx       *sql.Tx
	sourceID string
}

func (t *sqliteReplaceTxn) InsertRecords(ctx context.Context, records []models.CommentaryRecord) error {
	return insertRecords(ctx, t.tx, t.sourceID, records)
}

func (t *sqliteReplaceTxn) Commit(ctx context.Context, receipt *models.IngestionReceipt) error {
	if receipt != nil {
		if _, err := t.tx.ExecContext(ctx, upsertReceiptSQL,
			receipt.SourceID, receipt.Name, receipt.SecondaryName, receipt.Language,
			receipt.IngestedAt, receipt.SizeBytes, receipt.ChapterCount, receipt.RecordCount); err != nil {
			_ = t.tx.Rollback()
			return err
		}
	}
	return t.tx.Commit()
}

func (t *sqliteReplaceTxn) Rollback() error {
	return t.tx.Rollback()
}
