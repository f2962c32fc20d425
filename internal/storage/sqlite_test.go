package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tafsir/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func rec(source string, chapter, verse int, text string) models.CommentaryRecord {
	return models.CommentaryRecord{SourceID: source, Chapter: chapter, Verse: verse, Text: text}
}

func TestSQLiteStorage_RecordCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []models.CommentaryRecord{
		rec("src", 1, 1, "first"),
		rec("src", 1, 2, "second"),
		rec("src", 2, 1, "third"),
	}
	if err := store.BulkUpsertRecords(ctx, "src", records); err != nil {
		t.Fatal(err)
	}

	count, err := store.CountRecords(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	chapters, err := store.CountChapters(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	if chapters != 2 {
		t.Errorf("chapters = %d, want 2", chapters)
	}

	got, err := store.GetRecord(ctx, "src", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "second" {
		t.Errorf("text = %q", got.Text)
	}

	byChapter, err := store.GetByChapter(ctx, "src", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(byChapter) != 2 || byChapter[0].Verse != 1 || byChapter[1].Verse != 2 {
		t.Errorf("unexpected chapter records: %+v", byChapter)
	}

	if err := store.DeleteAllRecords(ctx, "src"); err != nil {
		t.Fatal(err)
	}
	count, _ = store.CountRecords(ctx, "src")
	if count != 0 {
		t.Errorf("count after delete = %d", count)
	}
}

func TestSQLiteStorage_UpsertReplacesSameAddress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.BulkUpsertRecords(ctx, "src", []models.CommentaryRecord{rec("src", 1, 1, "old")}); err != nil {
		t.Fatal(err)
	}
	if err := store.BulkUpsertRecords(ctx, "src", []models.CommentaryRecord{rec("src", 1, 1, "new")}); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetRecord(ctx, "src", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "new" {
		t.Errorf("text = %q, want new", got.Text)
	}
	count, _ := store.CountRecords(ctx, "src")
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSQLiteStorage_GetRecordNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRecord(context.Background(), "src", 1, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_Receipts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	receipt := &models.IngestionReceipt{
		SourceID:     "src",
		Name:         "Test Tafsir",
		Language:     "en",
		IngestedAt:   time.Now().UTC(),
		SizeBytes:    1234,
		ChapterCount: 114,
		RecordCount:  6236,
	}
	if err := store.UpsertReceipt(ctx, receipt); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetReceipt(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	if got.RecordCount != 6236 || got.Name != "Test Tafsir" {
		t.Errorf("receipt = %+v", got)
	}

	receipt.RecordCount = 6237
	if err := store.UpsertReceipt(ctx, receipt); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetReceipt(ctx, "src")
	if got.RecordCount != 6237 {
		t.Errorf("receipt not replaced: %+v", got)
	}

	list, err := store.ListReceipts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("got %d receipts", len(list))
	}

	if err := store.DeleteReceipt(ctx, "src"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetReceipt(ctx, "src"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v", err)
	}
}

func TestSQLiteStorage_ReplaceTxnCommit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.BulkUpsertRecords(ctx, "src", []models.CommentaryRecord{rec("src", 1, 1, "old")}); err != nil {
		t.Fatal(err)
	}

	txn, err := store.BeginReplace(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.InsertRecords(ctx, []models.CommentaryRecord{
		rec("src", 1, 1, "replaced"),
		rec("src", 1, 2, "added"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(ctx, &models.IngestionReceipt{SourceID: "src", Name: "n", IngestedAt: time.Now(), RecordCount: 2}); err != nil {
		t.Fatal(err)
	}

	count, _ := store.CountRecords(ctx, "src")
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	got, _ := store.GetRecord(ctx, "src", 1, 1)
	if got.Text != "replaced" {
		t.Errorf("text = %q", got.Text)
	}
	if _, err := store.GetReceipt(ctx, "src"); err != nil {
		t.Errorf("receipt missing after commit: %v", err)
	}
}

func TestSQLiteStorage_ReplaceTxnRollbackLeavesPriorData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.BulkUpsertRecords(ctx, "src", []models.CommentaryRecord{rec("src", 1, 1, "prior")}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertReceipt(ctx, &models.IngestionReceipt{SourceID: "src", Name: "n", IngestedAt: time.Now(), RecordCount: 1}); err != nil {
		t.Fatal(err)
	}

	txn, err := store.BeginReplace(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.InsertRecords(ctx, []models.CommentaryRecord{rec("src", 5, 5, "doomed")}); err != nil {
		t.Fatal(err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatal(err)
	}

	count, _ := store.CountRecords(ctx, "src")
	if count != 1 {
		t.Errorf("count = %d, want 1 (prior data)", count)
	}
	got, err := store.GetRecord(ctx, "src", 1, 1)
	if err != nil || got.Text != "prior" {
		t.Errorf("prior record lost: %v %+v", err, got)
	}
	if _, err := store.GetReceipt(ctx, "src"); err != nil {
		t.Errorf("prior receipt lost: %v", err)
	}
}

func TestSQLiteStorage_IsolationBetweenSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.BulkUpsertRecords(ctx, "a", []models.CommentaryRecord{rec("a", 1, 1, "a-text")})
	_ = store.BulkUpsertRecords(ctx, "b", []models.CommentaryRecord{rec("b", 1, 1, "b-text")})

	if err := store.DeleteAllRecords(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	count, _ := store.CountRecords(ctx, "b")
	if count != 1 {
		t.Errorf("deleting source a touched source b")
	}
}
