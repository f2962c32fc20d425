// Package ingest orchestrates acquisition, extraction, parsing, and
// persistence of commentary sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/tafsir/internal/archive"
	"github.com/hyperjump/tafsir/internal/assets"
	"github.com/hyperjump/tafsir/internal/config"
	"github.com/hyperjump/tafsir/internal/fetch"
	"github.com/hyperjump/tafsir/internal/models"
	"github.com/hyperjump/tafsir/internal/parser"
	"github.com/hyperjump/tafsir/internal/search"
	"github.com/hyperjump/tafsir/internal/sources"
	"github.com/hyperjump/tafsir/internal/storage"
	"github.com/hyperjump/tafsir/internal/wordindex"
	"go.uber.org/zap"
)

// State is one phase of an ingestion job.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateParsing    State = "parsing"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

var (
	// ErrUnknownSource is returned for source ids absent from the registry.
	ErrUnknownSource = errors.New("unknown source")
	// ErrIngestInProgress is returned when a source is already being ingested.
	// Concurrent requests for the same source are rejected, not queued.
	ErrIngestInProgress = errors.New("ingestion already in progress for source")
	// ErrNoRecords is returned when a syntactically valid document yields no
	// usable records.
	ErrNoRecords = errors.New("document yielded no records")
)

// ProgressFunc receives monotonically non-decreasing fractions in [0,1],
// ending at exactly 1.0 on success. It is invoked from the ingestion
// goroutine; callers updating shared state must synchronize themselves.
type ProgressFunc func(fraction float64)

// StateHook observes state transitions of in-flight jobs.
type StateHook func(sourceID string, state State)

// Progress phase boundaries. Download owns 0–0.4, extraction 0.4–0.5,
// parsing 0.5–0.95; 1.0 is reported after finalize.
const (
	fetchProgressEnd   = 0.4
	extractProgressEnd = 0.5
)

// Ingester drives the full ingestion pipeline for registered sources.
type Ingester struct {
	cfg      config.IngestConfig
	store    storage.Storage
	registry *sources.Registry
	assets   assets.Opener
	download *fetch.Downloader
	words    *wordindex.Cache
	index    *search.Index // optional; search stays best-effort
	logger   *zap.Logger   // optional
	onState  StateHook     // optional

	mu     sync.Mutex
	active map[string]struct{}
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) IngesterOption {
	return func(ing *Ingester) { ing.logger = l }
}

// WithSearchIndex enables full-text indexing of ingested records.
func WithSearchIndex(ix *search.Index) IngesterOption {
	return func(ing *Ingester) { ing.index = ix }
}

// WithStateHook registers an observer for job state transitions.
func WithStateHook(hook StateHook) IngesterOption {
	return func(ing *Ingester) { ing.onState = hook }
}

// New creates an ingester. words may be nil when no word-by-word source is
// registered; downloader is built from cfg.BaseURL.
func New(
	cfg config.IngestConfig,
	store storage.Storage,
	registry *sources.Registry,
	opener assets.Opener,
	words *wordindex.Cache,
	opts ...IngesterOption,
) *Ingester {
	ing := &Ingester{
		cfg:      cfg,
		store:    store,
		registry: registry,
		assets:   opener,
		words:    words,
		active:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ing)
	}
	ing.download = fetch.NewDownloader(cfg.BaseURL, downloadOpts(ing.logger)...)
	return ing
}

func downloadOpts(logger *zap.Logger) []fetch.Option {
	if logger == nil {
		return nil
	}
	return []fetch.Option{fetch.WithLogger(logger)}
}

// Ingest acquires, parses, and persists one source, reporting progress to
// onProgress (which may be nil). Prior data for the source remains visible
// and intact unless the whole pipeline succeeds.
func (ing *Ingester) Ingest(ctx context.Context, sourceID string, onProgress ProgressFunc) error {
	src, ok := ing.registry.Get(sourceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	if !ing.acquire(sourceID) {
		return fmt.Errorf("%w: %s", ErrIngestInProgress, sourceID)
	}
	defer ing.release(sourceID)

	err := ing.run(ctx, src, "", onProgress)
	if err != nil {
		ing.setState(sourceID, StateFailed)
		if ing.logger != nil {
			ing.logger.Error("ingestion failed", zap.String("source", sourceID), zap.Error(err))
		}
		return err
	}
	ing.setState(sourceID, StateDone)
	return nil
}

// IngestFile ingests a local archive or JSON file for a registered source,
// bypassing download. Used by the drop-directory watcher and the CLI.
func (ing *Ingester) IngestFile(ctx context.Context, sourceID, path string, onProgress ProgressFunc) error {
	src, ok := ing.registry.Get(sourceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	if !ing.acquire(sourceID) {
		return fmt.Errorf("%w: %s", ErrIngestInProgress, sourceID)
	}
	defer ing.release(sourceID)

	err := ing.run(ctx, src, path, onProgress)
	if err != nil {
		ing.setState(sourceID, StateFailed)
		return err
	}
	ing.setState(sourceID, StateDone)
	return nil
}

// Delete removes all records, the receipt, and any index entries for a source.
func (ing *Ingester) Delete(ctx context.Context, sourceID string) error {
	if err := ing.store.DeleteAllRecords(ctx, sourceID); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	if err := ing.store.DeleteReceipt(ctx, sourceID); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	if ing.index != nil {
		if err := ing.index.DeleteSource(sourceID); err != nil && ing.logger != nil {
			ing.logger.Warn("failed to drop search entries", zap.String("source", sourceID), zap.Error(err))
		}
	}
	return nil
}

// run executes the pipeline. localPath, when non-empty, is a pre-acquired
// archive or JSON file replacing the fetch phase.
func (ing *Ingester) run(ctx context.Context, src models.CommentarySource, localPath string, onProgress ProgressFunc) error {
	report := monotonic(onProgress)
	report(0)

	if err := os.MkdirAll(ing.cfg.TmpDir, 0755); err != nil {
		return fmt.Errorf("create tmp dir: %w", err)
	}

	jsonPath, sizeBytes, err := ing.acquireJSON(ctx, src, localPath, report)
	if err != nil {
		return err
	}
	defer os.Remove(jsonPath)
	report(extractProgressEnd)

	count, chapters, err := ing.parseAndPersist(ctx, src, jsonPath, sizeBytes, report)
	if err != nil {
		return err
	}
	if ing.logger != nil {
		ing.logger.Info("source ingested",
			zap.String("source", src.ID), zap.Int("records", count), zap.Int("chapters", chapters))
	}

	ing.reindex(ctx, src.ID)
	report(1.0)
	return nil
}

// acquireJSON produces the transient JSON file for parsing, via asset copy,
// local file, or download+extract. Returns its path and the transferred
// byte size (0 for bundled and local sources).
func (ing *Ingester) acquireJSON(ctx context.Context, src models.CommentarySource, localPath string, report ProgressFunc) (string, int64, error) {
	ing.setState(src.ID, StateFetching)
	jsonPath := filepath.Join(ing.cfg.TmpDir, src.ID+".json")

	switch {
	case localPath != "":
		if strings.EqualFold(filepath.Ext(localPath), ".zip") {
			ing.setState(src.ID, StateExtracting)
			if err := archive.ExtractJSON(localPath, jsonPath); err != nil {
				return "", 0, fmt.Errorf("extract %s: %w", localPath, err)
			}
			return jsonPath, 0, nil
		}
		if err := copyFile(localPath, jsonPath); err != nil {
			return "", 0, err
		}
		return jsonPath, 0, nil

	case src.Bundled():
		if err := ing.copyAsset(src.AssetName, jsonPath); err != nil {
			return "", 0, err
		}
		return jsonPath, 0, nil

	default:
		archivePath := filepath.Join(ing.cfg.TmpDir, src.ID+".zip")
		size, err := ing.download.Download(ctx, src.RemotePath, archivePath, func(f float64) {
			report(f * fetchProgressEnd)
		})
		if err != nil {
			return "", 0, fmt.Errorf("fetch %s: %w", src.RemotePath, err)
		}
		report(fetchProgressEnd)

		ing.setState(src.ID, StateExtracting)
		extractErr := archive.ExtractJSON(archivePath, jsonPath)
		// The archive is transient either way.
		_ = os.Remove(archivePath)
		if extractErr != nil {
			return "", 0, fmt.Errorf("extract %s: %w", src.ID, extractErr)
		}
		return jsonPath, size, nil
	}
}

// parseAndPersist streams the JSON file through the parser into a batched
// replace transaction, committing records and receipt atomically.
func (ing *Ingester) parseAndPersist(ctx context.Context, src models.CommentarySource, jsonPath string, sizeBytes int64, report ProgressFunc) (int, int, error) {
	ing.setState(src.ID, StateParsing)

	f, err := os.Open(jsonPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", jsonPath, err)
	}
	defer f.Close()

	txn, err := ing.store.BeginReplace(ctx, src.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("begin replace: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = txn.Rollback()
		}
	}()

	writer := NewBatchWriter(txn, ing.cfg.BatchSize)
	chapters := make(map[int]struct{})

	opts := []parser.ParserOption{
		parser.WithProgress(report, ing.cfg.ExpectedRecords),
	}
	if ing.words != nil {
		opts = append(opts, parser.WithWordResolver(ing.words))
	}
	if ing.logger != nil {
		opts = append(opts, parser.WithLogger(ing.logger))
	}
	p := parser.New(src.ID, opts...)

	count, err := p.Parse(f, func(rec models.CommentaryRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		chapters[rec.Chapter] = struct{}{}
		return writer.Add(ctx, rec)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("parse %s: %w", src.ID, err)
	}
	if err := writer.Flush(ctx); err != nil {
		return 0, 0, fmt.Errorf("flush records: %w", err)
	}
	if count == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoRecords, src.ID)
	}

	ing.setState(src.ID, StateFinalizing)
	receipt := &models.IngestionReceipt{
		SourceID:      src.ID,
		Name:          src.Name,
		SecondaryName: src.SecondaryName,
		Language:      src.Language,
		IngestedAt:    time.Now().UTC(),
		SizeBytes:     sizeBytes,
		ChapterCount:  len(chapters),
		RecordCount:   count,
	}
	if err := txn.Commit(ctx, receipt); err != nil {
		return 0, 0, fmt.Errorf("commit replace: %w", err)
	}
	committed = true
	return count, len(chapters), nil
}

// reindex rebuilds the source's full-text entries from the committed store.
// Search is a convenience layer: indexing failures are logged, not fatal.
func (ing *Ingester) reindex(ctx context.Context, sourceID string) {
	if ing.index == nil {
		return
	}
	if err := ing.index.DeleteSource(sourceID); err != nil {
		ing.warnIndex(sourceID, err)
		return
	}
	for chapter := 1; chapter <= 114; chapter++ {
		recs, err := ing.store.GetByChapter(ctx, sourceID, chapter)
		if err != nil {
			ing.warnIndex(sourceID, err)
			return
		}
		if len(recs) == 0 {
			continue
		}
		batch := make([]models.CommentaryRecord, len(recs))
		for i, r := range recs {
			batch[i] = *r
		}
		if err := ing.index.IndexRecords(batch); err != nil {
			ing.warnIndex(sourceID, err)
			return
		}
	}
}

func (ing *Ingester) warnIndex(sourceID string, err error) {
	if ing.logger != nil {
		ing.logger.Warn("search indexing incomplete", zap.String("source", sourceID), zap.Error(err))
	}
}

func (ing *Ingester) copyAsset(name, dstPath string) error {
	rc, err := ing.assets.Open(name)
	if err != nil {
		return fmt.Errorf("open asset %s: %w", name, err)
	}
	defer rc.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, rc); err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("copy asset %s: %w", name, err)
	}
	return nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("copy %s: %w", srcPath, err)
	}
	return nil
}

// monotonic wraps a progress callback so reported fractions never decrease.
func monotonic(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(float64) {}
	}
	last := -1.0
	return func(f float64) {
		if f < last {
			return
		}
		last = f
		fn(f)
	}
}

func (ing *Ingester) acquire(sourceID string) bool {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if _, busy := ing.active[sourceID]; busy {
		return false
	}
	ing.active[sourceID] = struct{}{}
	return true
}

func (ing *Ingester) release(sourceID string) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	delete(ing.active, sourceID)
}

func (ing *Ingester) setState(sourceID string, state State) {
	if ing.onState != nil {
		ing.onState(sourceID, state)
	}
}
