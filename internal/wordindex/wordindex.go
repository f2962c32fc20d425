// Package wordindex resolves Arabic words by (chapter, verse, word position).
//
// The index is built once per process from a bundled word-level dataset and
// is read-only afterwards. A missing or malformed dataset degrades to an
// empty index: lookups miss, ingestion continues with meaning-only text.
package wordindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/hyperjump/tafsir/internal/assets"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Cache memoizes the "chapter:verse:position" → Arabic word mapping.
type Cache struct {
	opener assets.Opener
	asset  string
	logger *zap.Logger // optional; when set, logs load outcome

	once  sync.Once
	store *gocache.Cache
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a logger for load diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache backed by the named bundled asset. The asset is not
// read until the first Lookup.
func New(opener assets.Opener, asset string, opts ...Option) *Cache {
	c := &Cache{opener: opener, asset: asset}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the index key for a word position.
func Key(chapter, verse, pos int) string {
	return strconv.Itoa(chapter) + ":" + strconv.Itoa(verse) + ":" + strconv.Itoa(pos)
}

// Lookup returns the Arabic word at the 1-based position in (chapter, verse).
// The first call loads and memoizes the whole dataset.
func (c *Cache) Lookup(chapter, verse, pos int) (string, bool) {
	c.once.Do(c.load)
	v, ok := c.store.Get(Key(chapter, verse, pos))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *Cache) load() {
	c.store = gocache.New(gocache.NoExpiration, 0)
	n, err := c.loadAsset()
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("word index unavailable, lookups will miss", zap.String("asset", c.asset), zap.Error(err))
		}
		return
	}
	if c.logger != nil {
		c.logger.Info("word index loaded", zap.String("asset", c.asset), zap.Int("words", n))
	}
}

// loadAsset reads the bundled dataset: an object keyed by chapter number,
// each value an object keyed by verse number, each value the ordered list
// of Arabic words in that verse.
func (c *Cache) loadAsset() (int, error) {
	rc, err := c.opener.Open(c.asset)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var data map[string]map[string][]string
	if err := json.NewDecoder(rc).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode word index: %w", err)
	}

	count := 0
	for chapterKey, verses := range data {
		chapter, err := strconv.Atoi(chapterKey)
		if err != nil {
			continue
		}
		for verseKey, words := range verses {
			verse, err := strconv.Atoi(verseKey)
			if err != nil {
				continue
			}
			for i, word := range words {
				c.store.Set(Key(chapter, verse, i+1), word, gocache.NoExpiration)
				count++
			}
		}
	}
	return count, nil
}
