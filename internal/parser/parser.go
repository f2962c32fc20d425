// Package parser reads heterogeneous tafsir JSON documents into normalized
// commentary records.
//
// Documents arrive in four structural shapes (flat arrays, "surahs"/"data"
// wrappers, numeric-key objects, and chapter blocks with optional per-word
// breakdowns). The document is never materialized as a whole: the decoder
// walks tokens and at most one element or chapter block is held in memory
// at a time. Parsing is best-effort per element; only malformed JSON aborts
// the stream.
package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/tafsir/internal/models"
	"github.com/hyperjump/tafsir/pkg/utils"
	"go.uber.org/zap"
)

// Progress mapping: acquisition and extraction own 0–0.5, the parse owns
// 0.5–0.95. The final 1.0 is signalled by the orchestrator after finalize.
const (
	parseProgressStart = 0.5
	parseProgressEnd   = 0.95
)

// WordResolver resolves an Arabic word by (chapter, verse, 1-based position).
type WordResolver interface {
	Lookup(chapter, verse, pos int) (string, bool)
}

// Sink receives normalized records as they are produced.
type Sink func(rec models.CommentaryRecord) error

// Parser produces CommentaryRecord values for one source from a JSON stream.
type Parser struct {
	sourceID   string
	words      WordResolver // optional; nil disables word resolution
	logger     *zap.Logger  // optional; when set, logs skipped elements
	onProgress func(float64)
	expected   int

	emitted int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithWordResolver sets the word index used by the word-by-word branch.
func WithWordResolver(w WordResolver) ParserOption {
	return func(p *Parser) { p.words = w }
}

// WithLogger sets a logger for debug output (skipped elements, shape dispatch).
func WithLogger(l *zap.Logger) ParserOption {
	return func(p *Parser) { p.logger = l }
}

// WithProgress sets a progress callback and the expected record total the
// estimate is scaled against. Mid-stream values are advisory and capped at
// the top of the parse range.
func WithProgress(fn func(float64), expectedTotal int) ParserOption {
	return func(p *Parser) {
		p.onProgress = fn
		if expectedTotal > 0 {
			p.expected = expectedTotal
		}
	}
}

// New creates a parser emitting records for sourceID.
func New(sourceID string, opts ...ParserOption) *Parser {
	p := &Parser{sourceID: sourceID, expected: 6500}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads one JSON document from r and feeds normalized records to sink.
// Returns the number of records emitted. A sink error or malformed JSON
// aborts the parse; malformed individual elements are skipped.
func (p *Parser) Parse(r io.Reader, sink Sink) (int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("read document start: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return 0, fmt.Errorf("document root is %v, expected array or object", tok)
	}

	switch delim {
	case '[':
		err = p.parseRecordArray(dec, sink, 0)
	case '{':
		err = p.parseObjectRoot(dec, sink)
	default:
		return 0, fmt.Errorf("document root is %q, expected array or object", delim)
	}
	if err != nil {
		return p.emitted, err
	}
	return p.emitted, nil
}

// parseRecordArray consumes a stream of flat verse records up to the closing
// bracket. impliedChapter, when non-zero, supplies the chapter for elements
// that do not carry one.
func (p *Parser) parseRecordArray(dec *json.Decoder, sink Sink, impliedChapter int) error {
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		elem, ok := decodeObject(raw)
		if !ok {
			p.debugSkip("record is not an object", 0, 0)
			continue
		}
		if err := p.emitFlat(elem, impliedChapter, sink); err != nil {
			return err
		}
	}
	_, err := dec.Token() // closing ']'
	return err
}

// parseObjectRoot dispatches on each top-level key of an object document:
// "surahs" wraps chapter blocks, "data" wraps flat records, integer keys
// carry a single chapter, anything else is discarded.
func (p *Parser) parseObjectRoot(dec *json.Decoder, sink Sink) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read object key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v reading object key", tok)
		}

		switch {
		case strings.EqualFold(key, "surahs"):
			if err := p.parseChapterArray(dec, sink); err != nil {
				return err
			}
		case strings.EqualFold(key, "data"):
			if err := p.parseWrappedArray(dec, sink); err != nil {
				return err
			}
		default:
			if chapter, convErr := strconv.Atoi(key); convErr == nil {
				if err := p.parseChapterValue(dec, chapter, sink); err != nil {
					return err
				}
			} else {
				if err := skipValue(dec); err != nil {
					return fmt.Errorf("skip %q: %w", key, err)
				}
			}
		}
	}
	_, err := dec.Token() // closing '}'
	return err
}

// parseWrappedArray handles the value of a "data" key: an array of flat
// verse records. Non-array values are discarded.
func (p *Parser) parseWrappedArray(dec *json.Decoder, sink Sink) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return skipOpenValue(dec, tok)
	}
	return p.parseRecordArray(dec, sink, 0)
}

// parseChapterArray handles the value of a "surahs" key: an array of chapter
// blocks, each carrying its own chapter number and verses.
func (p *Parser) parseChapterArray(dec *json.Decoder, sink Sink) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return skipOpenValue(dec, tok)
	}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode chapter block: %w", err)
		}
		var block map[string]json.RawMessage
		if err := json.Unmarshal(raw, &block); err != nil {
			p.debugSkip("chapter block is not an object", 0, 0)
			continue
		}
		if err := p.emitChapterBlock(block, sink); err != nil {
			return err
		}
	}
	_, err = dec.Token() // closing ']'
	return err
}

// parseChapterValue handles the value of an integer top-level key: either an
// array of verse records with the chapter implied, or an object keyed by
// verse-number strings.
func (p *Parser) parseChapterValue(dec *json.Decoder, chapter int, sink Sink) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar value, nothing to parse
	}
	switch d {
	case '[':
		return p.parseRecordArray(dec, sink, chapter)
	case '{':
		return p.parseVerseMap(dec, chapter, sink)
	}
	return nil
}

// parseVerseMap consumes an object keyed by verse-number strings. Each value
// is either the text itself or an object containing a text-like field.
func (p *Parser) parseVerseMap(dec *json.Decoder, chapter int, sink Sink) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read verse key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v reading verse key", tok)
		}
		verse, convErr := strconv.Atoi(key)
		if convErr != nil {
			if err := skipValue(dec); err != nil {
				return err
			}
			continue
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode verse %d:%d: %w", chapter, verse, err)
		}
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case map[string]any:
			text, _ = fieldString(v, textKeys)
		}
		if err := p.emit(chapter, verse, text, sink); err != nil {
			return err
		}
	}
	_, err := dec.Token() // closing '}'
	return err
}

// emitFlat emits a record from a flat element if chapter, verse, and text
// are all present; otherwise the element is dropped.
func (p *Parser) emitFlat(elem map[string]any, impliedChapter int, sink Sink) error {
	chapter, ok := fieldInt(elem, chapterKeys)
	if !ok {
		chapter = impliedChapter
	}
	verse, hasVerse := fieldInt(elem, verseKeys)
	if chapter == 0 || !hasVerse {
		p.debugSkip("flat record missing address", chapter, verse)
		return nil
	}
	directText, hasText := fieldString(elem, textKeys)

	text := ""
	if wordsVal, ok := lookupField(elem, []string{"words"}); ok {
		if words, ok := wordsVal.([]any); ok {
			text = p.buildWordText(chapter, verse, words)
		}
	}
	if text == "" {
		if !hasText {
			p.debugSkip("flat record missing text", chapter, verse)
			return nil
		}
		text = directText
	}
	return p.emit(chapter, verse, text, sink)
}

// emitChapterBlock emits all verses of one chapter block. The block's verses
// array is re-streamed so only one verse block is decoded at a time.
func (p *Parser) emitChapterBlock(block map[string]json.RawMessage, sink Sink) error {
	chapter, ok := rawInt(block, blockChapterKeys)
	if !ok {
		p.debugSkip("chapter block without chapter number", 0, 0)
		return nil
	}
	versesRaw, ok := rawField(block, blockVersesKeys)
	if !ok {
		p.debugSkip("chapter block without verses", chapter, 0)
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(string(versesRaw)))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil // not an array, drop the block
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil
	}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}
		verseBlock, ok := decodeObject(raw)
		if !ok {
			p.debugSkip("verse block is not an object", chapter, 0)
			continue
		}
		if err := p.emitVerseBlock(chapter, verseBlock, sink); err != nil {
			return err
		}
	}
	return nil
}

// decodeObject unmarshals raw into a map, preserving number precision.
func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}
	return m, true
}

// emitVerseBlock emits one verse block. A "words" array takes precedence
// over the direct text field; the direct text is the fallback when no word
// yields output.
func (p *Parser) emitVerseBlock(chapter int, block map[string]any, sink Sink) error {
	verse, ok := fieldInt(block, blockVerseKeys)
	if !ok {
		p.debugSkip("verse block without verse number", chapter, 0)
		return nil
	}
	directText, _ := fieldString(block, blockTextKeys)

	text := ""
	if wordsVal, ok := lookupField(block, []string{"words"}); ok {
		if words, ok := wordsVal.([]any); ok {
			text = p.buildWordText(chapter, verse, words)
		}
	}
	if text == "" {
		text = directText
	}
	return p.emit(chapter, verse, text, sink)
}

// buildWordText reconstructs a verse's text from its word entries, one
// "arabic: meaning" pair per word, pairs separated by a blank line. Word
// entries that yield nothing are skipped.
func (p *Parser) buildWordText(chapter, verse int, words []any) string {
	var parts []string
	for _, w := range words {
		word, ok := w.(map[string]any)
		if !ok {
			continue
		}
		if fragment := p.wordFragment(chapter, verse, word); fragment != "" {
			parts = append(parts, fragment)
		}
	}
	return strings.Join(parts, "\n\n")
}

// wordFragment renders one word entry. An explicit Arabic word pairs with
// its translation; a position resolves the Arabic through the word index,
// falling back to the meaning alone when resolution fails.
func (p *Parser) wordFragment(chapter, verse int, word map[string]any) string {
	arabic, _ := fieldString(word, wordArabicKeys)
	arabic = utils.Sanitize(arabic)
	meaning, _ := fieldString(word, wordMeaningKeys)
	meaning = utils.Sanitize(meaning)

	if arabic != "" && meaning != "" {
		return arabic + ": " + meaning
	}
	if pos, ok := fieldInt(word, wordPositionKeys); ok && meaning != "" {
		if p.words != nil {
			if resolved, found := p.words.Lookup(chapter, verse, pos); found {
				return resolved + ": " + meaning
			}
		}
		return meaning
	}
	if meaning != "" {
		return meaning
	}
	return arabic
}

// emit sanitizes and validates one record before handing it to the sink.
// Records with an out-of-range address or empty text are dropped.
func (p *Parser) emit(chapter, verse int, text string, sink Sink) error {
	text = utils.Sanitize(text)
	if chapter < 1 || chapter > 114 || verse < 1 || text == "" {
		p.debugSkip("record failed validation", chapter, verse)
		return nil
	}
	if err := sink(models.CommentaryRecord{
		SourceID: p.sourceID,
		Chapter:  chapter,
		Verse:    verse,
		Text:     text,
	}); err != nil {
		return err
	}
	p.emitted++
	p.reportProgress()
	return nil
}

func (p *Parser) reportProgress() {
	if p.onProgress == nil {
		return
	}
	frac := float64(p.emitted) / float64(p.expected)
	if frac > 1 {
		frac = 1
	}
	p.onProgress(parseProgressStart + frac*(parseProgressEnd-parseProgressStart))
}

func (p *Parser) debugSkip(reason string, chapter, verse int) {
	if p.logger != nil {
		p.logger.Debug("skipping element", zap.String("reason", reason),
			zap.String("source", p.sourceID), zap.Int("chapter", chapter), zap.Int("verse", verse))
	}
}

// rawField returns the raw value for the first synonym present in block,
// matched case-insensitively.
func rawField(block map[string]json.RawMessage, synonyms []string) (json.RawMessage, bool) {
	for _, syn := range synonyms {
		if v, ok := block[syn]; ok {
			return v, true
		}
		for k, v := range block {
			if strings.EqualFold(k, syn) {
				return v, true
			}
		}
	}
	return nil, false
}

func rawInt(block map[string]json.RawMessage, synonyms []string) (int, bool) {
	raw, ok := rawField(block, synonyms)
	if !ok {
		return 0, false
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	return asInt(v)
}

// skipValue consumes and discards the next value without materializing it.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	return skipOpenValue(dec, tok)
}

// skipOpenValue discards the remainder of a value whose first token has
// already been read.
func skipOpenValue(dec *json.Decoder, tok json.Token) error {
	d, ok := tok.(json.Delim)
	if !ok || (d != '[' && d != '{') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}
