package parser

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field synonym sets, checked in priority order against element keys
// (case-insensitively). Unknown keys are ignored so sources can carry extra
// fields without breaking the parse.
var (
	chapterKeys = []string{"surah", "sura", "chapter", "surah_id"}
	verseKeys   = []string{"ayah", "aya", "verse", "ayah_number"}
	textKeys    = []string{"text", "tafseer", "content", "translation", "irab"}

	// Chapter blocks nested under "surahs".
	blockChapterKeys = []string{"surah_id", "surah", "number"}
	blockVersesKeys  = []string{"ayahs", "verses"}

	// Verse blocks inside a chapter block.
	blockVerseKeys = []string{"ayah_number", "ayah", "verse"}
	blockTextKeys  = []string{"text", "tafseer", "content"}

	// Word objects inside a verse block's "words" array.
	wordArabicKeys   = []string{"arabic", "word", "arabic_text"}
	wordMeaningKeys  = []string{"translation", "meaning", "text"}
	wordPositionKeys = []string{"position", "word_position", "pos"}
)

// lookupField returns the value for the first synonym present in m,
// matching keys case-insensitively.
func lookupField(m map[string]any, synonyms []string) (any, bool) {
	for _, syn := range synonyms {
		if v, ok := m[syn]; ok {
			return v, true
		}
		for k, v := range m {
			if strings.EqualFold(k, syn) {
				return v, true
			}
		}
	}
	return nil, false
}

// fieldInt extracts an integer field; JSON numbers and numeric strings both count.
func fieldInt(m map[string]any, synonyms []string) (int, bool) {
	v, ok := lookupField(m, synonyms)
	if !ok {
		return 0, false
	}
	return asInt(v)
}

// fieldString extracts a string field.
func fieldString(m map[string]any, synonyms []string) (string, bool) {
	v, ok := lookupField(m, synonyms)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			// Some sources encode numbers as floats ("1.0").
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
