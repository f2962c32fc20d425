package wordindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tafsir/internal/assets"
)

func writeAsset(t *testing.T, name, content string) *assets.Dir {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return assets.NewDir(dir)
}

func TestLookup(t *testing.T) {
	opener := writeAsset(t, "words.json", `{
		"1": {"1": ["بِسْمِ", "ٱللَّهِ", "ٱلرَّحْمَٰنِ", "ٱلرَّحِيمِ"]},
		"112": {"1": ["قُلْ", "هُوَ", "ٱللَّهُ", "أَحَدٌ"]}
	}`)
	c := New(opener, "words.json")

	word, ok := c.Lookup(1, 1, 1)
	if !ok || word != "بِسْمِ" {
		t.Errorf("Lookup(1,1,1) = %q, %v", word, ok)
	}
	word, ok = c.Lookup(112, 1, 4)
	if !ok || word != "أَحَدٌ" {
		t.Errorf("Lookup(112,1,4) = %q, %v", word, ok)
	}
	if _, ok := c.Lookup(1, 1, 5); ok {
		t.Error("position past end should miss")
	}
	if _, ok := c.Lookup(2, 1, 1); ok {
		t.Error("unknown chapter should miss")
	}
}

func TestLookup_missingAssetDegradesToEmpty(t *testing.T) {
	c := New(assets.NewDir(t.TempDir()), "absent.json")
	if _, ok := c.Lookup(1, 1, 1); ok {
		t.Error("lookup on missing asset should miss, not fail")
	}
}

func TestLookup_malformedAssetDegradesToEmpty(t *testing.T) {
	opener := writeAsset(t, "words.json", `not json at all`)
	c := New(opener, "words.json")
	if _, ok := c.Lookup(1, 1, 1); ok {
		t.Error("lookup on malformed asset should miss, not fail")
	}
}
