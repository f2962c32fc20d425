package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeZip creates a zip at path with the given member names and contents.
func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractJSON(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "src.zip")
	writeZip(t, archivePath, map[string]string{
		"readme.txt":  "ignore me",
		"tafsir.json": `[{"surah":1,"ayah":1,"text":"x"}]`,
	})

	dst := filepath.Join(dir, "out.json")
	if err := ExtractJSON(archivePath, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[{"surah":1,"ayah":1,"text":"x"}]` {
		t.Errorf("extracted content mismatch: %s", got)
	}
}

func TestExtractJSON_uppercaseSuffix(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "src.zip")
	writeZip(t, archivePath, map[string]string{"DATA.JSON": "{}"})

	dst := filepath.Join(dir, "out.json")
	if err := ExtractJSON(archivePath, dst); err != nil {
		t.Fatal(err)
	}
}

func TestExtractJSON_noMember(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "src.zip")
	writeZip(t, archivePath, map[string]string{"notes.txt": "nope"})

	dst := filepath.Join(dir, "out.json")
	err := ExtractJSON(archivePath, dst)
	if !errors.Is(err, ErrNoJSONMember) {
		t.Fatalf("err = %v, want ErrNoJSONMember", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("destination should not exist after failure")
	}
}

func TestExtractJSON_corruptArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(archivePath, []byte("this is not a zip"), 0600); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.json")
	if err := ExtractJSON(archivePath, dst); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("destination should not exist after failure")
	}
}

func TestExtractJSON_skipsMacOSForkEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "src.zip")
	writeZip(t, archivePath, map[string]string{
		"__MACOSX/._tafsir.json": "resource fork",
		"tafsir.json":            `{"2":{"1":"text"}}`,
	})
	dst := filepath.Join(dir, "out.json")
	if err := ExtractJSON(archivePath, dst); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != `{"2":{"1":"text"}}` {
		t.Errorf("picked wrong member: %s", got)
	}
}
