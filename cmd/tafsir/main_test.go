package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/tafsir/internal/models"
	"github.com/hyperjump/tafsir/internal/sources"
	"github.com/hyperjump/tafsir/internal/storage"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"mercy and forgiveness", "-limit", "5"},
			expected: []string{"-limit", "5", "mercy and forgiveness"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "mercy and forgiveness"},
			expected: []string{"-limit", "5", "mercy and forgiveness"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"mercy"},
			expected: []string{"mercy"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-output", "json"},
			expected: []string{"-output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"mercy"}, "mercy"},
		{"multiple words", []string{"mercy", "forgiveness"}, "mercy forgiveness"},
		{"single quoted phrase", []string{"mercy forgiveness"}, "mercy forgiveness"},
		{"surrounding spaces trimmed", []string{" mercy "}, "mercy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	fn := progressPrinter(&buf)
	fn(0)
	fn(0.05) // same decile, no new line
	fn(0.5)
	fn(1.0)
	out := buf.String()
	if !strings.Contains(out, "50%") || !strings.Contains(out, "100%") {
		t.Errorf("expected decile output, got %q", out)
	}
	if strings.Contains(out, "5%") && strings.Count(out, "\r") != 3 {
		t.Errorf("expected 3 updates, got %q", out)
	}
}

func TestSourceRows(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	registry := sources.FromList([]models.CommentarySource{
		{ID: "a", Name: "A", Language: "en", Kind: models.KindCommentary, RemotePath: "a.zip"},
		{ID: "b", Name: "B", Language: "ar", Kind: models.KindCommentary, RemotePath: "b.zip"},
	})
	if err := store.UpsertReceipt(context.Background(), &models.IngestionReceipt{
		SourceID: "a", Name: "A", Language: "en", RecordCount: 10, ChapterCount: 2,
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := sourceRows(context.Background(), registry, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Ingested || rows[0].Receipt == nil {
		t.Error("expected first source ingested with receipt")
	}
	if rows[1].Ingested || rows[1].Receipt != nil {
		t.Error("expected second source not ingested")
	}
}

func TestLoadConfigFallbackToCwd(t *testing.T) {
	dir := t.TempDir()
	configContent := "debug: true\nserver:\n  port: 9999\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	cfg, path, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !strings.HasSuffix(path, "config.yaml") {
		t.Errorf("expected cwd config path, got %s", path)
	}
	if !cfg.Debug || cfg.Server.Port != 9999 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
