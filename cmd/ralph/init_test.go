package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractTemplate_CreatesScaffold(t *testing.T) {
	dir := t.TempDir()

	created, skipped, err := extractTemplate(dir, false, nil)
	if err != nil {
		t.Fatalf("extractTemplate: %v", err)
	}
	if created == 0 {
		t.Fatal("extractTemplate created no files")
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0 in empty dir", skipped)
	}

	for _, name := range []string{
		"PROMPT_BUILD.md",
		"PROMPT_PLAN.md",
		"AGENTS.md",
		filepath.Join(".ralph", "config.yaml"),
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected scaffold file %s: %v", name, err)
		}
	}
}

func TestExtractTemplate_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PROMPT_BUILD.md")
	if err := os.WriteFile(path, []byte("my customized prompt"), 0644); err != nil {
		t.Fatal(err)
	}

	_, skipped, err := extractTemplate(dir, false, nil)
	if err != nil {
		t.Fatalf("extractTemplate: %v", err)
	}
	if skipped == 0 {
		t.Error("skipped = 0, want at least 1 for the existing file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "my customized prompt" {
		t.Errorf("existing file was overwritten: %q", data)
	}
}

func TestExtractTemplate_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PROMPT_BUILD.md")
	if err := os.WriteFile(path, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := extractTemplate(dir, true, nil); err != nil {
		t.Fatalf("extractTemplate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "stale" {
		t.Error("--force did not overwrite the existing file")
	}
}
