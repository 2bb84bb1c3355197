package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedPoolDefaults(t *testing.T) {
	cfg := Default()
	if cfg.MaxThreads != 2000 {
		t.Fatalf("got MaxThreads=%d, want 2000", cfg.MaxThreads)
	}
	if cfg.IdleTimeoutMs != 15000 {
		t.Fatalf("got IdleTimeoutMs=%d, want 15000", cfg.IdleTimeoutMs)
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "max_threads = 7\nlog_level = \"debug\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxThreads != 7 {
		t.Fatalf("got MaxThreads=%d, want 7", cfg.MaxThreads)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("got LogLevel=%q, want debug", cfg.LogLevel)
	}
	if cfg.MaxQueueLen != Default().MaxQueueLen {
		t.Fatal("expected unset fields to keep their defaults")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxThreads != Default().MaxThreads {
		t.Fatal("expected defaults when file is absent")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("max_threads = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKPOOL_MAX_THREADS", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxThreads != 42 {
		t.Fatalf("got MaxThreads=%d, want env override 42", cfg.MaxThreads)
	}
}
