package model

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFileServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		if name == FileVocab {
			_, _ = w.Write([]byte("▁hello 0\n▁world 1\n<blk> 2\n"))
			return
		}
		_, _ = w.Write([]byte("weights for " + name))
	}))
}

func TestDownloadProgressAndReady(t *testing.T) {
	server := newFileServer(t)
	t.Cleanup(server.Close)

	dir := filepath.Join(t.TempDir(), "model")
	m := NewManager(dir, server.URL, MockEngineBuilder(), newLogger())

	if m.Status().State != StateNotDownloaded {
		t.Fatalf("expected initial state not_downloaded, got %v", m.Status().State)
	}

	var progress []float64
	if err := m.Download(context.Background(), func(p float64) { progress = append(progress, p) }); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	want := []float64{0, 1.0 / 6, 2.0 / 6, 3.0 / 6, 4.0 / 6, 5.0 / 6, 1}
	if len(progress) != len(want) {
		t.Fatalf("expected %d progress events, got %d: %v", len(want), len(progress), progress)
	}
	for i := range want {
		if math.Abs(progress[i]-want[i]) > 1e-9 {
			t.Fatalf("progress[%d] = %v, want %v", i, progress[i], want[i])
		}
	}

	if m.Status().State != StateReady {
		t.Fatalf("expected ready after download, got %v", m.Status())
	}
	if !m.Downloaded() {
		t.Fatal("expected all manifest files present")
	}
	pipe, err := m.Pipeline()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if pipe.Vocab.BlankID() != 2 {
		t.Fatalf("expected blank id 2, got %d", pipe.Vocab.BlankID())
	}
}

func TestDownloadIdempotentOnceReady(t *testing.T) {
	server := newFileServer(t)
	t.Cleanup(server.Close)

	dir := filepath.Join(t.TempDir(), "model")
	m := NewManager(dir, server.URL, MockEngineBuilder(), newLogger())
	if err := m.Download(context.Background(), nil); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	called := false
	if err := m.Download(context.Background(), func(float64) { called = true }); err != nil {
		t.Fatalf("second download failed: %v", err)
	}
	if called {
		t.Fatal("expected no progress events for idempotent download")
	}
	if m.Status().State != StateReady {
		t.Fatalf("expected ready, got %v", m.Status())
	}
}

func TestDownloadFailureRetainsPartialDirectory(t *testing.T) {
	var served int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if served >= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		served++
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	dir := filepath.Join(t.TempDir(), "model")
	m := NewManager(dir, server.URL, MockEngineBuilder(), newLogger())

	err := m.Download(context.Background(), nil)
	if err == nil {
		t.Fatal("expected download error")
	}
	if m.Status().State != StateError {
		t.Fatalf("expected error state, got %v", m.Status())
	}
	if m.Status().Message == "" {
		t.Fatal("expected error message in status")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read model dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 partial files retained, got %d", len(entries))
	}
}

func TestLoadFailsOnMissingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	m := NewManager(dir, "http://unused", MockEngineBuilder(), newLogger())

	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected load error for missing files")
	}
	if m.Status().State != StateError {
		t.Fatalf("expected error state, got %v", m.Status())
	}
	if _, err := m.Pipeline(); err == nil {
		t.Fatal("expected pipeline error when not loaded")
	}
}

func TestLoadFailsOnMalformedVocabulary(t *testing.T) {
	dir := t.TempDir()
	for _, name := range ManifestFiles {
		content := "data"
		if name == FileVocab {
			content = "token notanumber\n"
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	m := NewManager(dir, "http://unused", MockEngineBuilder(), newLogger())
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected load error for malformed vocabulary")
	}
	if m.Status().State != StateError {
		t.Fatalf("expected error state, got %v", m.Status())
	}
}
