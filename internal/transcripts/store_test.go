package transcripts

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ambiware-labs/murmur/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAppendAndRecent(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db")}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	u := Utterance{ID: "utt-1", Text: "hello world", Samples: 16000, Duration: time.Second}
	if err := store.Append(context.Background(), u); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(got))
	}
	if got[0].Text != "hello world" || got[0].Samples != 16000 {
		t.Fatalf("unexpected utterance: %+v", got[0])
	}
	if got[0].Duration != time.Second {
		t.Fatalf("expected 1s duration, got %v", got[0].Duration)
	}
}

func TestPruneByDaysAndCap(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionDays: 1, MaxUtterances: 1}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	store.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := store.Append(context.Background(), Utterance{ID: "old", Text: "old"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	store.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := store.Append(context.Background(), Utterance{ID: "new", Text: "new"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected only the new utterance, got %+v", got)
	}
}
