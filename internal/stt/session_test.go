package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ambiware-labs/murmur/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readyManager writes a complete artifact directory and loads mock engines.
func readyManager(t *testing.T) *model.Manager {
	t.Helper()
	dir := t.TempDir()
	for _, name := range model.ManifestFiles {
		content := "stub"
		if name == model.FileVocab {
			content = "▁hello 0\n▁world 1\n<blk> 2\n"
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	manager := model.NewManager(dir, "", model.MockEngineBuilder(), discardLogger())
	if err := manager.Load(context.Background()); err != nil {
		t.Fatalf("load model: %v", err)
	}
	t.Cleanup(manager.Close)
	return manager
}

func TestStartRecordingRequiresReadyModel(t *testing.T) {
	manager := model.NewManager(t.TempDir(), "", model.MockEngineBuilder(), discardLogger())
	session := NewSession(manager, 16000, discardLogger())

	if err := session.StartRecording(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before download, got %v", err)
	}

	// A failed load parks the manager in the error state; recording must
	// still be refused.
	if err := manager.Load(context.Background()); err == nil {
		t.Fatal("expected load to fail on empty directory")
	}
	if err := session.StartRecording(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady after failed load, got %v", err)
	}
}

func TestPushAudioRequiresRecording(t *testing.T) {
	session := NewSession(readyManager(t), 16000, discardLogger())
	if err := session.PushAudio([]float32{0.1}); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestStopRecordingDrainsBuffer(t *testing.T) {
	session := NewSession(readyManager(t), 16000, discardLogger())

	// Stopping while idle is a no-op.
	if audio := session.StopRecording(); len(audio) != 0 {
		t.Fatalf("expected empty drain while idle, got %d samples", len(audio))
	}

	if err := session.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.PushAudio([]float32{1, 2}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := session.PushAudio([]float32{3}); err != nil {
		t.Fatalf("push: %v", err)
	}

	audio := session.StopRecording()
	if len(audio) != 3 || audio[0] != 1 || audio[2] != 3 {
		t.Fatalf("unexpected drained audio: %v", audio)
	}

	// A second stop returns nothing and pushing after stop is rejected.
	if audio := session.StopRecording(); len(audio) != 0 {
		t.Fatalf("expected empty second drain, got %d samples", len(audio))
	}
	if err := session.PushAudio([]float32{4}); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording after stop, got %v", err)
	}
}

func TestStartRecordingClearsPreviousBuffer(t *testing.T) {
	session := NewSession(readyManager(t), 16000, discardLogger())

	if err := session.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.PushAudio([]float32{1, 2, 3}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := session.StartRecording(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if audio := session.StopRecording(); len(audio) != 0 {
		t.Fatalf("expected restart to clear buffer, got %d samples", len(audio))
	}
}

func TestStopAndTranscribeEmptyBuffer(t *testing.T) {
	session := NewSession(readyManager(t), 16000, discardLogger())
	if err := session.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	text, err := session.StopAndTranscribe(context.Background())
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
}

func TestStopAndTranscribeSilence(t *testing.T) {
	session := NewSession(readyManager(t), 16000, discardLogger())
	if err := session.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.PushAudio(make([]float32, 16000)); err != nil {
		t.Fatalf("push: %v", err)
	}
	text, err := session.StopAndTranscribe(context.Background())
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript for silence, got %q", text)
	}
	if session.Status().IsRecording {
		t.Fatal("expected session to be idle after transcription")
	}
}

func TestStatusReflectsRecording(t *testing.T) {
	session := NewSession(readyManager(t), 16000, discardLogger())

	status := session.Status()
	if status.IsRecording {
		t.Fatal("expected idle status")
	}
	if status.ModelStatus.State != model.StateReady {
		t.Fatalf("expected ready model, got %v", status.ModelStatus.State)
	}

	if err := session.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !session.Status().IsRecording {
		t.Fatal("expected recording status")
	}
	session.StopRecording()
	if session.Status().IsRecording {
		t.Fatal("expected idle status after stop")
	}
}
