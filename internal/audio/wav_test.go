package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWav(t *testing.T, path string, samples []int, sampleRate, channels int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   samples,
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

func TestDecodeFileMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeTestWav(t, path, []int{0, 16384, -16384, 32767}, 16000, 1)

	samples, rate, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", rate)
	}
	if len(samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(samples))
	}
	if math.Abs(float64(samples[1])-0.5) > 1e-3 {
		t.Fatalf("expected sample ~0.5, got %v", samples[1])
	}
	if math.Abs(float64(samples[2])+0.5) > 1e-3 {
		t.Fatalf("expected sample ~-0.5, got %v", samples[2])
	}
}

func TestDecodeFileStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// interleaved L/R pairs; downmix averages each pair
	writeTestWav(t, path, []int{16384, 0, 0, 16384}, 8000, 2)

	samples, rate, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 8000 {
		t.Fatalf("expected sample rate 8000, got %d", rate)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 downmixed samples, got %d", len(samples))
	}
	for i, s := range samples {
		if math.Abs(float64(s)-0.25) > 1e-3 {
			t.Fatalf("sample %d: expected ~0.25, got %v", i, s)
		}
	}
}

func TestDecodeFileMissing(t *testing.T) {
	if _, _, err := DecodeFile(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
