package stt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ambiware-labs/murmur/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Status is the read-only projection exposed to callers.
type Status struct {
	ModelStatus model.Status `json:"model_status"`
	IsRecording bool         `json:"is_recording"`
}

// Session is the audio-buffering state machine gated by model readiness. One
// short-lived mutex section guards each control operation; transcription runs
// outside the lock on a snapshotted pipeline so status polling never blocks
// behind a decode.
type Session struct {
	manager    *model.Manager
	sampleRate int
	log        *slog.Logger

	mu        sync.Mutex
	recording bool
	buffer    []float32

	meter           metric.Meter
	transcriptions  metric.Int64Counter
	decodeSteps     metric.Int64Counter
	audioSeconds    metric.Float64Counter
	emittedTokens   metric.Int64Counter
	metricsDisabled bool
}

// NewSession creates a recording session bound to manager.
func NewSession(manager *model.Manager, sampleRate int, logger *slog.Logger) *Session {
	s := &Session{
		manager:    manager,
		sampleRate: sampleRate,
		log:        logger.With(slog.String("component", "stt-session")),
		meter:      otel.Meter("github.com/ambiware-labs/murmur/stt"),
	}
	if err := s.initMetrics(); err != nil {
		s.metricsDisabled = true
		s.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return s
}

func (s *Session) initMetrics() error {
	var err error
	if s.transcriptions, err = s.meter.Int64Counter("murmur.stt.transcriptions",
		metric.WithDescription("Completed transcriptions")); err != nil {
		return err
	}
	if s.decodeSteps, err = s.meter.Int64Counter("murmur.stt.decode_steps",
		metric.WithDescription("Decoder-joint invocations")); err != nil {
		return err
	}
	if s.audioSeconds, err = s.meter.Float64Counter("murmur.stt.audio_seconds",
		metric.WithDescription("Seconds of audio transcribed")); err != nil {
		return err
	}
	if s.emittedTokens, err = s.meter.Int64Counter("murmur.stt.emitted_tokens",
		metric.WithDescription("Non-blank tokens emitted")); err != nil {
		return err
	}
	return nil
}

// Status snapshots the model status and recording flag.
func (s *Session) Status() Status {
	s.mu.Lock()
	recording := s.recording
	s.mu.Unlock()
	return Status{
		ModelStatus: s.manager.Status(),
		IsRecording: recording,
	}
}

// StartRecording clears the buffer and begins accumulating audio. It fails
// with ErrNotReady unless the model is loaded.
func (s *Session) StartRecording() error {
	if !s.manager.Ready() {
		return ErrNotReady
	}
	s.mu.Lock()
	s.buffer = s.buffer[:0]
	s.recording = true
	s.mu.Unlock()
	return nil
}

// PushAudio appends samples in order. Sample rate is not validated; callers
// own delivering audio at the configured rate.
func (s *Session) PushAudio(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return ErrNotRecording
	}
	s.buffer = append(s.buffer, samples...)
	return nil
}

// StopRecording transitions to idle and drains the buffer. It always
// succeeds; calling it while idle returns an empty slice.
func (s *Session) StopRecording() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	audio := s.buffer
	s.buffer = nil
	return audio
}

// StopAndTranscribe drains the buffered audio and decodes it to text. The
// decode runs on the caller's goroutine with a pipeline snapshot; a failed
// transcription does not invalidate loaded engines.
func (s *Session) StopAndTranscribe(ctx context.Context) (string, error) {
	audio := s.StopRecording()
	return s.transcribe(ctx, audio)
}

// TranscribeSamples decodes a standalone sample buffer, bypassing the
// recording state machine. Used for file-based transcription.
func (s *Session) TranscribeSamples(ctx context.Context, samples []float32) (string, error) {
	return s.transcribe(ctx, samples)
}

func (s *Session) transcribe(ctx context.Context, audio []float32) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	pipe, err := s.manager.Pipeline()
	if err != nil {
		return "", fmt.Errorf("snapshot pipeline: %w", err)
	}

	result, err := decodeUtterance(ctx, pipe, audio)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text := pipe.Vocab.Detokenize(result.tokens)

	s.recordMetrics(ctx, audio, result)
	s.log.Info("transcription complete",
		slog.Int("samples", len(audio)),
		slog.Int("decode_steps", len(result.frames)),
		slog.Int("tokens", len(result.tokens)))
	return text, nil
}

func (s *Session) recordMetrics(ctx context.Context, audio []float32, result decodeResult) {
	if s.metricsDisabled {
		return
	}
	s.transcriptions.Add(ctx, 1)
	s.decodeSteps.Add(ctx, int64(len(result.frames)))
	s.emittedTokens.Add(ctx, int64(len(result.tokens)))
	if s.sampleRate > 0 {
		s.audioSeconds.Add(ctx, float64(len(audio))/float64(s.sampleRate))
	}
}
