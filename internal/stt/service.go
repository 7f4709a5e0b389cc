package stt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ambiware-labs/murmur/internal/bus"
	"github.com/ambiware-labs/murmur/internal/model"
	"github.com/ambiware-labs/murmur/internal/protocol"
	"github.com/ambiware-labs/murmur/internal/transcripts"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Service exposes the recording session and model manager over the bus:
// request-reply control subjects, an audio-frame subject, and broadcast
// subjects for transcripts and download progress.
type Service struct {
	bus     *bus.Client
	session *Session
	manager *model.Manager
	store   *transcripts.Store
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	subs    []*nats.Subscription
	wg      sync.WaitGroup
}

func NewService(parent context.Context, busClient *bus.Client, session *Session, manager *model.Manager, store *transcripts.Store, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:     busClient,
		session: session,
		manager: manager,
		store:   store,
		log:     logger.With(slog.String("component", "stt-service")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	handlers := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{protocol.SubjectAudioFrame, s.handleFrame},
		{protocol.SubjectControlStart, s.handleStart},
		{protocol.SubjectControlStop, s.handleStop},
		{protocol.SubjectStatus, s.handleStatus},
		{protocol.SubjectModelDownload, s.handleDownload},
	}
	for _, h := range handlers {
		sub, err := s.bus.Conn().Subscribe(h.subject, h.handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", h.subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.log.Warn("failed to decode audio frame", slogError(err))
		return
	}
	samples, err := pcmToFloat32(frame.PCM)
	if err != nil {
		s.log.Warn("invalid audio frame payload", slogError(err))
		return
	}
	if err := s.session.PushAudio(samples); err != nil {
		s.log.Warn("push audio rejected", slogError(err))
	}
}

func (s *Service) handleStart(msg *nats.Msg) {
	if err := s.session.StartRecording(); err != nil {
		s.respond(msg, protocol.ControlReply{Error: err.Error()})
		return
	}
	s.respond(msg, protocol.ControlReply{OK: true})
}

func (s *Service) handleStop(msg *nats.Msg) {
	audio := s.session.StopRecording()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		text, err := s.session.TranscribeSamples(s.ctx, audio)
		if err != nil {
			s.log.Warn("transcription failed", slogError(err))
			s.respond(msg, protocol.ControlReply{Error: err.Error()})
			return
		}
		s.respond(msg, protocol.ControlReply{OK: true, Text: text})
		s.publishTranscript(text, len(audio))
	}()
}

func (s *Service) handleStatus(msg *nats.Msg) {
	payload, err := json.Marshal(s.session.Status())
	if err != nil {
		s.log.Warn("failed to marshal status", slogError(err))
		return
	}
	if err := msg.Respond(payload); err != nil {
		s.log.Warn("failed to respond status", slogError(err))
	}
}

func (s *Service) handleDownload(msg *nats.Msg) {
	s.respond(msg, protocol.ControlReply{OK: true})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.manager.Download(s.ctx, func(progress float64) {
			s.publishProgress(progress)
		})
		if err != nil {
			s.log.Warn("model download failed", slogError(err))
		}
	}()
}

func (s *Service) publishProgress(progress float64) {
	data, err := json.Marshal(protocol.DownloadProgress{Progress: progress})
	if err != nil {
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectModelProgress, data); err != nil {
		s.log.Warn("failed to publish download progress", slogError(err))
	}
}

func (s *Service) publishTranscript(text string, samples int) {
	if text == "" {
		return
	}
	utteranceID := uuid.NewString()
	transcript := protocol.Transcript{
		UtteranceID: utteranceID,
		Text:        text,
		Samples:     samples,
		Timestamp:   time.Now().UTC(),
	}
	data, err := json.Marshal(transcript)
	if err != nil {
		s.log.Warn("failed to marshal transcript", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectTranscript, data); err != nil {
		s.log.Warn("failed to publish transcript", slogError(err))
	}

	if s.store != nil {
		err := s.store.Append(s.ctx, transcripts.Utterance{
			ID:      utteranceID,
			Text:    text,
			Samples: samples,
		})
		if err != nil {
			s.log.Warn("failed to persist transcript", slogError(err))
		}
	}
}

func (s *Service) respond(msg *nats.Msg, reply protocol.ControlReply) {
	if msg.Reply == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		s.log.Warn("failed to marshal reply", slogError(err))
		return
	}
	if err := msg.Respond(payload); err != nil {
		s.log.Warn("failed to respond", slogError(err))
	}
}

// pcmToFloat32 converts little-endian 16-bit PCM into [-1,1) float samples.
func pcmToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return samples, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
