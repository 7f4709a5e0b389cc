package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ambiware-labs/murmur/internal/audio"
	"github.com/ambiware-labs/murmur/internal/bus"
	"github.com/ambiware-labs/murmur/internal/config"
	"github.com/ambiware-labs/murmur/internal/model"
	"github.com/ambiware-labs/murmur/internal/natsserver"
	"github.com/ambiware-labs/murmur/internal/stt"
	"github.com/ambiware-labs/murmur/internal/transcripts"
)

// Runtime wires the daemon together: telemetry, the embedded bus, the model
// manager, the recording session, the bus-facing STT service, and the HTTP
// control surface.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	session    *stt.Session
	store      *transcripts.Store
	busClient  *bus.Client
	ready      atomic.Bool
	wg         sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()
	r.busClient = busClient

	store, err := transcripts.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer store.Close()
	r.store = store

	builder, err := model.BuilderFor(r.cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to resolve engine builder: %w", err)
	}
	manager := model.NewManager(r.cfg.Model.Dir, r.cfg.Model.BaseURL, builder, r.logger)
	defer manager.Close()

	if r.cfg.Model.AutoLoad && manager.Downloaded() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := manager.Load(ctx); err != nil {
				r.logger.Error("model load failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.session = stt.NewSession(manager, r.cfg.STT.SampleRate, r.logger)

	service := stt.NewService(ctx, busClient, r.session, manager, store, r.logger)
	if err := service.Start(); err != nil {
		return fmt.Errorf("failed to start stt service: %w", err)
	}
	defer service.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/v1/status", r.handleStatus)
	mux.HandleFunc("/v1/transcripts", r.handleTranscripts)
	mux.HandleFunc("/v1/transcribe", r.handleTranscribe)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, r.session.Status())
}

func (r *Runtime) handleTranscripts(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	utterances, err := r.store.Recent(req.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, utterances)
}

// handleTranscribe accepts a PCM WAV body and returns its transcript. The
// upload is spooled to disk because the WAV decoder needs a seekable source.
func (r *Runtime) handleTranscribe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tmp, err := os.CreateTemp("", "murmur_upload_*.wav")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, req.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	samples, _, err := audio.DecodeFile(tmp.Name())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, err := r.session.TranscribeSamples(req.Context(), samples)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"text": text})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
