// Package model tracks speech-model artifacts on disk, downloads them, and
// loads the three inference engines behind a status-guarded manager.
package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/ambiware-labs/murmur/internal/vocab"
)

// ModelName identifies the model directory under the configured root.
const ModelName = "parakeet-tdt-0.6b-v3"

// Artifact file names making up the fixed manifest. Presence of all of them
// is the sole "downloaded" signal; there is no checksum verification.
const (
	FilePreprocessor   = "nemo128.onnx"
	FileEncoder        = "encoder-model.onnx"
	FileEncoderWeights = "encoder-model.onnx.data"
	FileDecoderJoint   = "decoder_joint-model.onnx"
	FileVocab          = "vocab.txt"
	FileMetadata       = "config.json"
)

// ManifestFiles lists the required artifacts in download order. The encoder
// weights blob dominates the byte count but still counts as one file for
// progress purposes.
var ManifestFiles = []string{
	FilePreprocessor,
	FileEncoder,
	FileEncoderWeights,
	FileDecoderJoint,
	FileVocab,
	FileMetadata,
}

// ProgressSink receives download progress in [0,1] at file granularity.
type ProgressSink func(progress float64)

// Manager owns the artifact lifecycle: presence checks, download, engine
// construction, and the status projection. Long operations run outside the
// state lock so status reads stay responsive.
type Manager struct {
	dir     string
	baseURL string
	build   EngineBuilder
	log     *slog.Logger
	client  *http.Client

	mu          sync.Mutex
	status      Status
	pipeline    *Pipeline
	downloading bool
}

// NewManager creates a manager for the artifacts under dir, fetched from
// baseURL, with engines constructed by build.
func NewManager(dir, baseURL string, build EngineBuilder, logger *slog.Logger) *Manager {
	return &Manager{
		dir:     dir,
		baseURL: baseURL,
		build:   build,
		log:     logger.With(slog.String("component", "model-manager")),
		client:  &http.Client{},
		status:  Status{State: StateNotDownloaded},
	}
}

// Status returns the current lifecycle snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Ready reports whether engines are loaded.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.State == StateReady && m.pipeline != nil
}

// Pipeline returns the loaded engine snapshot, or an error when the model is
// not ready.
func (m *Manager) Pipeline() (*Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pipeline == nil {
		return nil, fmt.Errorf("model not loaded")
	}
	return m.pipeline, nil
}

// Downloaded reports whether every manifest file exists on disk.
func (m *Manager) Downloaded() bool {
	for _, name := range ManifestFiles {
		if _, err := os.Stat(filepath.Join(m.dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Download sequentially fetches each manifest file and then loads the model.
// Progress is pushed to sink after each completed file and once more at full
// completion. A failure leaves the partial directory in place for retry and
// parks the status in the error state. Once Ready with engines loaded the
// call is an idempotent no-op.
func (m *Manager) Download(ctx context.Context, sink ProgressSink) error {
	m.mu.Lock()
	if m.status.State == StateReady && m.pipeline != nil {
		m.mu.Unlock()
		return nil
	}
	if m.downloading {
		m.mu.Unlock()
		return fmt.Errorf("download already in progress")
	}
	m.downloading = true
	m.status = Status{State: StateDownloading}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.downloading = false
		m.mu.Unlock()
	}()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		err = fmt.Errorf("create model directory: %w", err)
		m.setError(err)
		return err
	}

	total := len(ManifestFiles)
	for i, name := range ManifestFiles {
		progress := float64(i) / float64(total)
		m.setProgress(progress)
		emit(sink, progress)

		if err := m.fetchFile(ctx, name); err != nil {
			err = fmt.Errorf("download %s: %w", name, err)
			m.setError(err)
			return err
		}
		m.log.Info("model file downloaded",
			slog.String("file", name),
			slog.Int("completed", i+1),
			slog.Int("total", total))
	}
	m.setProgress(1)
	emit(sink, 1)

	return m.Load(ctx)
}

// Load parses the vocabulary and constructs the three engines outside the
// state lock, then atomically swaps them in and marks the model Ready.
func (m *Manager) Load(ctx context.Context) error {
	for _, name := range ManifestFiles {
		if _, err := os.Stat(filepath.Join(m.dir, name)); err != nil {
			err = fmt.Errorf("missing model file %s: %w", name, err)
			m.setError(err)
			return err
		}
	}

	table, err := vocab.Load(filepath.Join(m.dir, FileVocab))
	if err != nil {
		err = fmt.Errorf("load vocabulary: %w", err)
		m.setError(err)
		return err
	}

	engines, err := m.build(m.dir, table)
	if err != nil {
		err = fmt.Errorf("build engines: %w", err)
		m.setError(err)
		return err
	}

	next := &Pipeline{
		Preprocessor: engines.Preprocessor,
		Encoder:      engines.Encoder,
		DecoderJoint: engines.DecoderJoint,
		Vocab:        table,
	}

	m.mu.Lock()
	old := m.pipeline
	m.pipeline = next
	m.status = Status{State: StateReady}
	m.mu.Unlock()

	old.Close()
	m.log.Info("model loaded",
		slog.String("dir", m.dir),
		slog.Int("vocab_size", table.Size()),
		slog.Int64("blank_id", table.BlankID()))
	return nil
}

// Close releases loaded engines.
func (m *Manager) Close() {
	m.mu.Lock()
	p := m.pipeline
	m.pipeline = nil
	m.mu.Unlock()
	p.Close()
}

func (m *Manager) fetchFile(ctx context.Context, name string) error {
	url := m.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	file, err := os.Create(filepath.Join(m.dir, name))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func (m *Manager) setProgress(progress float64) {
	m.mu.Lock()
	m.status = Status{State: StateDownloading, Progress: progress}
	m.mu.Unlock()
}

func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.status = Status{State: StateError, Message: err.Error()}
	m.mu.Unlock()
}

func emit(sink ProgressSink, progress float64) {
	if sink != nil {
		sink(progress)
	}
}
