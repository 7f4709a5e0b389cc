package model

import (
	"fmt"
	"path/filepath"

	"github.com/ambiware-labs/murmur/internal/config"
	"github.com/ambiware-labs/murmur/internal/infer"
	"github.com/ambiware-labs/murmur/internal/vocab"
)

// Pipeline bundles the three loaded inference engines with the vocabulary.
// It is handed out as an immutable snapshot; the engines serialize their own
// calls, so a Pipeline may be shared across transcriptions.
type Pipeline struct {
	Preprocessor infer.Engine
	Encoder      infer.Engine
	DecoderJoint infer.Engine
	Vocab        *vocab.Table
}

// Close releases all three engines.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	_ = p.Preprocessor.Close()
	_ = p.Encoder.Close()
	_ = p.DecoderJoint.Close()
}

// EngineSet holds freshly constructed engines before they are swapped into
// the manager.
type EngineSet struct {
	Preprocessor infer.Engine
	Encoder      infer.Engine
	DecoderJoint infer.Engine
}

// EngineBuilder constructs the three engines for the artifacts under dir.
// The vocabulary is passed along because stand-in implementations need the
// vocabulary size and blank id to shape their outputs.
type EngineBuilder func(dir string, table *vocab.Table) (EngineSet, error)

// ExecEngineBuilder builds sidecar-backed engines using the configured
// runner command.
func ExecEngineBuilder(cfg config.ModelConfig) EngineBuilder {
	return func(dir string, _ *vocab.Table) (EngineSet, error) {
		pre, err := infer.NewExecEngine(cfg.EngineCommand, filepath.Join(dir, FilePreprocessor), cfg.Threads)
		if err != nil {
			return EngineSet{}, fmt.Errorf("init preprocessor engine: %w", err)
		}
		enc, err := infer.NewExecEngine(cfg.EngineCommand, filepath.Join(dir, FileEncoder), cfg.Threads)
		if err != nil {
			return EngineSet{}, fmt.Errorf("init encoder engine: %w", err)
		}
		joint, err := infer.NewExecEngine(cfg.EngineCommand, filepath.Join(dir, FileDecoderJoint), cfg.Threads)
		if err != nil {
			return EngineSet{}, fmt.Errorf("init decoder-joint engine: %w", err)
		}
		return EngineSet{Preprocessor: pre, Encoder: enc, DecoderJoint: joint}, nil
	}
}

// MockEngineBuilder builds deterministic stand-in engines that always decode
// to an empty transcript.
func MockEngineBuilder() EngineBuilder {
	return func(_ string, table *vocab.Table) (EngineSet, error) {
		return EngineSet{
			Preprocessor: infer.NewMockPreprocessor(),
			Encoder:      infer.NewMockEncoder(),
			DecoderJoint: infer.NewMockDecoderJoint(table.Size(), table.BlankID()),
		}, nil
	}
}

// BuilderFor picks the engine builder for the configured mode.
func BuilderFor(cfg config.ModelConfig) (EngineBuilder, error) {
	switch cfg.EngineMode {
	case "exec":
		return ExecEngineBuilder(cfg), nil
	case "mock":
		return MockEngineBuilder(), nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.EngineMode)
	}
}
