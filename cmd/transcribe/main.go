// Command transcribe decodes one WAV file against a local model directory
// and prints the transcript. It loads the model in-process, without the
// daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ambiware-labs/murmur/internal/audio"
	"github.com/ambiware-labs/murmur/internal/config"
	"github.com/ambiware-labs/murmur/internal/model"
	"github.com/ambiware-labs/murmur/internal/stt"
)

func main() {
	var (
		modelDir   string
		engineMode string
		engineCmd  string
		threads    int
		wavPath    string
	)

	flag.StringVar(&modelDir, "model-dir", "./data/models/"+model.ModelName, "Model artifact directory")
	flag.StringVar(&engineMode, "engine-mode", "exec", "Engine mode: exec or mock")
	flag.StringVar(&engineCmd, "engine-command", "", "Sidecar runner command for exec mode")
	flag.IntVar(&threads, "threads", 4, "Intra-op threads for the runner")
	flag.StringVar(&wavPath, "audio", "", "WAV file to transcribe")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if wavPath == "" {
		fmt.Fprintln(os.Stderr, "transcribe: --audio must be set")
		os.Exit(2)
	}

	cfg := config.ModelConfig{
		Dir:           modelDir,
		EngineMode:    engineMode,
		EngineCommand: engineCmd,
		Threads:       threads,
	}
	builder, err := model.BuilderFor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	manager := model.NewManager(modelDir, "", builder, logger)
	if err := manager.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: load model: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	samples, rate, err := audio.DecodeFile(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}
	logger.Info("decoded audio", slog.Int("samples", len(samples)), slog.Int("sample_rate", rate))

	pipe, err := manager.Pipeline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}

	text, err := stt.Transcribe(ctx, pipe, samples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(text)
}
