package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// ModelConfig controls where model artifacts live, where they are fetched
// from, and how the three inference graphs are evaluated.
type ModelConfig struct {
	Dir           string `yaml:"dir"`
	BaseURL       string `yaml:"base_url"`
	EngineMode    string `yaml:"engine_mode"` // exec, mock
	EngineCommand string `yaml:"engine_command"`
	Threads       int    `yaml:"threads"`
	AutoLoad      bool   `yaml:"auto_load"`
}

type STTConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// StoreConfig controls the utterance history store.
type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxUtterances int    `yaml:"max_utterances"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Model       ModelConfig     `yaml:"model"`
	STT         STTConfig       `yaml:"stt"`
	Store       StoreConfig     `yaml:"store"`
}

func Default() Config {
	return Config{
		RuntimeName: "murmur-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Model: ModelConfig{
			Dir:        "./data/models/parakeet-tdt-0.6b-v3",
			BaseURL:    "https://huggingface.co/istupakov/parakeet-tdt-0.6b-v3-onnx/resolve/main",
			EngineMode: "mock",
			Threads:    4,
			AutoLoad:   true,
		},
		STT: STTConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Store: StoreConfig{
			Path:          "./data/murmur-transcripts.db",
			RetentionDays: 30,
			MaxUtterances: 10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MURMUR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MURMUR_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MURMUR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MURMUR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MURMUR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MURMUR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MURMUR_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MURMUR_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "MURMUR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MURMUR_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MURMUR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MURMUR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MURMUR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MURMUR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MURMUR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MURMUR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Model.Dir, "MURMUR_MODEL_DIR")
	overrideString(&cfg.Model.BaseURL, "MURMUR_MODEL_BASE_URL")
	overrideString(&cfg.Model.EngineMode, "MURMUR_MODEL_ENGINE_MODE")
	overrideString(&cfg.Model.EngineCommand, "MURMUR_MODEL_ENGINE_COMMAND")
	overrideInt(&cfg.Model.Threads, "MURMUR_MODEL_THREADS")
	overrideBool(&cfg.Model.AutoLoad, "MURMUR_MODEL_AUTO_LOAD")
	overrideInt(&cfg.STT.SampleRate, "MURMUR_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "MURMUR_STT_CHANNELS")
	overrideString(&cfg.Store.Path, "MURMUR_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "MURMUR_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxUtterances, "MURMUR_STORE_MAX_UTTERANCES")
	overrideBool(&cfg.Store.VacuumOnStart, "MURMUR_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Model.Dir == "" {
		return errors.New("model.dir must not be empty")
	}
	if cfg.Model.BaseURL == "" {
		return errors.New("model.base_url must not be empty")
	}
	switch cfg.Model.EngineMode {
	case "exec", "mock":
	default:
		return errors.New("model.engine_mode must be one of exec|mock")
	}
	if cfg.Model.EngineMode == "exec" && cfg.Model.EngineCommand == "" {
		return errors.New("model.engine_command must be set when engine_mode=exec")
	}
	if cfg.Model.Threads <= 0 {
		return errors.New("model.threads must be positive")
	}
	if cfg.STT.SampleRate <= 0 {
		return errors.New("stt.sample_rate must be positive")
	}
	if cfg.STT.Channels <= 0 {
		return errors.New("stt.channels must be positive")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
