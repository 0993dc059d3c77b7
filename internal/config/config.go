// Package config loads the TOML configuration shared by the voice binaries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override secrets from the file
const (
	EnvTranscriptionAPIKey = "NEURAI_TRANSCRIPTION_API_KEY"
	EnvSpeechAPIKey        = "NEURAI_SPEECH_API_KEY"
	EnvOpenAIAPIKey        = "OPENAI_API_KEY"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Capture       CaptureConfig       `toml:"capture"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Speech        SpeechConfig        `toml:"speech"`
	Storage       StorageConfig       `toml:"storage"`
	Logging       LoggingConfig       `toml:"logging"`
}

// ServerConfig contains the caller-facing HTTP API configuration
type ServerConfig struct {
	Address            string   `toml:"address"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ShutdownTimeout    Duration `toml:"shutdown_timeout"`
}

// CaptureConfig contains microphone and session limits
type CaptureConfig struct {
	Device          string   `toml:"device"` // "mic" or "replay"
	ReplayFile      string   `toml:"replay_file"`
	ReplayRealtime  bool     `toml:"replay_realtime"`
	SampleRate      int      `toml:"sample_rate"`
	ChunkSizeMs     int      `toml:"chunk_size_ms"`
	QueueSize       int      `toml:"queue_size"`
	MaxDuration     Duration `toml:"max_duration"`
	MaxPayloadBytes int      `toml:"max_payload_bytes"`
	FlushTimeout    Duration `toml:"flush_timeout"`
}

// TranscriptionConfig contains the transcription client configuration
type TranscriptionConfig struct {
	Endpoint string   `toml:"endpoint"`
	APIKey   string   `toml:"api_key"`
	Timeout  Duration `toml:"timeout"`
	Language string   `toml:"language"`
}

// SpeechConfig contains the transcription service configuration
type SpeechConfig struct {
	Address          string   `toml:"address"`
	Port             int      `toml:"port"`
	APIKey           string   `toml:"api_key"`
	MaxBodyBytes     int64    `toml:"max_body_bytes"`
	RecognizeTimeout Duration `toml:"recognize_timeout"`
	OpenAIAPIKey     string   `toml:"openai_api_key"`
	OpenAIBaseURL    string   `toml:"openai_base_url"`
	Model            string   `toml:"model"`
	Language         string   `toml:"language"`
	Prompt           string   `toml:"prompt"`
}

// StorageConfig contains transcription history configuration
type StorageConfig struct {
	Enabled       bool     `toml:"enabled"`
	SQLitePath    string   `toml:"sqlite_path"`
	HistoryLimit  int      `toml:"history_limit"`
	PruneInterval Duration `toml:"prune_interval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Default returns the configuration used when a key is not set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Capture: CaptureConfig{
			Device:          "mic",
			SampleRate:      16000,
			ChunkSizeMs:     100,
			QueueSize:       64,
			MaxDuration:     Duration(5 * time.Minute),
			MaxPayloadBytes: 25 << 20,
			FlushTimeout:    Duration(5 * time.Second),
		},
		Transcription: TranscriptionConfig{
			Endpoint: "http://127.0.0.1:8090/v1/transcribe",
			Timeout:  Duration(60 * time.Second),
		},
		Speech: SpeechConfig{
			Address:          "127.0.0.1",
			Port:             8090,
			MaxBodyBytes:     48 << 20,
			RecognizeTimeout: Duration(55 * time.Second),
			Model:            "whisper-1",
		},
		Storage: StorageConfig{
			Enabled:       true,
			SQLitePath:    "data/transcriptions.db",
			HistoryLimit:  50,
			PruneInterval: Duration(time.Minute),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Load reads .env, decodes the TOML file at path over the defaults, applies
// environment overrides and validates the result. An empty path uses
// defaults only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTranscriptionAPIKey); v != "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv(EnvSpeechAPIKey); v != "" {
		c.Speech.APIKey = v
	}
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		c.Speech.OpenAIAPIKey = v
	}
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative")
	}
	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	switch c.Device {
	case "mic":
	case "replay":
		if c.ReplayFile == "" {
			return fmt.Errorf("replay_file is required for the replay device")
		}
	default:
		return fmt.Errorf("device must be 'mic' or 'replay', got '%s'", c.Device)
	}

	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", c.SampleRate)
	}
	if c.ChunkSizeMs < 10 || c.ChunkSizeMs > 1000 {
		return fmt.Errorf("chunk_size_ms must be between 10 and 1000, got %d", c.ChunkSizeMs)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max_duration cannot be negative")
	}
	if c.MaxPayloadBytes < 0 {
		return fmt.Errorf("max_payload_bytes cannot be negative, got %d", c.MaxPayloadBytes)
	}
	if c.FlushTimeout < 0 {
		return fmt.Errorf("flush_timeout cannot be negative")
	}
	return nil
}

// Validate validates transcription client configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if !strings.HasPrefix(t.Endpoint, "http://") && !strings.HasPrefix(t.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got '%s'", t.Endpoint)
	}
	if t.Timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", t.Timeout)
	}
	return nil
}

// Validate validates speech service configuration
func (s *SpeechConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.MaxBodyBytes < 1024 {
		return fmt.Errorf("max_body_bytes must be at least 1024, got %d", s.MaxBodyBytes)
	}
	if s.RecognizeTimeout < 0 {
		return fmt.Errorf("recognize_timeout cannot be negative")
	}
	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.SQLitePath == "" {
		return fmt.Errorf("sqlite_path cannot be empty when storage is enabled")
	}
	if s.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", s.HistoryLimit)
	}
	if s.PruneInterval.Duration() < time.Second {
		return fmt.Errorf("prune_interval must be at least 1s, got %s", s.PruneInterval)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'console', got '%s'", l.Format)
	}

	return nil
}
