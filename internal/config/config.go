// Package config loads service configuration from a YAML file with
// environment overrides for secrets and addresses.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meeting-audio-pipeline/internal/events"
	"meeting-audio-pipeline/internal/observability/logging"
	"meeting-audio-pipeline/internal/service/callout"
)

// SourceConfig configures one audio input pipeline.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Mode       string `yaml:"mode"`        // classified, raw
	SampleRate int    `yaml:"sample_rate"` // input rate of the capture device
}

// AudioConfig covers chunking and resampling.
type AudioConfig struct {
	TargetSampleRate int            `yaml:"target_sample_rate"`
	ChunkDurationMs  int            `yaml:"chunk_duration_ms"`
	Sources          []SourceConfig `yaml:"sources"`
}

func (c *AudioConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("audio: target_sample_rate must be positive, got %d", c.TargetSampleRate)
	}
	if c.ChunkDurationMs <= 0 {
		return fmt.Errorf("audio: chunk_duration_ms must be positive, got %d", c.ChunkDurationMs)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("audio: at least one source required")
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("audio: source with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("audio: duplicate source %q", s.Name)
		}
		seen[s.Name] = true
		if s.Mode != "" && s.Mode != "classified" && s.Mode != "raw" {
			return fmt.Errorf("audio: source %q: unknown mode %q", s.Name, s.Mode)
		}
		if s.SampleRate <= 0 {
			return fmt.Errorf("audio: source %q: sample_rate must be positive", s.Name)
		}
	}
	return nil
}

// VADConfig covers voice activity classification and noise estimation.
type VADConfig struct {
	AbsoluteMinThreshold float64 `yaml:"absolute_min_threshold"`
	NoiseMultiplier      float64 `yaml:"noise_multiplier"`
	NoiseFloor           float64 `yaml:"noise_floor"`
	NoiseAlpha           float64 `yaml:"noise_alpha"`
}

func (c *VADConfig) Validate() error {
	if c.AbsoluteMinThreshold <= 0 {
		return fmt.Errorf("vad: absolute_min_threshold must be positive")
	}
	if c.NoiseMultiplier <= 0 {
		return fmt.Errorf("vad: noise_multiplier must be positive")
	}
	if c.NoiseAlpha <= 0 || c.NoiseAlpha >= 1 {
		return fmt.Errorf("vad: noise_alpha must be in (0,1), got %v", c.NoiseAlpha)
	}
	return nil
}

// SegmenterConfig covers silence-debounced segment building.
type SegmenterConfig struct {
	MinSilenceMs         int     `yaml:"min_silence_ms"`
	MinSegmentMs         int     `yaml:"min_segment_ms"`
	MinAverageConfidence float64 `yaml:"min_average_confidence"`
	MaxRawSegmentMs      int     `yaml:"max_raw_segment_ms"`
}

func (c *SegmenterConfig) Validate() error {
	if c.MinSilenceMs <= 0 {
		return fmt.Errorf("segmenter: min_silence_ms must be positive")
	}
	if c.MinSegmentMs < 0 {
		return fmt.Errorf("segmenter: min_segment_ms must not be negative")
	}
	if c.MinAverageConfidence < 0 || c.MinAverageConfidence > 1 {
		return fmt.Errorf("segmenter: min_average_confidence must be in [0,1]")
	}
	if c.MaxRawSegmentMs <= 0 {
		return fmt.Errorf("segmenter: max_raw_segment_ms must be positive")
	}
	return nil
}

// ASRConfig selects and configures the transcription provider.
type ASRConfig struct {
	Provider string `yaml:"provider"` // mock, deepgram, deepgram-streaming, google
	Language string `yaml:"language"`
	// DeepgramBaseURL overrides the API endpoint, mainly for tests.
	DeepgramBaseURL string `yaml:"deepgram_base_url"`
	// DeepgramAPIKey is filled from DEEPGRAM_API_KEY when empty.
	DeepgramAPIKey string `yaml:"-"`
}

func (c *ASRConfig) Validate() error {
	switch c.Provider {
	case "mock", "google":
	case "deepgram", "deepgram-streaming":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("asr: provider %q requires DEEPGRAM_API_KEY", c.Provider)
		}
	default:
		return fmt.Errorf("asr: unknown provider %q", c.Provider)
	}
	return nil
}

// CalloutConfig covers urgency phrase detection.
type CalloutConfig struct {
	Enabled             bool                    `yaml:"enabled"`
	ConfidenceThreshold float64                 `yaml:"confidence_threshold"`
	Patterns            []callout.PatternConfig `yaml:"patterns"`
}

func (c *CalloutConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("callouts: confidence_threshold must be in [0,1]")
	}
	if _, err := callout.Compile(c.Patterns); err != nil {
		return fmt.Errorf("callouts: %w", err)
	}
	return nil
}

// ObservabilityConfig covers the metrics/health listener.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// ServiceConfig covers the service identity and HTTP status API.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Logging       logging.Config      `yaml:"logging"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	ASR           ASRConfig           `yaml:"asr"`
	Callouts      CalloutConfig       `yaml:"callouts"`
	Kafka         events.Config       `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "meeting-audio-pipeline",
			HTTPAddr: ":8080",
		},
		Logging: logging.DefaultConfig(),
		Audio: AudioConfig{
			TargetSampleRate: 16000,
			ChunkDurationMs:  1000,
			Sources: []SourceConfig{
				{Name: "mic", Mode: "classified", SampleRate: 48000},
				{Name: "system", Mode: "classified", SampleRate: 44100},
			},
		},
		VAD: VADConfig{
			AbsoluteMinThreshold: 0.012,
			NoiseMultiplier:      2.5,
			NoiseFloor:           0.01,
			NoiseAlpha:           0.05,
		},
		Segmenter: SegmenterConfig{
			MinSilenceMs:         800,
			MinSegmentMs:         500,
			MinAverageConfidence: 0.2,
			MaxRawSegmentMs:      10000,
		},
		ASR: ASRConfig{
			Provider: "mock",
			Language: "en-US",
		},
		Callouts: CalloutConfig{
			Enabled:             true,
			ConfidenceThreshold: callout.DefaultConfidenceThreshold,
		},
		Kafka: events.Config{
			TopicPartial: "meeting.transcripts.partial",
			TopicFinal:   "meeting.transcripts.final",
			TopicCallout: "meeting.callouts",
			Enabled:      false,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
		},
	}
}

// Load reads the YAML file at path, merges env overrides and validates.
// An empty path yields the defaults with env overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides secrets and addresses from the environment.
func (c *Config) applyEnv() {
	c.ASR.DeepgramAPIKey = envOrDefault("DEEPGRAM_API_KEY", c.ASR.DeepgramAPIKey)
	c.ASR.Provider = envOrDefault("ASR_PROVIDER", c.ASR.Provider)
	c.Service.HTTPAddr = envOrDefault("HTTP_ADDR", c.Service.HTTPAddr)
	c.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", c.Observability.MetricsAddr)
	c.Logging.Level = envOrDefault("LOG_LEVEL", c.Logging.Level)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCommas(v)
		c.Kafka.Enabled = true
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Service.HTTPAddr == "" {
		return fmt.Errorf("service: http_addr required")
	}
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if err := c.VAD.Validate(); err != nil {
		return err
	}
	if err := c.Segmenter.Validate(); err != nil {
		return err
	}
	if err := c.ASR.Validate(); err != nil {
		return err
	}
	if err := c.Callouts.Validate(); err != nil {
		return err
	}
	return nil
}

// ChunkDuration returns the configured chunk size as a duration.
func (c *AudioConfig) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkDurationMs) * time.Millisecond
}

// MinSilence returns the silence debounce as a duration.
func (c *SegmenterConfig) MinSilence() time.Duration {
	return time.Duration(c.MinSilenceMs) * time.Millisecond
}

// MinSegmentDuration returns the retention minimum as a duration.
func (c *SegmenterConfig) MinSegmentDuration() time.Duration {
	return time.Duration(c.MinSegmentMs) * time.Millisecond
}

// MaxRawSegment returns the raw-mode cap as a duration.
func (c *SegmenterConfig) MaxRawSegment() time.Duration {
	return time.Duration(c.MaxRawSegmentMs) * time.Millisecond
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCommas(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
