package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"meeting-audio-pipeline/internal/service/callout"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"DEEPGRAM_API_KEY", "ASR_PROVIDER", "HTTP_ADDR",
		"METRICS_ADDR", "LOG_LEVEL", "KAFKA_BROKERS",
	} {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Audio.TargetSampleRate != 16000 {
		t.Errorf("expected target rate 16000, got %d", cfg.Audio.TargetSampleRate)
	}
	if cfg.Audio.ChunkDuration() != time.Second {
		t.Errorf("expected 1s chunks, got %v", cfg.Audio.ChunkDuration())
	}
	if len(cfg.Audio.Sources) != 2 {
		t.Errorf("expected mic and system sources, got %d", len(cfg.Audio.Sources))
	}
	if cfg.VAD.AbsoluteMinThreshold != 0.012 {
		t.Errorf("expected min threshold 0.012, got %v", cfg.VAD.AbsoluteMinThreshold)
	}
	if cfg.Segmenter.MinSilence() != 800*time.Millisecond {
		t.Errorf("expected 800ms debounce, got %v", cfg.Segmenter.MinSilence())
	}
	if cfg.Segmenter.MaxRawSegment() != 10*time.Second {
		t.Errorf("expected 10s raw cap, got %v", cfg.Segmenter.MaxRawSegment())
	}
	if cfg.ASR.Provider != "mock" {
		t.Errorf("expected default provider mock, got %s", cfg.ASR.Provider)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if !cfg.Callouts.Enabled {
		t.Error("expected callouts enabled by default")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
service:
  http_addr: ":9999"
audio:
  target_sample_rate: 8000
  chunk_duration_ms: 500
  sources:
    - name: mic
      mode: raw
      sample_rate: 44100
segmenter:
  min_silence_ms: 600
  min_segment_ms: 400
  min_average_confidence: 0.3
  max_raw_segment_ms: 5000
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Service.HTTPAddr != ":9999" {
		t.Errorf("expected :9999, got %s", cfg.Service.HTTPAddr)
	}
	if cfg.Audio.TargetSampleRate != 8000 {
		t.Errorf("expected 8000, got %d", cfg.Audio.TargetSampleRate)
	}
	if len(cfg.Audio.Sources) != 1 || cfg.Audio.Sources[0].Mode != "raw" {
		t.Errorf("unexpected sources: %+v", cfg.Audio.Sources)
	}
	if cfg.Segmenter.MinSilence() != 600*time.Millisecond {
		t.Errorf("expected 600ms, got %v", cfg.Segmenter.MinSilence())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Logging.Level)
	}
	// untouched sections keep defaults
	if cfg.VAD.NoiseMultiplier != 2.5 {
		t.Errorf("expected default noise multiplier, got %v", cfg.VAD.NoiseMultiplier)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("ASR_PROVIDER", "deepgram")
	os.Setenv("DEEPGRAM_API_KEY", "dg-test-key")
	os.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	defer clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ASR.Provider != "deepgram" {
		t.Errorf("expected deepgram, got %s", cfg.ASR.Provider)
	}
	if cfg.ASR.DeepgramAPIKey != "dg-test-key" {
		t.Errorf("expected key from env, got %q", cfg.ASR.DeepgramAPIKey)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled when brokers are set")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.ASR.Provider = "whisper" }},
		{"deepgram without key", func(c *Config) { c.ASR.Provider = "deepgram" }},
		{"no sources", func(c *Config) { c.Audio.Sources = nil }},
		{"duplicate source", func(c *Config) {
			c.Audio.Sources = []SourceConfig{
				{Name: "mic", SampleRate: 48000},
				{Name: "mic", SampleRate: 48000},
			}
		}},
		{"bad mode", func(c *Config) {
			c.Audio.Sources = []SourceConfig{{Name: "mic", Mode: "vad", SampleRate: 48000}}
		}},
		{"zero chunk duration", func(c *Config) { c.Audio.ChunkDurationMs = 0 }},
		{"alpha out of range", func(c *Config) { c.VAD.NoiseAlpha = 1.5 }},
		{"negative confidence floor", func(c *Config) { c.Segmenter.MinAverageConfidence = -0.1 }},
		{"bad callout pattern", func(c *Config) {
			c.Callouts.Patterns = []callout.PatternConfig{{Pattern: "(unclosed", Confidence: 0.5}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}
