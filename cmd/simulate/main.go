// Command simulate drives the full pipeline with synthetic audio and the
// mock transcription provider, then prints the generated meeting notes.
// Useful for exercising segmentation, dispatch and note building without
// capture hardware or a transcription backend.
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"meeting-audio-pipeline/internal/app"
	"meeting-audio-pipeline/internal/config"
)

const (
	inputRate = 48000
	frameMs   = 100
)

// frame generates one 100ms frame: a 440Hz tone for speech, near-zero
// noise for silence.
func frame(speech bool) []float32 {
	n := inputRate * frameMs / 1000
	samples := make([]float32, n)
	for i := range samples {
		if speech {
			samples[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/inputRate))
		} else {
			samples[i] = 0.001 * float32(math.Sin(2*math.Pi*60*float64(i)/inputRate))
		}
	}
	return samples
}

func main() {
	utterances := flag.Int("utterances", 3, "Number of simulated speech bursts")
	speechMs := flag.Int("speech-ms", 2000, "Duration of each speech burst")
	silenceMs := flag.Int("silence-ms", 1200, "Silence between bursts")
	flag.Parse()

	cfg := config.Default()
	cfg.ASR.Provider = "mock"
	cfg.Kafka.Enabled = false
	cfg.Logging.Format = "console"
	cfg.Audio.Sources = []config.SourceConfig{
		{Name: "mic", Mode: "classified", SampleRate: inputRate},
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid simulation config")
	}

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	meetingID := application.Start()
	log.Info().
		Str("meetingId", meetingID).
		Int("utterances", *utterances).
		Msg("simulation started")

	ticker := time.NewTicker(frameMs * time.Millisecond)
	defer ticker.Stop()

	feed := func(ms int, speech bool) {
		for elapsed := 0; elapsed < ms; elapsed += frameMs {
			<-ticker.C
			if err := application.AddFrame("mic", frame(speech), inputRate); err != nil {
				log.Fatal().Err(err).Msg("failed to feed frame")
			}
		}
	}

	for i := 0; i < *utterances; i++ {
		feed(*speechMs, true)
		feed(*silenceMs, false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := application.Shutdown(shutdownCtx)
	if result == nil {
		log.Fatal().Msg("no meeting result produced")
	}

	log.Info().
		Int("segments", len(result.Segments)).
		Int("transcripts", len(result.Transcripts)).
		Int("actionItems", len(result.ActionItems)).
		Msg("simulation complete")

	os.Stdout.WriteString("\n" + result.Markdown + "\n")
}
