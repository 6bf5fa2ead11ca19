package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"meeting-audio-pipeline/internal/app"
	"meeting-audio-pipeline/internal/config"
	apihttp "meeting-audio-pipeline/internal/http"
	"meeting-audio-pipeline/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	// Metrics and health endpoints on their own listener
	obs := observability.NewServer(cfg.Observability.MetricsAddr)
	obs.Start()

	// Status API
	apiServer := &http.Server{
		Addr:    cfg.Service.HTTPAddr,
		Handler: apihttp.NewRouter(application),
	}
	go func() {
		log.Info().Str("addr", cfg.Service.HTTPAddr).Msg("status API listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("status API failed")
		}
	}()

	meetingID := application.Start()
	log.Info().Str("meetingId", meetingID).Msg("meeting audio pipeline started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := application.Shutdown(shutdownCtx)
	if result != nil {
		os.Stdout.WriteString(result.Markdown)
	}

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down status API")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down metrics server")
	}
}
