package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/docbridge/internal/api"
	"stealthcompany.com/docbridge/internal/couchbase"
	"stealthcompany.com/docbridge/internal/metrics"
	"stealthcompany.com/docbridge/pkg/zerolog_config"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	zerolog_config.SetAppPrefix("docbridge")
	zerolog_config.StartupWithEnv(os.Getenv("ELASTICSEARCH_URL"), "logs")

	log.Info().Msg("Starting docbridge service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go metrics.StartSystemMetrics(ctx, 15*time.Second)

	// The cluster connection itself is established lazily on first use (or
	// eagerly through POST /connection/init).
	client := couchbase.NewClient()

	router := api.SetupRoutes(client)

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		if err := client.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Couchbase shutdown failed")
		}
	}()

	log.Info().Str("port", port).Msg("Server starting")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().
			Err(err).
			Msg("Failed to start server")
	}

	log.Info().Msg("docbridge service stopped")
}
