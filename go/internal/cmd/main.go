package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/ctfsession/go/internal/config"
	"github.com/mcdev12/ctfsession/go/internal/dbconfig"
	"github.com/mcdev12/ctfsession/go/internal/viewstate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Getenv("CTF_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var db *sql.DB
	if cfg.Archive.Enabled {
		db, err = setupDatabase(dbconfig.NewConfigFromEnv())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up archive database")
		}
		defer db.Close()
	}

	a, err := setupArena(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up arena")
	}

	log.Info().
		Str("arena_id", a.ID()).
		Str("portal", cfg.Portal.BaseURL).
		Int("game_id", cfg.Portal.GameID).
		Str("push", cfg.Push.Transport).
		Bool("archive", cfg.Archive.Enabled).
		Msg("starting ctf session client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		// Auth and missing-game failures are already reflected in the phase.
		log.Warn().Err(err).Msg("initial session refresh failed")
	}

	var server *http.Server
	if cfg.Server.Enabled {
		server = setupServer(viewstate.NewHandler(a), cfg.Server.Port)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("view-state server starting")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("view-state server failed")
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("view-state server shutdown failed")
		}
	}

	a.Stop()
	cancel()

	log.Info().Msg("ctf session client shutdown complete")
}
