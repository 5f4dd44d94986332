package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "songbingo/internal/adapters/http"
	"songbingo/internal/adapters/playlist"
	sigws "songbingo/internal/adapters/signal"
	"songbingo/internal/adapters/spotify"
	bboltstore "songbingo/internal/adapters/store/bbolt"
	"songbingo/internal/app"
	"songbingo/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var store app.SessionStore
	if cfg.SessionDB != "" {
		s, err := bboltstore.Open(cfg.SessionDB)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SessionDB).Msg("open session db")
		}
		defer s.Close()
		store = s
	}

	var source app.PlaylistSource
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		source = spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	} else {
		log.Warn().Msg("no spotify credentials, using local playlist file source")
		source = &playlist.FileSource{Path: cfg.PlaylistFile}
	}

	reg := app.NewRegistry(app.Options{
		CardSize:       cfg.CardSize,
		BingoThreshold: cfg.BingoThreshold,
		Preview:        cfg.Preview,
		Source:         source,
		Store:          store,
	})
	ctl := sigws.NewController(reg, cfg)
	reg.SetNotifier(ctl)

	r := router.SetupRouter(ctx, cfg, reg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("song bingo server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
