package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	router "github.com/dkeye/RoonController/internal/adapters/http"
	"github.com/dkeye/RoonController/internal/adapters/upstream"
	"github.com/dkeye/RoonController/internal/app"
	"github.com/dkeye/RoonController/internal/app/orch"
	"github.com/dkeye/RoonController/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	tokens, err := upstream.OpenTokenStore(cfg.Upstream.StatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open token store")
	}
	defer tokens.Close()

	o := orch.New(nil, orch.Options{
		Policy:         app.PolicyByName(cfg.Backpressure),
		VolumeBurst:    cfg.VolumeBurst,
		VolumeInterval: cfg.VolumeInterval,
	})
	client := upstream.NewClient(upstream.Options{
		Address:          cfg.Upstream.Address,
		Discovery:        cfg.Upstream.Discovery,
		DiscoveryTimeout: cfg.Upstream.DiscoveryTimeout,
		ReconnectDelay:   cfg.Upstream.ReconnectDelay,
		RequestTimeout:   cfg.Upstream.RequestTimeout,
		Extension: upstream.Extension{
			ID:             cfg.Extension.ID,
			DisplayName:    cfg.Extension.DisplayName,
			DisplayVersion: cfg.Extension.DisplayVersion,
			Publisher:      cfg.Extension.Publisher,
			Email:          cfg.Extension.Email,
			Website:        cfg.Extension.Website,
		},
	}, o, tokens)
	o.Upstream = client

	r := router.SetupRouter(ctx, cfg, o, client)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := o.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("orchestrator stopped")
		}
	})
	wg.Go(func() {
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("upstream client stopped")
		}
	})
	wg.Go(func() {
		log.Info().Str("addr", addr).Msg("RoonController server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
}
