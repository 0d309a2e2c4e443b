package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parahub/client-go/internal/api"
	"parahub/client-go/internal/config"
	"parahub/client-go/internal/elevation"
	"parahub/client-go/internal/gateway"
	"parahub/client-go/internal/mapctl"
	"parahub/client-go/internal/metrics"
	"parahub/client-go/internal/perf"
	"parahub/client-go/internal/prefs"
	"parahub/client-go/internal/session"
	"parahub/client-go/internal/syncworker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := gateway.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := gateway.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.PrefsPath).Msg("failed to open preferences store")
	}
	defer store.Close()

	m := metrics.New()
	bus := perf.NewBus(cfg.PerfBusCapacity)

	sess := session.New(logger, store, nil)
	backend := api.New(cfg.BackendBaseURL, sess, nil)
	sess.SetFetcher(backend)

	elev := elevation.New(cfg.ElevationURL, elevation.Options{Timeout: cfg.ElevationTimeout})

	ctrl := mapctl.New(logger, backend, elev, m, bus, nil, mapctl.Options{
		MoveThresholdDeg: cfg.MoveThresholdDeg,
		DebounceDelay:    cfg.DebounceDelay,
		NoticeTTL:        cfg.NoticeTTL,
		PreviewZoomCap:   cfg.PreviewZoomCap,
		Layers:           cfg.Layers,
		DefaultViewport: mapctl.Viewport{
			CenterLat: cfg.DefaultCenterLat,
			CenterLng: cfg.DefaultCenterLng,
			Zoom:      cfg.DefaultZoom,
		},
	})
	defer ctrl.Close()

	// Restore a persisted session and warm the spot list; neither failing is
	// fatal at startup.
	if err := sess.Revalidate(ctx); err != nil {
		logger.Info().Err(err).Msg("no session restored")
	} else if err := ctrl.LoadSpots(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial spot load failed")
	}

	worker := syncworker.New(logger, sess, ctrl, syncworker.Options{})
	go worker.Run(ctx)

	h := gateway.NewHandler(logger, backend, backend, sess, ctrl, store, gateway.Options{
		Elevation: elev.Lookup,
		Metrics:   m,
		Bus:       bus,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("parahub-client listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
