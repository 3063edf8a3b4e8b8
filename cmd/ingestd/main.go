package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fleet-track/ingestion/internal/auth"
	"fleet-track/ingestion/internal/config"
	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/geocode"
	"fleet-track/ingestion/internal/geozone"
	"fleet-track/ingestion/internal/observability"
	"fleet-track/ingestion/internal/pipeline"
	"fleet-track/ingestion/internal/rules"
	"fleet-track/ingestion/internal/store"
	transport "fleet-track/ingestion/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger()
	if envErr != nil {
		logger.Info("no .env file found, using system environment variables")
	}
	logger.Info("starting ingestd", "http_port", cfg.HTTPPort, "metrics_port", cfg.MetricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		logger.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	rds, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		logger.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	defer rds.Close()

	zones, err := pg.LoadGeozones(ctx)
	if err != nil {
		logger.Error("geozone load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("geozone catalogue loaded", "zones", len(zones))

	var geocoder geocode.ReverseGeocodeProvider = geocode.NopReverseGeocoder{}
	if cfg.GeocoderURL != "" {
		geocoder = geocode.NewHTTPProvider(cfg.GeocoderURL, cfg.GeocoderFast)
	}
	var cells geocode.CellTowerLocator = geocode.NopCellLocator{}
	if cfg.CellLocatorURL != "" {
		cells = geocode.NewHTTPCellLocator(cfg.CellLocatorURL)
	}

	engine := rules.NewEngine(nil, rds, rules.MultiSink{pg, rds}, logger)

	pipe := pipeline.New(pipeline.Config{
		FutureDateAction:     domain.ParseFutureDateAction(cfg.FutureDateAction),
		FutureDateMaxSkewSec: cfg.FutureDateMaxSkewSec,
		MaxOdometerKM:        cfg.MaxOdometerKM,
		GeocoderLocale:       cfg.GeocoderLocale,
		Workers:              cfg.EnrichWorkers,
		QueueSize:            cfg.EnrichQueueSize,
	}, pipeline.Deps{
		Store:       pg,
		Mirror:      rds,
		Zones:       geozone.NewStatic(zones),
		Geocoder:    geocoder,
		CellLocator: cells,
		Rules:       engine,
		Accounts:    pipeline.FixedAccountSettings{Mode: domain.ParseGeocoderMode(cfg.GeocoderMode)},
		Log:         logger,
	})

	authn := auth.NewAuthenticator(cfg, rds)
	ingest := transport.NewIngestHandler(pipe, pg, logger)

	mux := http.NewServeMux()
	mux.Handle("/v1/events", transport.NewAuthMiddleware(authn).Wrap(ingest))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := observability.NewMetricsServer(cfg.MetricsPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.RunWorkers(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		merr := metricsSrv.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return merr
	})

	if err := g.Wait(); err != nil {
		logger.Error("ingestd stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestd stopped")
}
