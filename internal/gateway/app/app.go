package app

import (
	"context"
	"errors"
	"fmt"

	"depindex/internal/gateway/config"
	"depindex/internal/gateway/handler"
	"depindex/internal/gateway/server"
	"depindex/internal/gateway/service/publish"
	"depindex/internal/index"
)

type App struct {
	cfg       *config.Config
	stores    *gatewayStores
	index     *index.Service
	publisher *publish.Service
	server    *server.Server
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	fp, err := index.NewFingerprinter(cfg.Index.FingerprintAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	stores, err := initStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	indexSvc, err := index.NewService(stores.gems, index.Config{Fingerprinter: fp})
	if err != nil {
		_ = stores.close()
		return nil, err
	}
	publisher := publish.New(indexSvc, stores.mirror, cfg.Artifact.Mirror)

	indexHandler := handler.NewIndexHandler(indexSvc, cfg.HTTP.MaxBulkNames)
	publishHandler := handler.NewPublishHandler(publisher)
	healthHandler := handler.NewHealthHandler(indexSvc, stores.mirror)
	redirectHandler := handler.NewRedirectHandler(cfg.HTTP.UpstreamURL)

	// Routing & Server
	mux := server.NewMux(indexHandler, publishHandler, healthHandler, redirectHandler, server.MuxOptions{Gzip: cfg.HTTP.Gzip})
	srv := server.New(cfg.Port, mux)

	return &App{
		cfg:       cfg,
		stores:    stores,
		index:     indexSvc,
		publisher: publisher,
		server:    srv,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	return errors.Join(err, a.stores.close())
}

// Publish writes the global artifacts to the configured mirror.
func (a *App) Publish(ctx context.Context) ([]publish.Report, error) {
	return a.publisher.Publish(ctx)
}

// Reindex recomputes every persisted dependency-list fingerprint.
func (a *App) Reindex(ctx context.Context) (int, error) {
	return a.index.Reindex(ctx)
}

// Close releases stores without touching the HTTP server.
func (a *App) Close() error {
	return a.stores.close()
}

func (s *gatewayStores) close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}
