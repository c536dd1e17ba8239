// File: cmd/bucketmirror/app.go
package main

import (
	"context"
	"errors"
	"log/slog"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/factory"
	"bucketmirror/internal/service"
	"bucketmirror/pkg/formatter"

	"github.com/spf13/afero"
)

// appContainer holds all the shared dependencies for the application
// This includes configuration, the provider factory, the sync service, formatters, and the logger
type appContainer struct {
	Config           *config.Config
	ConfigManager    *config.ConfigManager
	ProviderFactory  *factory.Factory
	Fs               afero.Fs
	SyncService      *service.SyncService
	SummaryFormatter *formatter.SummaryFormatter
	Logger           *slog.Logger

	closeLog func() error
}

// Creates and initializes a new application container
func newApp(cfgManager *config.ConfigManager, cfg *config.Config, logger *slog.Logger, closeLog func() error) *appContainer {
	providerFactory := factory.NewFactory(cfg, logger)
	fs := afero.NewOsFs()

	return &appContainer{
		Config:           cfg,
		ConfigManager:    cfgManager,
		ProviderFactory:  providerFactory,
		Fs:               fs,
		SyncService:      service.NewSyncService(providerFactory, fs, logger),
		SummaryFormatter: formatter.NewSummaryFormatter(),
		Logger:           logger,
		closeLog:         closeLog,
	}
}

// Builds a sync service that logs through a different logger, sharing everything else
func (a *appContainer) syncServiceWithLogger(logger *slog.Logger) *service.SyncService {
	return service.NewSyncService(a.ProviderFactory, a.Fs, logger)
}

// Close releases the log file. Later calls are no-ops
func (a *appContainer) Close() error {
	if a.closeLog == nil {
		return nil
	}
	closeLog := a.closeLog
	a.closeLog = nil
	return closeLog()
}

type appContextKey struct{}

func withApp(ctx context.Context, app *appContainer) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

func appFromContext(ctx context.Context) (*appContainer, error) {
	app, ok := ctx.Value(appContextKey{}).(*appContainer)
	if !ok || app == nil {
		return nil, errors.New("application not initialized")
	}
	return app, nil
}
