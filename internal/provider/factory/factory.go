// File: internal/provider/factory/factory.go
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/registry"
	"bucketmirror/pkg/storage"
)

type Factory struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Returns the registered providers whose configuration is complete, sorted
func (f *Factory) GetConfiguredProviders() []string {
	var configured []string
	for _, name := range registry.GetSupportedProviders() {
		if f.IsConfigured(name) {
			configured = append(configured, name)
		}
	}
	return configured
}

func (f *Factory) IsConfigured(providerName string) bool {
	registration, exists := registry.GetRegistration(providerName)
	if !exists {
		return false
	}
	return registration.ConfigCheck(f.cfg)
}

// ResolveProvider picks the provider for a run: the requested one, else the configured default,
// else the only configured provider
func (f *Factory) ResolveProvider(requested string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name == "" && f.cfg.Sync != nil {
		name = strings.ToLower(f.cfg.Sync.Provider)
	}
	if name != "" {
		return name, nil
	}

	configured := f.GetConfiguredProviders()
	switch len(configured) {
	case 1:
		return configured[0], nil
	case 0:
		return "", fmt.Errorf("no storage provider configured. Use 'bucketmirror config set <provider>.<key> <value>'. Supported providers: %s", strings.Join(registry.GetSupportedProviders(), ", "))
	default:
		return "", fmt.Errorf("several providers are configured (%s), select one with --provider or 'sync.provider'", strings.Join(configured, ", "))
	}
}

// Initializes and returns the storage client for the specified provider
func (f *Factory) GetStorageProvider(ctx context.Context, providerName string) (storage.ObjectStore, error) {
	normalizedName := strings.ToLower(providerName)
	providerLogger := f.logger.With("provider", normalizedName)

	registration, exists := registry.GetRegistration(normalizedName)
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s. Supported providers are: %v", providerName, registry.GetSupportedProviders())
	}

	if !registration.ConfigCheck(f.cfg) {
		return nil, fmt.Errorf("provider '%s' is not configured. Use 'bucketmirror config set <key> <value>' for: %s", normalizedName, strings.Join(registration.RequiredKeys, ", "))
	}

	client, err := registration.Initializer(ctx, f.cfg, providerLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", normalizedName, err)
	}

	return client, nil
}
