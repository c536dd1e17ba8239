// File: pkg/storage/gcp/client.go
package gcp

import (
	"context"
	"fmt"
	"log/slog"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/registry"
	"bucketmirror/pkg/common"
	"bucketmirror/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

func init() {
	registry.RegisterProvider("gcp", registry.ProviderRegistration{
		ConfigCheck:  isConfigured,
		Initializer:  initialize,
		RequiredKeys: []string{"gcp.project"},
	})
}

// Checks if the GCP configuration block is present and the project ID is set
func isConfigured(cfg *config.Config) bool {
	return cfg.GCP != nil && cfg.GCP.Project != ""
}

// Initializes the GCP storage client from the configuration
func initialize(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if !isConfigured(cfg) {
		return nil, fmt.Errorf("GCP configuration missing or incomplete")
	}
	return NewGCPStorage(ctx, *cfg.GCP, logger)
}

type GCPStorage struct {
	client *gcpstorage.Client
	logger *slog.Logger
}

var _ storage.ObjectStore = (*GCPStorage)(nil)

// NewGCPStorage uses Application Default Credentials unless a credentials file is configured.
// Object operations are bucket-scoped, so the project only labels the client's log records
func NewGCPStorage(ctx context.Context, cfg config.GCPConfig, logger *slog.Logger) (*GCPStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcpstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP storage client: %w", err)
	}

	logger = logger.With("project", cfg.Project)
	logger.Debug("GCP storage client created", "endpoint", cfg.Endpoint)

	return &GCPStorage{
		client: client,
		logger: logger,
	}, nil
}

func (g *GCPStorage) ProviderName() common.Provider {
	return common.GCP
}

func (g *GCPStorage) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
