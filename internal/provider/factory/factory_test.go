package factory

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/registry"
	"bucketmirror/internal/testutil"
	"bucketmirror/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInit = errors.New("credentials expired")

// Test providers key their configuration off sync.prefix so each case can toggle them
func init() {
	registry.RegisterProvider("memory", registry.ProviderRegistration{
		ConfigCheck: func(cfg *config.Config) bool {
			return cfg.Sync.Prefix == "memory" || cfg.Sync.Prefix == "both"
		},
		Initializer: func(context.Context, *config.Config, *slog.Logger) (storage.ObjectStore, error) {
			return testutil.NewMemoryStore("bkt"), nil
		},
		RequiredKeys: []string{"memory.enabled"},
	})
	registry.RegisterProvider("broken", registry.ProviderRegistration{
		ConfigCheck: func(cfg *config.Config) bool {
			return cfg.Sync.Prefix == "broken" || cfg.Sync.Prefix == "both"
		},
		Initializer: func(context.Context, *config.Config, *slog.Logger) (storage.ObjectStore, error) {
			return nil, errInit
		},
	})
}

func newTestFactory(prefix, defaultProvider string) *Factory {
	cfg := &config.Config{
		Sync: &config.SyncConfig{Prefix: prefix, Provider: defaultProvider},
		Log:  &config.LogConfig{Level: "info", Format: "text"},
	}
	return NewFactory(cfg, testutil.DiscardLogger())
}

func TestGetConfiguredProviders(t *testing.T) {
	assert.Empty(t, newTestFactory("", "").GetConfiguredProviders())
	assert.Equal(t, []string{"memory"}, newTestFactory("memory", "").GetConfiguredProviders())
	assert.Equal(t, []string{"broken", "memory"}, newTestFactory("both", "").GetConfiguredProviders())
}

func TestIsConfigured_UnknownProvider(t *testing.T) {
	assert.False(t, newTestFactory("both", "").IsConfigured("azure"))
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		def       string
		requested string
		want      string
		wantErr   string
	}{
		{name: "flag wins", prefix: "both", def: "broken", requested: " Memory ", want: "memory"},
		{name: "configured default", prefix: "both", def: "BROKEN", want: "broken"},
		{name: "single configured", prefix: "memory", want: "memory"},
		{name: "none configured", wantErr: "no storage provider configured"},
		{name: "ambiguous", prefix: "both", wantErr: "several providers are configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestFactory(tt.prefix, tt.def).ResolveProvider(tt.requested)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetStorageProvider(t *testing.T) {
	ctx := context.Background()

	store, err := newTestFactory("memory", "").GetStorageProvider(ctx, "MEMORY")
	require.NoError(t, err)
	assert.Equal(t, "MEMORY", string(store.ProviderName()))
}

func TestGetStorageProvider_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestFactory("both", "").GetStorageProvider(ctx, "azure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider: azure")

	_, err = newTestFactory("", "").GetStorageProvider(ctx, "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.enabled")

	_, err = newTestFactory("broken", "").GetStorageProvider(ctx, "broken")
	assert.ErrorIs(t, err, errInit)
}
