// File: internal/provider/registry/registry.go
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"bucketmirror/internal/config"
	"bucketmirror/pkg/storage"
)

// Reports whether the configuration holds enough to build a client for the provider
type ProviderConfigCheck func(cfg *config.Config) bool

// Builds an object-storage client from the configuration
type ProviderInitializer func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error)

type ProviderRegistration struct {
	ConfigCheck ProviderConfigCheck
	Initializer ProviderInitializer
	// Config keys the user must set, shown when the provider is not configured (e.g. "aws.region")
	RequiredKeys []string
}

var (
	// Keyed by lowercase provider name
	providerRegistry = make(map[string]ProviderRegistration)
	registryMu       sync.RWMutex
)

// Called from the init() of each provider package
func RegisterProvider(name string, registration ProviderRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	normalizedName := strings.ToLower(name)
	if _, exists := providerRegistry[normalizedName]; exists {
		panic(fmt.Sprintf("provider %s already registered", normalizedName))
	}
	if registration.ConfigCheck == nil {
		panic(fmt.Sprintf("provider %s registration missing ConfigCheck", normalizedName))
	}
	if registration.Initializer == nil {
		panic(fmt.Sprintf("provider %s registration missing Initializer", normalizedName))
	}

	providerRegistry[normalizedName] = registration
}

// Returns a sorted list of all registered provider names
func GetSupportedProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	providers := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

func IsSupported(providerName string) bool {
	_, exists := GetRegistration(providerName)
	return exists
}

func GetRegistration(providerName string) (ProviderRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	registration, exists := providerRegistry[strings.ToLower(providerName)]
	return registration, exists
}
