// Package di provides dependency injection configuration for the rental server.
package di

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/config"
	"github.com/alquilibros/alquilibros-server/internal/di/providers"
	"github.com/alquilibros/alquilibros-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers. args are the command-line flags
// handed to config.Load.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ConfigProvider(args))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage and search
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth and business services
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideServices)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Services initializes everything below the HTTP layer and fills the search index. Tools that work on the
// store without serving use this.
func Services(injector *do.RootScope) (*service.Services, error) {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return nil, err
	}
	_ = do.MustInvoke[*slog.Logger](injector)

	if _, err := do.Invoke[providers.AuthKey](injector); err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return nil, err
	}
	services, err := do.Invoke[*service.Services](injector)
	if err != nil {
		return nil, err
	}
	if err := providers.RebuildSearchIndex(injector); err != nil {
		return nil, err
	}
	return services, nil
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := Services(injector); err != nil {
		return err
	}
	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
