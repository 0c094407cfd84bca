package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/alquilibros/alquilibros-server/internal/config"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/store/badgerstore"
	"github.com/alquilibros/alquilibros-server/internal/store/jsonfile"
	"github.com/alquilibros/alquilibros-server/internal/store/postgres"
	"github.com/alquilibros/alquilibros-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured store backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	st, err := OpenStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	location := cfg.Store.Path
	if cfg.Store.Driver == config.DriverPostgres {
		location = "postgres"
	}
	log.Info("Store opened", "driver", cfg.Store.Driver, "location", location)

	return &StoreHandle{Store: st}, nil
}

// OpenStore opens the backend selected by cfg.Store.Driver with the rental collections.
func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverJSONFile:
		return jsonfile.Open(cfg.Store.Path, domain.Collections, log, jsonfile.Options{Watch: true})
	case config.DriverSQLite:
		return sqlite.Open(cfg.Store.Path, domain.Collections, log)
	case config.DriverBadger:
		return badgerstore.Open(cfg.Store.Path, domain.Collections, log, badgerstore.Options{})
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Store.DatabaseURL, domain.Collections, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
