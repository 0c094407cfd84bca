package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/config"
	"github.com/alquilibros/alquilibros-server/internal/service"
)

// ProvideServices wires the business services over the store.
func ProvideServices(i do.Injector) (*service.Services, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)

	return service.New(storeHandle.Store, tokens, indexHandle.Index, service.Options{
		PerPage: cfg.Catalog.PerPage,
		YearMin: cfg.Catalog.YearMin,
		YearMax: cfg.Catalog.YearMax,
	}, log), nil
}
