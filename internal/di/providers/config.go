// Package providers contains dependency injection providers for the rental server.
package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/alquilibros/alquilibros-server/internal/config"
	"github.com/alquilibros/alquilibros-server/internal/logger"
)

// ConfigProvider provides the application configuration parsed from args (flags without the program name).
func ConfigProvider(args []string) func(do.Injector) (*config.Config, error) {
	return func(do.Injector) (*config.Config, error) {
		return config.Load(args)
	}
}

// ProvideLogger provides the structured logger and installs it as the slog default.
func ProvideLogger(i do.Injector) (*slog.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(log)

	log.Info("Starting Alquilibros server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store_driver", cfg.Store.Driver,
	)

	return log, nil
}
