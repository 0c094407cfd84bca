// Package main provides libctl, the administration tool of the rental server. It works directly on the
// configured store, so it is meant to run next to the server with the same environment.
//
// Usage:
//
//	libctl create-admin --correo admin@biblioteca.ec --cedula 1700000000
//	libctl seed
//	libctl export --output backup.json
//	libctl import backup.json
package main

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/alquilibros/alquilibros-server/internal/di"
	"github.com/alquilibros/alquilibros-server/internal/di/providers"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// globalFlags are forwarded to the server configuration loader.
type globalFlags struct {
	storeDriver string
	storePath   string
	envFile     string
	logLevel    string
}

func (g *globalFlags) args() []string {
	args := []string{"--env-file", g.envFile, "--log-level", g.logLevel}
	if g.storeDriver != "" {
		args = append(args, "--store-driver", g.storeDriver)
	}
	if g.storePath != "" {
		args = append(args, "--store-path", g.storePath)
	}
	return args
}

// app holds the container of one command run.
type app struct {
	flags    globalFlags
	injector *do.RootScope
}

// services boots the container below the HTTP layer.
func (a *app) services() (*service.Services, error) {
	a.injector = di.NewContainer(a.flags.args())
	return di.Services(a.injector)
}

// store returns the raw store, bypassing the service hooks.
func (a *app) store() (store.Store, error) {
	a.injector = di.NewContainer(a.flags.args())
	handle, err := do.Invoke[*providers.StoreHandle](a.injector)
	if err != nil {
		return nil, err
	}
	return handle.Store, nil
}

func (a *app) close() {
	if a.injector != nil {
		_ = a.injector.Shutdown()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Administration tool for the Alquilibros server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.storeDriver, "store-driver", "", "record store backend (jsonfile, sqlite, badger, postgres)")
	pf.StringVar(&a.flags.storePath, "store-path", "", "path of the store file or directory")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "path to .env file")
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCreateAdminCmd(a),
		newSeedCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
