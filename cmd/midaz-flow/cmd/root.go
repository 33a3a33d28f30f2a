// Package cmd implements the midaz-flow CLI (spec §6): run-standalone,
// list-domains, get-events and create-edition, the command surface a
// reader reaches for to operate a runtime instance without writing Go.
// Grounded on mdz/cmd/root.go's persistent-flag-plus-subcommand shape.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/LerianStudio/midaz-flow/internal/bootstrap"
	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	storageDriver string
	dataDir       string
	logLevel      string
)

// NewRootCommand builds the midaz-flow root command and every subcommand.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "midaz-flow",
		Short: "midaz-flow operates a standalone event-sourcing runtime instance",
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&storageDriver, "storage-driver", "", "override storage driver (memory, embedded, postgres, sqlite)")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override embedded storage data directory")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	root.AddCommand(newRunStandaloneCommand())
	root.AddCommand(newListDomainsCommand())
	root.AddCommand(newGetEventsCommand())
	root.AddCommand(newCreateEditionCommand())

	return root
}

// Execute runs the root command with a signal-canceled context, the
// same shape bootstrap.Service.Run's own shutdown handling uses.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig layers bootstrap.Default() under an optional --config YAML
// file under environment variables under this command's own flag
// overrides, the same precedence run-standalone's config loading uses
// for every subcommand that touches storage.
func loadConfig() (bootstrap.Config, error) {
	cfg := bootstrap.Default()

	if cfgFile != "" {
		if err := bootstrap.LoadFromFile(&cfg, cfgFile); err != nil {
			return cfg, err
		}
	}

	if err := bootstrap.LoadFromEnv(&cfg); err != nil {
		return cfg, err
	}

	if storageDriver != "" {
		cfg.StorageDriver = storageDriver
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}
