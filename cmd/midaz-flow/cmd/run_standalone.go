package cmd

import (
	"fmt"

	"github.com/LerianStudio/midaz-flow/internal/bootstrap"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/spf13/cobra"
)

func newRunStandaloneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run-standalone",
		Short: "run a runtime instance until interrupted",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, err := mlog.New(cfg.EnvName, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("midaz-flow: initialize logger: %w", err)
			}

			svc, err := bootstrap.InitServersWithOptions(cfg, &bootstrap.Options{Logger: logger})
			if err != nil {
				return fmt.Errorf("midaz-flow: initialize service: %w", err)
			}

			return svc.Run(c.Context())
		},
	}
}
