package cmd

import (
	"fmt"

	"github.com/LerianStudio/midaz-flow/internal/bootstrap"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/spf13/cobra"
)

func newListDomainsCommand() *cobra.Command {
	var edition string

	c := &cobra.Command{
		Use:   "list-domains",
		Short: "list every domain with at least one event under an edition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			events, _, _, closeStorage, err := bootstrap.OpenStorage(cfg)
			if err != nil {
				return err
			}
			defer closeStorage()

			domains, err := events.ListDomains(cmd.Context(), model.NormalizeEdition(edition))
			if err != nil {
				return fmt.Errorf("midaz-flow: list domains: %w", err)
			}

			if len(domains) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no domains)")
				return nil
			}

			for _, d := range domains {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}

			return nil
		},
	}

	c.Flags().StringVar(&edition, "edition", "", "edition to list domains under (default: main)")

	return c
}
