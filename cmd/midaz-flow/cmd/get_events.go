package cmd

import (
	"fmt"

	"github.com/LerianStudio/midaz-flow/internal/bootstrap"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newGetEventsCommand() *cobra.Command {
	var (
		domain   string
		rootFlag string
		edition  string
		fromSeq  uint32
	)

	c := &cobra.Command{
		Use:   "get-events",
		Short: "print every event page recorded for an aggregate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if domain == "" || rootFlag == "" {
				return fmt.Errorf("midaz-flow: --domain and --root are required")
			}

			root, err := uuid.Parse(rootFlag)
			if err != nil {
				return fmt.Errorf("midaz-flow: invalid --root: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			events, _, _, closeStorage, err := bootstrap.OpenStorage(cfg)
			if err != nil {
				return err
			}
			defer closeStorage()

			pages, err := events.ReadFrom(cmd.Context(), model.NormalizeEdition(edition), domain, root, fromSeq)
			if err != nil {
				return fmt.Errorf("midaz-flow: read events: %w", err)
			}

			if len(pages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no events)")
				return nil
			}

			for _, p := range pages {
				size := len(p.Event.Bytes)
				if p.ExternalPayloadRef != nil {
					size = int(p.ExternalPayloadRef.Size)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d bytes\n", p.Sequence, p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), p.Event.TypeURL, size)
			}

			return nil
		},
	}

	c.Flags().StringVar(&domain, "domain", "", "aggregate domain (required)")
	c.Flags().StringVar(&rootFlag, "root", "", "aggregate root UUID (required)")
	c.Flags().StringVar(&edition, "edition", "", "edition to read from (default: main)")
	c.Flags().Uint32Var(&fromSeq, "from", 0, "first sequence to include")

	return c
}
