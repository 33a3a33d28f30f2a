package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LerianStudio/midaz-flow/internal/adapters/embedded"
	"github.com/LerianStudio/midaz-flow/internal/bootstrap"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCreateEditionCommand() *cobra.Command {
	var (
		name        string
		description string
		divergences []string
	)

	c := &cobra.Command{
		Use:   "create-edition",
		Short: "register a new edition and persist its divergence points",
		Long: "create-edition registers a forked timeline (spec's edition manager). " +
			"Each --divergence flag names where one aggregate's history forks off main, " +
			"as domain=root:sequence, e.g. --divergence orders=3fa85f64-...:12",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" || name == model.MainEdition {
				return fmt.Errorf("midaz-flow: --name is required and must not be %q", model.MainEdition)
			}

			points := make([]model.DivergencePoint, 0, len(divergences))

			for _, d := range divergences {
				p, err := parseDivergence(d)
				if err != nil {
					return err
				}

				points = append(points, p)
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

			es, ok := events.(*embedded.Store)
			if !ok {
				return fmt.Errorf("midaz-flow: create-edition requires --storage-driver embedded (edition metadata has nowhere to persist under %q)", cfg.StorageDriver)
			}

			editions := embedded.OpenEditionStore(es)

			if _, found, err := editions.Get(cmd.Context(), name); err != nil {
				return fmt.Errorf("midaz-flow: look up edition: %w", err)
			} else if found {
				return fmt.Errorf("midaz-flow: edition %q already exists", name)
			}

			ed := model.Edition{Name: name, Description: description, Divergences: points}
			if err := editions.Put(cmd.Context(), ed); err != nil {
				return fmt.Errorf("midaz-flow: persist edition: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "edition %q created with %d divergence point(s)\n", name, len(points))

			return nil
		},
	}

	c.Flags().StringVar(&name, "name", "", "edition name (required, must not be \"main\")")
	c.Flags().StringVar(&description, "description", "", "human-readable description")
	c.Flags().StringArrayVar(&divergences, "divergence", nil, "domain=root:sequence, repeatable")

	return c
}

func parseDivergence(s string) (model.DivergencePoint, error) {
	domain, rest, ok := strings.Cut(s, "=")
	if !ok {
		return model.DivergencePoint{}, fmt.Errorf("midaz-flow: invalid --divergence %q, want domain=root:sequence", s)
	}

	rootStr, seqStr, ok := strings.Cut(rest, ":")
	if !ok {
		return model.DivergencePoint{}, fmt.Errorf("midaz-flow: invalid --divergence %q, want domain=root:sequence", s)
	}

	root, err := uuid.Parse(rootStr)
	if err != nil {
		return model.DivergencePoint{}, fmt.Errorf("midaz-flow: invalid root in --divergence %q: %w", s, err)
	}

	seq, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return model.DivergencePoint{}, fmt.Errorf("midaz-flow: invalid sequence in --divergence %q: %w", s, err)
	}

	return model.DivergencePoint{Domain: domain, Root: root, Sequence: uint32(seq)}, nil
}
