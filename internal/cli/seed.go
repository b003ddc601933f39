package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repairdesk/repair-service/internal/seed"
)

func (a *app) seedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture users, equipment and tickets into an empty database",
		Long: `Seed creates the fixture accounts, equipment and sample tickets when the
database has no users yet. Without --file the built-in fixture is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixture, err := seed.Load(file)
			if err != nil {
				return err
			}
			seeder := seed.NewSeeder(a.backend.Users, a.backend.Equipment, a.backend.Tickets, a.cfg.Auth.BcryptCost, a.logger)
			applied, err := seeder.Seed(cmd.Context(), fixture)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintln(cmd.OutOrStdout(), "users already exist; nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d equipment, %d tickets\n",
				len(fixture.Users), len(fixture.Equipment), len(fixture.Tickets))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixture file")
	return cmd
}
