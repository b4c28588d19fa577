package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscrm/salescrm/internal/bootstrap"
)

func (c *cli) seedCmd() *cobra.Command {
	var file string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and CRM records from a YAML fixture",
		Long: `Load users and CRM records from a YAML fixture. Without --file the built-in
demo data is loaded. Users are matched by email and reused; every other
record is created, so seeding twice duplicates them.

Examples:
  crmctl seed
  crmctl seed --file testdata/seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := bootstrap.LoadSeed(file)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				res, err := bootstrap.Seed(ctx, app.Services, data)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				// Let index updates for the new records finish before exit.
				app.Services.Search.Wait()

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				fmt.Fprintf(out, "Seeded %d users, %d companies, %d contacts, %d deals, %d activities, %d tasks\n",
					res.Users, res.Companies, res.Contacts, res.Deals, res.Activities, res.Tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (default: built-in demo data)")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print the counts as JSON")
	return cmd
}
