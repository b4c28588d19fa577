package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nexuscrm/salescrm/internal/bootstrap"
)

func (c *cli) migrateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing CRM tables and indexes, then check data integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				// Build has already migrated; report what is there.
				counts, err := app.Services.Schema.TableCounts(ctx)
				if err != nil {
					return err
				}
				tables := make([]string, 0, len(counts))
				for t := range counts {
					tables = append(tables, t)
				}
				sort.Strings(tables)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Schema is up to date (%s)\n", app.Conn.Dialect())
				for _, t := range tables {
					fmt.Fprintf(out, "  %-14s %d rows\n", t, counts[t])
				}

				result, err := bootstrap.RunAssertions(ctx, app.Conn, strict)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Assertions: %d violation(s), %d error(s)\n", len(result.Violations), result.Errors())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when an assertion reports an error")
	return cmd
}

func (c *cli) wipeCmd() *cobra.Command {
	var yes, drop bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every CRM row (or drop the tables with --drop)",
		Long: `Delete every row of the CRM tables, children first. Tables and indexes are
kept unless --drop is given. Blobs in document storage are not touched.

Examples:
  crmctl wipe --yes
  crmctl wipe --drop --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe without --yes")
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				if drop {
					if err := app.Services.Schema.DropAll(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "All CRM tables dropped")
					return nil
				}
				if err := app.Services.Schema.Wipe(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All CRM rows deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the wipe")
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the tables instead of deleting rows")
	return cmd
}
