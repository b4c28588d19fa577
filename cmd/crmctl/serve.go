package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/bootstrap"
)

func (c *cli) reindexCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return c.withApp(ctx, func(ctx context.Context, app *bootstrap.App) error {
				start := time.Now()
				n, err := app.Services.Search.Reindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d records in %s\n", n, time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "give up after this long")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var port int
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with realtime and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				c.cfg.Server.Port = port
			}
			if noScheduler {
				c.cfg.Scheduler.Enabled = false
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return c.withApp(ctx, func(ctx context.Context, app *bootstrap.App) error {
				if _, err := bootstrap.RunAssertions(ctx, app.Conn, false); err != nil {
					zap.L().Warn("startup assertions failed", zap.Error(err))
				}
				return app.Serve(ctx)
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run reminders and reindexing")
	return cmd
}
