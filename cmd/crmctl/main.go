// Command crmctl administers the CRM backend: schema, fixtures, the search
// index and the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexuscrm/salescrm/internal/bootstrap"
	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/pkg/logging"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds what the persistent pre-run resolves for every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
	flush      func()
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "crmctl",
		Short:         "crmctl - administer the sales CRM backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			flush, err := logging.Init(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			c.cfg, c.flush = cfg, flush
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.flush != nil {
				c.flush()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("CONFIG_FILE"), "optional YAML config file")

	rootCmd.AddCommand(c.migrateCmd())
	rootCmd.AddCommand(c.seedCmd())
	rootCmd.AddCommand(c.wipeCmd())
	rootCmd.AddCommand(c.reindexCmd())
	rootCmd.AddCommand(c.serveCmd())
	return rootCmd
}

// withApp builds the backend, runs fn and releases everything.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := bootstrap.Build(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())
	return fn(ctx, app)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
