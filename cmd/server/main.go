package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/bootstrap"
	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/pkg/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	flush, err := logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		zap.L().Error("server stopped", zap.Error(err))
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	// Set SKIP_ASSERTIONS=true to start on a database with known violations.
	if os.Getenv("SKIP_ASSERTIONS") != "true" {
		if _, err := bootstrap.RunAssertions(ctx, app.Conn, true); err != nil {
			return err
		}
	} else {
		zap.L().Warn("skipping startup assertions", zap.String("env", "SKIP_ASSERTIONS"))
	}

	return app.Serve(ctx)
}
