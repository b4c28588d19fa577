// Package bootstrap wires configuration into running adapters and services.
// The server and the crmctl commands share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/infrastructure/cache"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/internal/infrastructure/llm"
	"github.com/nexuscrm/salescrm/internal/infrastructure/realtime"
	"github.com/nexuscrm/salescrm/internal/infrastructure/search"
	"github.com/nexuscrm/salescrm/internal/infrastructure/storage"
	"github.com/nexuscrm/salescrm/internal/interfaces/rest"
	"github.com/nexuscrm/salescrm/pkg/auth"
)

const cachePrefix = "crm:"

// App is a fully wired backend.
type App struct {
	Config   *config.Config
	Conn     *database.Connection
	Services *services.ServiceManager
	Tokens   *auth.TokenManager
	// Files is set when blobs are kept on the local filesystem.
	Files *storage.LocalStore

	closers []func()
}

// Build opens the database, migrates the schema and connects every
// configured adapter. Optional adapters that are not configured stay off:
// search falls back to SQL, the dashboard is not cached, realtime stays in
// process and email drafting answers 503.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close(context.Background())
		}
	}()

	conn, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.Conn = conn
	app.closers = append(app.closers, func() { _ = conn.Close() })

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}
	app.Tokens = tokens

	deps := services.Dependencies{Conn: conn, Tokens: tokens, Config: cfg}

	blobs, err := storage.New(ctx, cfg.Storage, cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("document storage: %w", err)
	}
	deps.Blobs = blobs
	if local, isLocal := blobs.(*storage.LocalStore); isLocal {
		app.Files = local
	}

	if cfg.Search.MeiliURL != "" {
		index := search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliKey, cfg.Search.Index)
		deps.Index = index
		app.closers = append(app.closers, index.Close)
	} else {
		zap.L().Info("search index not configured, using SQL search")
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		deps.Cache = cache.NewRedisCache(client, cachePrefix)
		deps.Relay = realtime.NewRedisBridge(client, cfg.Redis.Channel)
	} else {
		zap.L().Info("redis not configured, realtime stays in process")
	}

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("email drafting: %w", err)
	}
	if completer != nil {
		deps.Completer = completer
	} else {
		zap.L().Info("llm provider not configured, email drafting disabled")
	}

	app.Services = services.NewServiceManager(deps)
	if err := app.Services.Schema.Migrate(ctx); err != nil {
		return nil, err
	}

	ok = true
	return app, nil
}

// Router builds the HTTP API for the app.
func (a *App) Router() *gin.Engine {
	return rest.NewRouter(a.Services, rest.RouterOptions{
		Tokens:      a.Tokens,
		CORSOrigins: a.Config.Server.CORSOrigins,
		MaxUpload:   a.Config.Storage.MaxUpload,
		Files:       a.Files,
	})
}

// Close stops the services and releases connections in reverse order.
func (a *App) Close(ctx context.Context) {
	if a.Services != nil {
		a.Services.Close(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
