// Package database opens the SQL connection pool for the configured dialect.
package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/pkg/query"
)

// Connection pairs a pool with the dialect its SQL must be written in.
// sql.DB is already safe for concurrent use and manages its own pool.
type Connection struct {
	db      *sql.DB
	dialect query.Dialect
}

var tlsOnce sync.Once

// New wraps an existing pool. Tests pass a sqlmock DB here.
func New(db *sql.DB, dialect query.Dialect) *Connection {
	return &Connection{db: db, dialect: dialect}
}

// Open connects to the configured database and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Connection, error) {
	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}

	driver, dsn := dsnFor(dialect, cfg)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if dialect == query.DialectSQLite {
		// single writer
		maxOpen = 1
	}
	// Idle must match open so connections are not churned under load.
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	zap.L().Info("database connected", zap.String("dialect", string(dialect)), zap.Int("max_open_conns", maxOpen))
	return &Connection{db: db, dialect: dialect}, nil
}

func dsnFor(dialect query.Dialect, cfg config.DatabaseConfig) (driver, dsn string) {
	switch dialect {
	case query.DialectMySQL:
		if cfg.URL != "" {
			return "mysql", cfg.URL
		}
		return "mysql", mysqlDSN(cfg)
	case query.DialectSQLite:
		return "sqlite", SQLiteDSN(firstNonEmpty(cfg.URL, cfg.Path))
	default:
		if cfg.URL != "" {
			return "pgx", cfg.URL
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			Path:   "/" + cfg.Name,
		}
		return "pgx", u.String()
	}
}

// SQLiteDSN adds the connection parameters the repositories rely on: times
// written in a sortable layout and foreign keys enforced.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "_time_format=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_time_format=sqlite&_pragma=foreign_keys(1)"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// mysqlDSN builds a TiDB/MySQL DSN. Remote hosts (TiDB Cloud) get a
// registered TLS config with the host as ServerName.
func mysqlDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 4000
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.ClientFoundRows = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}

	if cfg.Host != "" && cfg.Host != "127.0.0.1" && cfg.Host != "localhost" {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Host,
			}); err != nil {
				zap.L().Error("failed to register TLS config", zap.Error(err))
			}
		})
		mc.TLSConfig = "tidb"
	}
	return mc.FormatDSN()
}

// Dialect returns the SQL dialect of the connection
func (c *Connection) Dialect() query.Dialect {
	return c.dialect
}

// DB returns the underlying *sql.DB
func (c *Connection) DB() *sql.DB {
	return c.db
}

// QueryContext runs a query built with '?' placeholders.
func (c *Connection) QueryContext(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.dialect.Rebind(q), args...)
}

// QueryRowContext runs a single-row query built with '?' placeholders.
func (c *Connection) QueryRowContext(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, c.dialect.Rebind(q), args...)
}

// ExecContext runs a statement built with '?' placeholders.
func (c *Connection) ExecContext(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.dialect.Rebind(q), args...)
}

// BeginTx starts a new transaction
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// PingContext checks the pool is reachable.
func (c *Connection) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}
