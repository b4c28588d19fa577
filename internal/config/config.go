// Package config resolves runtime configuration from .env, the process
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nexuscrm/salescrm/pkg/query"
)

// Config is the fully resolved service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	GinMode         string        `mapstructure:"gin_mode"`
}

// DatabaseConfig selects the SQL backend. URL wins over the discrete fields.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Dialect returns the query dialect for Driver.
func (d DatabaseConfig) Dialect() (query.Dialect, error) {
	return query.ParseDialect(d.Driver)
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	Issuer            string        `mapstructure:"issuer"`
	AllowRegistration bool          `mapstructure:"allow_registration"`
}

// StorageConfig configures document blobs. With no Endpoint, blobs are
// written under LocalDir and served by the API itself.
type StorageConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	LocalDir  string        `mapstructure:"local_dir"`
	PublicURL string        `mapstructure:"public_url"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
	MaxUpload int64         `mapstructure:"max_upload_bytes"`
}

type SearchConfig struct {
	MeiliURL string `mapstructure:"meili_url"`
	MeiliKey string `mapstructure:"meili_key"`
	Index    string `mapstructure:"index"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

// LLMConfig selects the email drafting provider: "openai", "gemini" or empty
// to disable drafting.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ReminderSpec string `mapstructure:"reminder_spec"`
	ReindexSpec  string `mapstructure:"reindex_spec"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type ReportsConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.gin_mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "salescrm")
	v.SetDefault("database.path", "salescrm.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.allow_registration", true)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "crm-documents")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.public_url", "")
	v.SetDefault("storage.url_expiry", 15*time.Minute)
	v.SetDefault("storage.max_upload_bytes", int64(25<<20))

	v.SetDefault("search.meili_url", "")
	v.SetDefault("search.meili_key", "")
	v.SetDefault("search.index", "crm_records")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "crm:changes")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 800)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_spec", "*/15 * * * *")
	v.SetDefault("scheduler.reindex_spec", "0 3 * * *")

	v.SetDefault("dashboard.cache_ttl", 30*time.Second)

	v.SetDefault("reports.max_rows", 1000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// legacyEnv maps config keys onto the short variable names used in .env files.
var legacyEnv = map[string][]string{
	"server.port":      {"PORT"},
	"database.url":     {"DATABASE_URL"},
	"database.driver":  {"DB_DRIVER"},
	"auth.jwt_secret":  {"JWT_SECRET"},
	"search.meili_url": {"MEILI_URL"},
	"search.meili_key": {"MEILI_KEY", "MEILI_MASTER_KEY"},
	"redis.url":        {"REDIS_URL"},
	"llm.api_key":      {"OPENAI_API_KEY", "GEMINI_API_KEY"},
	"log.level":        {"LOG_LEVEL"},
}

// Load reads .env (if present), then the optional YAML file at path, then
// environment variables such as DATABASE_DRIVER or STORAGE_ENDPOINT.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range legacyEnv {
		names := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envs...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Database.Dialect(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) must be at least 16 characters"))
	}
	switch c.LLM.Provider {
	case "", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of openai, gemini", c.LLM.Provider))
	}
	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required when llm.provider is set"))
	}
	if c.Storage.Endpoint != "" && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		errs = append(errs, errors.New("storage.access_key and storage.secret_key are required with storage.endpoint"))
	}
	if c.Reports.MaxRows < 0 || c.Reports.MaxRows > 10000 {
		errs = append(errs, fmt.Errorf("reports.max_rows %d out of range 0-10000", c.Reports.MaxRows))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	return errors.Join(errs...)
}
