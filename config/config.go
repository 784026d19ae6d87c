package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/toitware/broker"
	"github.com/toitware/broker/database"
	brokerhttp "github.com/toitware/broker/http"
)

// Backend types.
const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for the broker.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Gateway  GatewayConfig         `mapstructure:"gateway"`
	Backend  BackendConfig         `mapstructure:"backend"`
	Supabase SupabaseConfig        `mapstructure:"supabase"`
	Local    LocalConfig           `mapstructure:"local"`
	CORS     brokerhttp.CORSConfig `mapstructure:"cors"`
	Metrics  MetricsConfig         `mapstructure:"metrics"`
	Log      LogConfig             `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path         string        `mapstructure:"path" validate:"required,startswith=/"`
	MaxBodySize  int64         `mapstructure:"max_body_size" validate:"min=0"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	Env          string        `mapstructure:"env" validate:"omitempty,oneof=dev prod production"`
}

// GatewayConfig holds command routing configuration.
type GatewayConfig struct {
	// Schema qualifies every procedure name.
	Schema string `mapstructure:"schema" validate:"required"`
}

// BackendConfig selects the backend commands run against.
type BackendConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=supabase local"`
}

// SupabaseConfig holds the Supabase project settings.
type SupabaseConfig struct {
	URL     string `mapstructure:"url" validate:"omitempty,url"`
	AnonKey string `mapstructure:"anon_key"`
}

// LocalConfig holds the local backend settings.
type LocalConfig struct {
	StoragePath   string          `mapstructure:"storage_path" validate:"required"`
	PublicURL     string          `mapstructure:"public_url" validate:"omitempty,url"`
	PublicBuckets []string        `mapstructure:"public_buckets"`
	Database      database.Config `mapstructure:"database"`
	AutoMigrate   bool            `mapstructure:"auto_migrate"`
	// ProceduresDSN is the PostgreSQL database holding the procedures.
	// Empty disables procedure commands.
	ProceduresDSN string `mapstructure:"procedures_dsn"`
}

// MetricsConfig holds the Prometheus listener configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProd reports whether production logging is selected.
func (c ServerConfig) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":          "server.port",
	"path":          "server.path",
	"env":           "server.env",
	"backend":       "backend.type",
	"schema":        "gateway.schema",
	"supabase-url":  "supabase.url",
	"anon-key":      "supabase.anon_key",
	"storage-path":  "local.storage_path",
	"public-url":    "local.public_url",
	"db-type":       "local.database.type",
	"db-dsn":        "local.database.dsn",
	"procedure-dsn": "local.procedures_dsn",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so that environment variables are picked up on unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.path", "/")
	v.SetDefault("server.max_body_size", 0) // 0 means no limit
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.env", "dev")

	v.SetDefault("gateway.schema", broker.DefaultSchema)

	v.SetDefault("backend.type", BackendLocal)

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anon_key", "")

	v.SetDefault("local.storage_path", "./data")
	v.SetDefault("local.public_url", "")
	v.SetDefault("local.public_buckets", []string{})
	v.SetDefault("local.database.type", "sqlite")
	v.SetDefault("local.database.dsn", "broker.db")
	v.SetDefault("local.database.table", database.DefaultTable)
	v.SetDefault("local.auto_migrate", true)
	v.SetDefault("local.procedures_dsn", "")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"POST", "GET", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "apikey", "x-client-info"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Range", "Accept-Ranges"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
}

// bindAliases lets the variables a Supabase edge function receives configure
// the supabase backend.
func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("supabase.url", "BROKER_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.anon_key", "BROKER_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("BROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindAliases(v)

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.validateBackend(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validateBackend checks the settings the selected backend needs.
func (c *Config) validateBackend() error {
	switch c.Backend.Type {
	case BackendSupabase:
		if c.Supabase.URL == "" {
			return errors.New("supabase.url is required for the supabase backend")
		}
	case BackendLocal:
		if err := broker.ValidateTableName(c.Local.Database.Table); err != nil {
			return fmt.Errorf("local.database.table: %w", err)
		}
	}
	return nil
}
