package di

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/executor"
	"github.com/goliatone/go-statement-cache/mapping"
)

// EnvPrefix prefixes environment variables overriding settings, e.g. STMTCACHE_DATABASE_DSN.
const EnvPrefix = "STMTCACHE"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Settings configures a Container.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database"`
	Executor ExecutorSettings `mapstructure:"executor"`
	// Caches declares one second-level cache per mapping namespace, keyed by Spec.ID.
	Caches []cache.Spec `mapstructure:"caches"`
}

type DatabaseSettings struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type ExecutorSettings struct {
	// Type is the executor strategy: simple, reuse or batch.
	Type string `mapstructure:"type"`
	// LocalCacheScope is session or statement.
	LocalCacheScope string `mapstructure:"local_cache_scope"`
	// EnvironmentID is folded into every cache key.
	EnvironmentID string `mapstructure:"environment_id"`
	// CacheEnabled wraps executors with the second-level cache layer.
	CacheEnabled bool `mapstructure:"cache_enabled"`
	AutoCommit   bool `mapstructure:"auto_commit"`
	// Timeout bounds every statement of a session transaction.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultSettings returns settings for a private in-memory sqlite database.
func DefaultSettings() Settings {
	return Settings{
		Database: DatabaseSettings{
			Driver:       DriverSQLite,
			DSN:          "file::memory:?cache=shared",
			MaxOpenConns: 1,
		},
		Executor: ExecutorSettings{
			Type:            string(executor.KindSimple),
			LocalCacheScope: string(mapping.ScopeSession),
			CacheEnabled:    true,
		},
	}
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Database),
		validation.Field(&s.Executor),
		validation.Field(&s.Caches),
	)
}

func (d DatabaseSettings) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
	)
}

func (e ExecutorSettings) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required,
			validation.In(string(executor.KindSimple), string(executor.KindReuse), string(executor.KindBatch))),
		validation.Field(&e.LocalCacheScope, validation.Required,
			validation.In(string(mapping.ScopeSession), string(mapping.ScopeStatement))),
		validation.Field(&e.Timeout, validation.Min(time.Duration(0))),
	)
}

// LoadSettings reads settings from path (yaml, toml or json) on top of DefaultSettings.
// Environment variables prefixed with EnvPrefix override file values. An empty path loads
// defaults and environment only.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSettings()
	v.SetDefault("database.driver", defaults.Database.Driver)
	v.SetDefault("database.dsn", defaults.Database.DSN)
	v.SetDefault("database.max_open_conns", defaults.Database.MaxOpenConns)
	v.SetDefault("executor.type", defaults.Executor.Type)
	v.SetDefault("executor.local_cache_scope", defaults.Executor.LocalCacheScope)
	v.SetDefault("executor.environment_id", defaults.Executor.EnvironmentID)
	v.SetDefault("executor.cache_enabled", defaults.Executor.CacheEnabled)
	v.SetDefault("executor.auto_commit", defaults.Executor.AutoCommit)
	v.SetDefault("executor.timeout", defaults.Executor.Timeout)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, errors.Wrapf(err, "read settings %s", path)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, errors.Wrap(err, "decode settings")
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, errors.Wrap(err, "invalid settings")
	}
	return settings, nil
}
