// Package di wires settings, the database, namespace caches and executors into sessions.
//
// Settings can be loaded from a file and STMTCACHE_ environment variables:
//
//	settings, err := di.LoadSettings("statement-cache.yaml")
//	container, err := di.NewContainer(settings, di.WithLogger(logger))
//	_ = container.AddStatement("authors", stmt)
//	s, err := container.OpenSession()
package di

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/cachebuilder"
	"github.com/goliatone/go-statement-cache/executor"
	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/session"
	"github.com/goliatone/go-statement-cache/transaction"
)

// Container wires the statement caching components together.
// It owns the database handle, the statement registry and the namespace caches,
// and opens sessions configured from Settings.
type Container struct {
	settings Settings
	db       *bun.DB
	ownsDB   bool
	logger   *zap.Logger
	mapper   executor.ResultMapper
	registry *mapping.Registry
	caches   map[string]cache.Cache
	builders *cachebuilder.Registry
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger handed to caches, executors and sessions.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDB uses db instead of opening one from the settings. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithResultMapper replaces the default bun result mapper.
func WithResultMapper(mapper executor.ResultMapper) Option {
	return func(c *Container) { c.mapper = mapper }
}

// WithCacheRegistry sets the registry resolving cache implementation and decorator names.
func WithCacheRegistry(r *cachebuilder.Registry) Option {
	return func(c *Container) { c.builders = r }
}

// NewContainer validates settings, opens the database and builds every namespace cache.
func NewContainer(settings Settings, opts ...Option) (*Container, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}

	c := &Container{
		settings: settings,
		logger:   zap.NewNop(),
		registry: mapping.NewRegistry(),
		caches:   make(map[string]cache.Cache, len(settings.Caches)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.db == nil {
		db, err := OpenDB(settings.Database)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}
	if c.mapper == nil {
		c.mapper = executor.NewBunResultMapper(c.db)
	}

	for _, spec := range settings.Caches {
		if _, exists := c.caches[spec.ID]; exists {
			c.Close()
			return nil, errors.Errorf("di: cache %q declared twice", spec.ID)
		}
		b := cachebuilder.FromSpec(spec).WithLogger(c.logger)
		if c.builders != nil {
			b = b.WithRegistry(c.builders)
		}
		built, err := b.Build()
		if err != nil {
			c.Close()
			return nil, errors.Wrapf(err, "build cache %s", spec.ID)
		}
		c.caches[spec.ID] = built
	}
	return c, nil
}

// NewContainerWithDefaults creates a container over a private in-memory sqlite database.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(DefaultSettings(), opts...)
}

// OpenDB opens a bun database for the configured driver.
func OpenDB(cfg DatabaseSettings) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Driver)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	} else if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}

	switch cfg.Driver {
	case DriverSQLite:
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		_ = sqldb.Close()
		return nil, errors.Errorf("di: unsupported driver %q", cfg.Driver)
	}
}

func (c *Container) DB() *bun.DB { return c.db }

func (c *Container) Settings() Settings { return c.settings }

// Registry returns the statement registry sessions resolve ids against.
func (c *Container) Registry() *mapping.Registry { return c.registry }

// Cache returns the second-level cache of namespace.
func (c *Container) Cache(namespace string) (cache.Cache, bool) {
	cc, ok := c.caches[namespace]
	return cc, ok
}

// AddStatement registers stmt under namespace, binding it to the namespace cache when one was
// declared. UseCache and FlushCacheRequired stay as set on stmt.
func (c *Container) AddStatement(namespace string, stmt *mapping.Statement) error {
	if cc, ok := c.caches[namespace]; ok {
		stmt.Cache = cc
	}
	if err := c.registry.Add(stmt); err != nil {
		return errors.Wrapf(err, "namespace %s", namespace)
	}
	return nil
}

// SessionOption adjusts a single session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	kind       executor.Kind
	autoCommit bool
	sessionID  string
}

// WithExecutorKind overrides the configured executor strategy.
func WithExecutorKind(kind executor.Kind) SessionOption {
	return func(sc *sessionConfig) { sc.kind = kind }
}

func WithAutoCommit(autoCommit bool) SessionOption {
	return func(sc *sessionConfig) { sc.autoCommit = autoCommit }
}

func WithSessionID(id string) SessionOption {
	return func(sc *sessionConfig) { sc.sessionID = id }
}

// OpenSession opens a session on a new transaction.
func (c *Container) OpenSession(opts ...SessionOption) (*session.Session, error) {
	sc := sessionConfig{
		kind:       executor.Kind(c.settings.Executor.Type),
		autoCommit: c.settings.Executor.AutoCommit,
	}
	for _, opt := range opts {
		opt(&sc)
	}

	tx := transaction.NewBunTransaction(c.db, transaction.Config{
		AutoCommit: sc.autoCommit,
		Timeout:    c.settings.Executor.Timeout,
	}, c.logger)

	exec, err := executor.New(sc.kind, tx, c.mapper,
		executor.WithLogger(c.logger),
		executor.WithLocalCacheScope(mapping.LocalCacheScope(c.settings.Executor.LocalCacheScope)),
		executor.WithEnvironmentID(c.settings.Executor.EnvironmentID),
		executor.WithSessionID(sc.sessionID),
	)
	if err != nil {
		return nil, err
	}
	if c.settings.Executor.CacheEnabled {
		exec = executor.NewCaching(exec, c.logger)
	}

	return session.New(c.registry, exec,
		session.WithAutoCommit(sc.autoCommit),
		session.WithLogger(c.logger),
	), nil
}

// ClearCaches empties every namespace cache.
func (c *Container) ClearCaches(ctx context.Context) error {
	for id, cc := range c.caches {
		if err := cc.Clear(ctx); err != nil {
			return errors.Wrapf(err, "clear cache %s", id)
		}
	}
	return nil
}

// Close closes the database when the container opened it.
func (c *Container) Close() error {
	if !c.ownsDB || c.db == nil {
		return nil
	}
	return c.db.Close()
}
