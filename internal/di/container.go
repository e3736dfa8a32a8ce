// Package di wires the mirror runtime from a Config and optional overrides.
package di

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-mirror/internal/assets"
	synccmd "github.com/goliatone/go-mirror/internal/commands/sync"
	"github.com/goliatone/go-mirror/internal/converter"
	"github.com/goliatone/go-mirror/internal/export"
	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/logging/console"
	"github.com/goliatone/go-mirror/internal/logging/gologger"
	"github.com/goliatone/go-mirror/internal/notion"
	"github.com/goliatone/go-mirror/internal/reconcile"
	"github.com/goliatone/go-mirror/internal/runtimeconfig"
	"github.com/goliatone/go-mirror/internal/store"
	"github.com/goliatone/go-mirror/pkg/interfaces"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

const schemaTimeout = 30 * time.Second

// Container holds the wired services of one mirror runtime.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	bunDB         *bun.DB
	ownsDB        bool
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	store    interfaces.Store
	source   reconcile.DocumentSource
	fetcher  assets.Fetcher
	exporter *export.Exporter
	resolver *assets.Resolver
	conv     *converter.Converter
	engine   *reconcile.Engine
	now      func() time.Time

	commandRegistry synccmd.CommandRegistry
	syncHandlers    *synccmd.HandlerSet
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider selected from Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		if provider != nil {
			c.loggerProvider = provider
		}
	}
}

// WithBunDB supplies an open database. The container does not close it.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the tag cache built from Config.Cache.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithStore replaces the relational store entirely.
func WithStore(s interfaces.Store) Option {
	return func(c *Container) {
		c.store = s
	}
}

// WithSource replaces the remote document client.
func WithSource(source reconcile.DocumentSource) Option {
	return func(c *Container) {
		c.source = source
	}
}

// WithFetcher replaces the HTTP byte fetcher used for assets.
func WithFetcher(fetcher assets.Fetcher) Option {
	return func(c *Container) {
		c.fetcher = fetcher
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCommandRegistry registers the sync command handlers with reg.
func WithCommandRegistry(reg synccmd.CommandRegistry) Option {
	return func(c *Container) {
		c.commandRegistry = reg
	}
}

// NewContainer validates cfg and builds every service. Injected collaborators
// take precedence over the ones described by cfg.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	if err := c.configureStore(); err != nil {
		return nil, err
	}
	if err := c.configureSource(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.configurePipeline(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.configureCommands(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err != nil {
			return fmt.Errorf("di: configure go-logger provider: %w", err)
		}
		c.loggerProvider = provider
	default:
		opts := console.Options{Writer: os.Stderr}
		if level, ok := console.ParseLevel(logCfg.Level); ok {
			opts.MinLevel = &level
		}
		c.loggerProvider = console.NewProvider(opts)
	}
	return nil
}

func (c *Container) configureStore() error {
	if c.store != nil {
		return nil
	}
	logger := logging.StoreLogger(c.loggerProvider)
	if c.bunDB == nil {
		db, err := store.Open(c.Config.Storage, logger)
		if err != nil {
			return err
		}
		c.bunDB = db
		c.ownsDB = true
	}
	if c.Config.Storage.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer cancel()
		if err := store.EnsureSchema(ctx, c.bunDB); err != nil {
			c.Close()
			return fmt.Errorf("di: ensure schema: %w", err)
		}
	}

	storeOpts := []store.Option{store.WithClock(c.now)}
	if c.cacheService != nil && c.keySerializer != nil {
		storeOpts = append(storeOpts, store.WithTagCache(c.cacheService, c.keySerializer))
	} else {
		cacheOpt, err := store.CacheOption(c.Config.Cache)
		if err != nil {
			c.Close()
			return err
		}
		storeOpts = append(storeOpts, cacheOpt)
	}
	c.store = store.NewBunStore(c.bunDB, storeOpts...)
	logger.Debug("store.configured", "driver", c.Config.Storage.Driver, "cache", c.Config.Cache.Enabled)
	return nil
}

func (c *Container) configureSource() error {
	if c.source != nil {
		return nil
	}
	if err := c.Config.RequireCredentials(); err != nil {
		return err
	}
	c.source = notion.NewClient(c.Config.Source, notion.WithLogger(logging.SourceLogger(c.loggerProvider)))
	return nil
}

func (c *Container) configurePipeline() error {
	assetCfg := c.Config.Assets
	if c.fetcher == nil {
		c.fetcher = assets.NewHTTPFetcher(assets.FetcherConfig{
			FetchTimeout: assetCfg.FetchTimeout,
			ProbeTimeout: assetCfg.ProbeTimeout,
			MaxBytes:     assetCfg.MaxBytes,
		})
	}
	files, err := assets.NewFiles(assetCfg.StorageRoot)
	if err != nil {
		return fmt.Errorf("di: asset storage: %w", err)
	}
	c.resolver = assets.NewResolver(c.fetcher, files, c.store, assets.Config{
		WebBasePath:      assetCfg.WebBasePath,
		DefaultExtension: assetCfg.DefaultExtension,
		RefreshPrimary:   assetCfg.RefreshPrimary,
		RefreshBody:      assetCfg.RefreshBody,
	},
		assets.WithLogger(logging.AssetsLogger(c.loggerProvider)),
		assets.WithClock(c.now),
	)
	c.conv = converter.New(c.source, c.resolver, logging.ConverterLogger(c.loggerProvider))

	engineOpts := []reconcile.Option{
		reconcile.WithLogger(logging.SyncLogger(c.loggerProvider)),
		reconcile.WithClock(c.now),
	}
	if c.Config.Export.Enabled {
		exporter, err := export.New(c.Config.Export, logging.ExportLogger(c.loggerProvider))
		if err != nil {
			return fmt.Errorf("di: export: %w", err)
		}
		c.exporter = exporter
		engineOpts = append(engineOpts, reconcile.WithExporter(exporter))
	}
	c.engine = reconcile.New(c.source, c.store, c.conv, c.resolver, engineOpts...)
	return nil
}

func (c *Container) configureCommands() error {
	handlers, err := synccmd.RegisterSyncCommands(c.commandRegistry, c.engine, c.loggerProvider)
	if err != nil {
		return fmt.Errorf("di: register sync commands: %w", err)
	}
	c.syncHandlers = handlers
	return nil
}

// LoggerProvider returns the provider shared by every service.
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

// Store returns the relational store.
func (c *Container) Store() interfaces.Store { return c.store }

// BunDB returns the database handle, nil when a custom store was injected.
func (c *Container) BunDB() *bun.DB { return c.bunDB }

// Engine returns the reconciliation engine.
func (c *Container) Engine() *reconcile.Engine { return c.engine }

// SyncHandlers returns the sync command handlers.
func (c *Container) SyncHandlers() *synccmd.HandlerSet { return c.syncHandlers }

// Close releases the database when the container opened it.
func (c *Container) Close() error {
	if c == nil || c.bunDB == nil || !c.ownsDB {
		return nil
	}
	err := c.bunDB.Close()
	c.bunDB = nil
	return err
}
