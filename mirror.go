// Package mirror copies a remote document database into a relational store
// and a local asset tree. New wires the runtime from a Config; Sync runs one
// reconciliation pass.
package mirror

import (
	"context"
	"strings"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-mirror/internal/assets"
	synccmd "github.com/goliatone/go-mirror/internal/commands/sync"
	"github.com/goliatone/go-mirror/internal/di"
	"github.com/goliatone/go-mirror/internal/reconcile"
	"github.com/goliatone/go-mirror/pkg/interfaces"
	"github.com/uptrace/bun"
)

// Result summarises one pass.
type Result = reconcile.Result

// DocumentError records a per-document failure inside a Result.
type DocumentError = reconcile.DocumentError

// DocumentSource lists remote documents and their content trees.
type DocumentSource = reconcile.DocumentSource

// ByteFetcher downloads asset bytes.
type ByteFetcher = assets.Fetcher

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar = synccmd.CronRegistrar

// Option overrides a collaborator built from Config.
type Option = di.Option

func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return di.WithLoggerProvider(provider)
}

// WithBunDB supplies an open database instead of Config.Storage. It is not
// closed by Module.Close.
func WithBunDB(db *bun.DB) Option { return di.WithBunDB(db) }

func WithStore(store interfaces.Store) Option { return di.WithStore(store) }

func WithSource(source DocumentSource) Option { return di.WithSource(source) }

func WithFetcher(fetcher ByteFetcher) Option { return di.WithFetcher(fetcher) }

func WithClock(now func() time.Time) Option { return di.WithClock(now) }

// WithCommandRegistry registers the sync command handler with reg.
func WithCommandRegistry(reg synccmd.CommandRegistry) Option {
	return di.WithCommandRegistry(reg)
}

// SyncOptions tune a single Sync call.
type SyncOptions struct {
	DryRun  bool
	Timeout time.Duration
}

// Module is the top level mirror runtime.
type Module struct {
	container *di.Container
}

// New validates cfg and wires the runtime.
func New(cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying container for advanced integrations.
func (m *Module) Container() *di.Container { return m.container }

// Store returns the relational store the module writes to.
func (m *Module) Store() interfaces.Store { return m.container.Store() }

// Sync runs one pass through the sync command handler. The result is returned
// even when the pass aborts, holding whatever was processed before the error.
func (m *Module) Sync(ctx context.Context, opts SyncOptions) (*Result, error) {
	var result *Result
	err := m.container.SyncHandlers().Run.Execute(ctx, synccmd.RunSyncCommand{
		DryRun:  opts.DryRun,
		Timeout: opts.Timeout,
		ResultCallback: func(r *reconcile.Result) {
			result = r
		},
	})
	return result, err
}

// RegisterCron schedules passes with reg using a cron expression such as
// "@every 15m". An empty expression falls back to Config.Sync.CronExpression;
// when both are empty nothing is registered.
func (m *Module) RegisterCron(reg CronRegistrar, expression string, opts SyncOptions) error {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		expression = strings.TrimSpace(m.container.Config.Sync.CronExpression)
	}
	if expression == "" {
		return nil
	}
	return synccmd.RegisterSyncCron(reg, m.container.SyncHandlers().Run, command.HandlerConfig{
		Expression: expression,
	}, synccmd.RunSyncCommand{DryRun: opts.DryRun, Timeout: opts.Timeout})
}

// Close releases resources the module opened.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
