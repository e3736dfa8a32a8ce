package synccmd

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-mirror/internal/commands"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract for command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// HandlerSet groups the handlers built by RegisterSyncCommands.
type HandlerSet struct {
	Run *RunSyncHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	runHandlerOpts []commands.HandlerOption[RunSyncCommand]
}

// WithRunHandlerOptions forwards options to the RunSyncHandler constructor.
func WithRunHandlerOptions(opts ...commands.HandlerOption[RunSyncCommand]) Option {
	return func(cfg *options) {
		cfg.runHandlerOpts = append(cfg.runHandlerOpts, opts...)
	}
}

// RegisterSyncCommands builds the sync handlers and registers them with reg
// when it is non-nil.
func RegisterSyncCommands(reg CommandRegistry, runner Runner, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if runner == nil {
		return nil, errors.New("sync command registration: runner is nil")
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "sync")
	runHandler := NewRunSyncHandler(runner, logger, cfg.runHandlerOpts...)

	if reg != nil {
		if err := reg.RegisterCommand(runHandler); err != nil {
			return nil, err
		}
	}
	return &HandlerSet{Run: runHandler}, nil
}

// RegisterSyncCron schedules handler with cfg. Each tick runs msg with a
// background context.
func RegisterSyncCron(reg CronRegistrar, handler *RunSyncHandler, cfg command.HandlerConfig, msg RunSyncCommand) error {
	if reg == nil || handler == nil {
		return nil
	}
	return reg(cfg, func() error {
		return handler.Execute(context.Background(), msg)
	})
}
