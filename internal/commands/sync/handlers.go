package synccmd

import (
	"context"
	"errors"

	"github.com/goliatone/go-mirror/internal/commands"
	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/reconcile"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const runSyncOperation = "sync.run"

// ErrEngineRequired is returned when a handler is built without an engine.
var ErrEngineRequired = errors.New("synccmd: reconciliation engine is required")

// Runner executes a reconciliation pass. *reconcile.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error)
}

// RunSyncHandler runs reconciliation passes through the shared command handler.
type RunSyncHandler struct {
	inner *commands.Handler[RunSyncCommand]
}

func NewRunSyncHandler(runner Runner, logger interfaces.Logger, opts ...commands.HandlerOption[RunSyncCommand]) *RunSyncHandler {
	baseLogger := logging.Ensure(logger)

	exec := func(ctx context.Context, msg RunSyncCommand) error {
		if runner == nil {
			return ErrEngineRequired
		}
		ctx, cancel := commands.WithCommandTimeout(ctx, msg.Timeout)
		defer cancel()

		result, err := runner.Run(ctx, reconcile.Options{DryRun: msg.DryRun})
		if msg.ResultCallback != nil && result != nil {
			msg.ResultCallback(result)
		}
		if err != nil {
			return err
		}
		logging.WithFields(baseLogger, map[string]any{
			"created_count": result.Created,
			"updated_count": result.Updated,
			"skipped_count": result.Skipped,
			"deleted_count": result.Deleted,
			"failed_count":  result.Failed,
			"error_count":   len(result.Errors),
			"dry_run":       result.DryRun,
			"duration_ms":   result.Duration().Milliseconds(),
		}).Info("sync.command.run.completed")
		return nil
	}

	handlerOpts := []commands.HandlerOption[RunSyncCommand]{
		commands.WithLogger[RunSyncCommand](baseLogger),
		commands.WithOperation[RunSyncCommand](runSyncOperation),
		commands.WithMessageFields(func(msg RunSyncCommand) map[string]any {
			fields := map[string]any{}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			if msg.Timeout > 0 {
				fields["timeout"] = msg.Timeout.String()
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[RunSyncCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &RunSyncHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[RunSyncCommand].
func (h *RunSyncHandler) Execute(ctx context.Context, msg RunSyncCommand) error {
	return h.inner.Execute(ctx, msg)
}
