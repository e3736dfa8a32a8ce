package synccmd

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mirror/internal/commands"
	"github.com/goliatone/go-mirror/internal/reconcile"
)

type stubRunner struct {
	calls    []reconcile.Options
	deadline []bool
	result   *reconcile.Result
	err      error
}

func (s *stubRunner) Run(ctx context.Context, opts reconcile.Options) (*reconcile.Result, error) {
	s.calls = append(s.calls, opts)
	_, ok := ctx.Deadline()
	s.deadline = append(s.deadline, ok)
	return s.result, s.err
}

func TestRunSyncHandlerPassesDryRun(t *testing.T) {
	runner := &stubRunner{result: &reconcile.Result{DryRun: true, Created: 2}}
	handler := NewRunSyncHandler(runner, nil)

	var received *reconcile.Result
	err := handler.Execute(context.Background(), RunSyncCommand{
		DryRun: true,
		ResultCallback: func(result *reconcile.Result) {
			received = result
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(runner.calls) != 1 || !runner.calls[0].DryRun {
		t.Fatalf("expected one dry-run pass, got %#v", runner.calls)
	}
	if received == nil || received.Created != 2 {
		t.Fatalf("expected result delivered to callback, got %#v", received)
	}
}

func TestRunSyncHandlerAppliesMessageTimeout(t *testing.T) {
	runner := &stubRunner{result: &reconcile.Result{}}
	handler := NewRunSyncHandler(runner, nil, commands.WithTimeout[RunSyncCommand](0))

	if err := handler.Execute(context.Background(), RunSyncCommand{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := handler.Execute(context.Background(), RunSyncCommand{Timeout: time.Minute}); err != nil {
		t.Fatalf("execute with timeout: %v", err)
	}
	if len(runner.deadline) != 2 || runner.deadline[0] || !runner.deadline[1] {
		t.Fatalf("expected deadline only on the second run, got %#v", runner.deadline)
	}
}

func TestRunSyncHandlerRejectsNegativeTimeout(t *testing.T) {
	runner := &stubRunner{result: &reconcile.Result{}}
	handler := NewRunSyncHandler(runner, nil)

	err := handler.Execute(context.Background(), RunSyncCommand{Timeout: -time.Second})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected runner not invoked, got %d calls", len(runner.calls))
	}
}

func TestRunSyncHandlerSurfacesAbortWithPartialResult(t *testing.T) {
	partial := &reconcile.Result{Deleted: 1}
	runner := &stubRunner{result: partial, err: errors.New("source unavailable")}
	handler := NewRunSyncHandler(runner, nil)

	var received *reconcile.Result
	err := handler.Execute(context.Background(), RunSyncCommand{
		ResultCallback: func(result *reconcile.Result) { received = result },
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if received != partial {
		t.Fatalf("expected partial result delivered, got %#v", received)
	}
}

func TestRunSyncHandlerRequiresRunner(t *testing.T) {
	handler := NewRunSyncHandler(nil, nil)
	err := handler.Execute(context.Background(), RunSyncCommand{})
	if !errors.Is(err, ErrEngineRequired) {
		t.Fatalf("expected ErrEngineRequired, got %v", err)
	}
}
