package synccmd

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-mirror/internal/reconcile"
)

const runSyncMessageType = "mirror.sync.run"

// ResultCallback receives the pass result. It is invoked synchronously, also
// when the pass was aborted, in which case the result is partial.
type ResultCallback func(*reconcile.Result)

// RunSyncCommand triggers one reconciliation pass.
type RunSyncCommand struct {
	DryRun bool `json:"dry_run,omitempty"`
	// Timeout bounds the pass on top of the handler timeout. Zero leaves the
	// handler timeout in charge.
	Timeout        time.Duration  `json:"timeout,omitempty"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (RunSyncCommand) Type() string { return runSyncMessageType }

func (m RunSyncCommand) Validate() error {
	errs := validation.Errors{}
	if m.Timeout < 0 {
		errs["timeout"] = validation.NewError("mirror.sync.run.timeout_invalid", "timeout must not be negative")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
