package reconcile

import (
	"fmt"
	"time"
)

// Stage names the step of a document pass that failed.
type Stage string

const (
	StageParse   Stage = "parse"
	StageLookup  Stage = "lookup"
	StageConvert Stage = "convert"
	StageUpsert  Stage = "upsert"
	StageTags    Stage = "tags"
	StageAssets  Stage = "assets"
	StageDelete  Stage = "delete"
	StageExport  Stage = "export"
)

// DocumentError records a per-document failure. The pass continues after it.
type DocumentError struct {
	DocumentID string
	Slug       string
	Stage      Stage
	Err        error
}

func (e *DocumentError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("document %s (%s): %s: %v", e.DocumentID, e.Slug, e.Stage, e.Err)
	}
	return fmt.Sprintf("document %s: %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Result summarises one pass. In dry-run mode the counters describe what a
// real pass would have done.
type Result struct {
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	Created int
	Updated int
	Skipped int
	Deleted int
	Failed  int

	// Errors holds every per-document failure, including non-fatal ones
	// (tags, export) that did not count towards Failed.
	Errors []*DocumentError
}

// Duration is the wall time of the pass.
func (r *Result) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) record(err *DocumentError, fatal bool) {
	r.Errors = append(r.Errors, err)
	if fatal {
		r.Failed++
	}
}
