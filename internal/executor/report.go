package executor

import (
	"time"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// Outcome is the final classification of a build invocation.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report summarizes one executor run. Built and Skipped hold artifact output
// paths in deterministic (topological) order; Failed lists every artifact
// that was stale but could not be produced, with its cause. Aborted lists
// artifacts that were never scheduled because of fail-fast or a deadline.
type Report struct {
	BuildID   string
	StartedAt time.Time
	Duration  time.Duration

	Built   []string
	Skipped []string
	Failed  []sberrors.ArtifactFailure
	Aborted []string

	Outcome Outcome
}

// Err returns the aggregate build error, or nil when nothing failed.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &sberrors.BuildError{Failures: r.Failed}
}

// Success reports whether every stale artifact was produced.
func (r *Report) Success() bool {
	return r.Outcome == OutcomeSuccess
}
