// Package executor runs the dependency graph incrementally: stale artifacts
// are produced in dependency order, fresh ones are skipped. Independent
// artifacts within one dependency level build concurrently on a bounded
// worker pool; the filesystem is the single source of truth for staleness.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/assemble"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/graph"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
)

// Executor produces stale artifacts from a dependency graph.
type Executor struct {
	fragments assemble.Fragments
	renderer  render.Renderer
	policy    config.FailurePolicy
	workers   int
	deadline  time.Duration
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// New creates an executor. workers <= 0 selects GOMAXPROCS.
func New(fragments assemble.Fragments, renderer render.Renderer, policy config.FailurePolicy, workers int) *Executor {
	return &Executor{
		fragments: fragments,
		renderer:  renderer,
		policy:    policy,
		workers:   workers,
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
	}
}

// WithDeadline sets a soft build deadline. Once it passes, no further
// artifacts are scheduled; artifacts already in flight finish normally.
// d <= 0 disables the deadline.
func (e *Executor) WithDeadline(d time.Duration) *Executor {
	e.deadline = d
	return e
}

// WithRecorder sets a metrics recorder (fluent helper).
func (e *Executor) WithRecorder(r metrics.Recorder) *Executor {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithLogger sets a custom logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	return e
}

// artifactState tracks per-run outcomes, keyed by output path.
type artifactState int

const (
	stateSkipped artifactState = iota
	stateBuilt
	stateFailed
	stateAborted
)

// run holds the mutable state of one Execute invocation.
type run struct {
	*Executor
	state     map[string]artifactState
	report    *Report
	stopAfter time.Time // zero means no deadline
	tripped   bool      // fail-fast latch, checked between artifacts
}

// expired reports whether the build deadline has passed.
func (r *run) expired() bool {
	return !r.stopAfter.IsZero() && time.Now().After(r.stopAfter)
}

// Execute walks the graph level by level. Within a level, stale artifacts are
// produced concurrently; a level only starts after every dependency in
// earlier levels has reported built, skipped, or failed. With the best-effort
// policy a failure poisons its dependents but never its siblings; with
// fail-fast no further artifacts are scheduled after the first failure.
// The returned error is the aggregate of all artifact failures, if any.
func (e *Executor) Execute(ctx context.Context, g *graph.Graph) (*Report, error) {
	start := time.Now()
	r := &run{
		Executor: e,
		state:    make(map[string]artifactState, g.Len()),
		report: &Report{
			BuildID:   uuid.NewString(),
			StartedAt: start,
		},
	}
	if e.deadline > 0 {
		r.stopAfter = start.Add(e.deadline)
	}

	workers := e.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e.recorder.SetWorkerCount(workers)

	e.logger.Info("Starting incremental build",
		logfields.BuildID(r.report.BuildID),
		logfields.Count(g.Len()))

	for _, level := range g.Levels() {
		r.runLevel(ctx, level, workers)
	}

	r.report.Duration = time.Since(start)
	r.report.Outcome = r.outcome(ctx)
	e.recorder.ObserveBuildDuration(r.report.Duration)
	e.recorder.IncBuildOutcome(string(r.report.Outcome))

	e.logger.Info("Build finished",
		logfields.BuildID(r.report.BuildID),
		logfields.Outcome(string(r.report.Outcome)),
		slog.Int("built", len(r.report.Built)),
		slog.Int("skipped", len(r.report.Skipped)),
		slog.Int("failed", len(r.report.Failed)),
		logfields.DurationMS(float64(r.report.Duration.Milliseconds())))

	return r.report, r.report.Err()
}

// decision is the pre-computed plan for one artifact within a level.
type decision struct {
	artifact *graph.Artifact
	stale    bool
	err      error // staleness or dependency error, decided before production
	aborted  bool
}

func (r *run) runLevel(ctx context.Context, level []*graph.Artifact, workers int) {
	decisions := make([]decision, 0, len(level))
	for _, a := range level {
		d := decision{artifact: a}
		switch {
		case r.tripped || ctx.Err() != nil || r.expired():
			d.aborted = true
		default:
			if dep := r.failedDependency(a); dep != "" {
				d.err = fmt.Errorf("dependency failed: %s", dep)
			} else {
				d.stale, d.err = r.isStale(a)
			}
		}
		decisions = append(decisions, d)
	}

	// All staleness decisions for this level are final; production touches
	// disjoint output paths (enforced at graph build), so it can run in
	// parallel.
	results := runOrdered(decisions, workers, func(d decision) error {
		if d.aborted || d.err != nil || !d.stale {
			return nil
		}
		return r.produce(ctx, d.artifact)
	})

	for i, d := range decisions {
		a := d.artifact
		switch {
		case d.aborted:
			r.state[a.OutputPath] = stateAborted
			r.report.Aborted = append(r.report.Aborted, a.OutputPath)
		case d.err != nil:
			r.fail(a, d.err)
		case !d.stale:
			r.state[a.OutputPath] = stateSkipped
			r.report.Skipped = append(r.report.Skipped, a.OutputPath)
			r.recorder.IncArtifactResult(string(a.Kind), metrics.ResultSkipped)
			r.logger.Debug("Artifact up to date", logfields.Artifact(a.OutputPath))
		case results[i] != nil:
			r.fail(a, results[i])
		default:
			r.state[a.OutputPath] = stateBuilt
			r.report.Built = append(r.report.Built, a.OutputPath)
			r.recorder.IncArtifactResult(string(a.Kind), metrics.ResultBuilt)
			r.logger.Debug("Artifact built",
				logfields.Artifact(a.OutputPath),
				logfields.Kind(string(a.Kind)))
		}
	}
}

// failedDependency returns the first dependency of a that failed or was
// aborted this run, or "".
func (r *run) failedDependency(a *graph.Artifact) string {
	for _, dep := range a.DependsOn {
		if st, ok := r.state[dep]; ok && (st == stateFailed || st == stateAborted) {
			return dep
		}
	}
	return ""
}

func (r *run) fail(a *graph.Artifact, cause error) {
	r.state[a.OutputPath] = stateFailed
	r.report.Failed = append(r.report.Failed, sberrors.ArtifactFailure{Path: a.OutputPath, Cause: cause})
	r.recorder.IncArtifactResult(string(a.Kind), metrics.ResultFailed)
	r.logger.Error("Artifact failed",
		logfields.Artifact(a.OutputPath),
		logfields.Kind(string(a.Kind)),
		logfields.Error(cause))
	if r.policy == config.PolicyFailFast {
		r.tripped = true
	}
}

func (r *run) outcome(ctx context.Context) Outcome {
	switch {
	case len(r.report.Failed) > 0:
		return OutcomeFailed
	case len(r.report.Aborted) > 0 && (ctx.Err() != nil || r.expired()):
		return OutcomeCanceled
	default:
		return OutcomeSuccess
	}
}
