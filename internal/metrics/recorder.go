package metrics

import "time"

// ResultLabel enumerates artifact result categories for counters.
type ResultLabel string

const (
	ResultBuilt   ResultLabel = "built"
	ResultSkipped ResultLabel = "skipped"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for build and artifact metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncArtifactResult(kind string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|partial|failed|canceled
	SetWorkerCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)    {}
func (NoopRecorder) IncArtifactResult(string, ResultLabel) {}
func (NoopRecorder) IncBuildOutcome(string)                {}
func (NoopRecorder) SetWorkerCount(int)                    {}
