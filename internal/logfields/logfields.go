package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyArtifact   = "artifact"
	KeyKind       = "kind"
	KeySource     = "source"
	KeyPath       = "path"
	KeyListing    = "listing"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Artifact(p string) slog.Attr      { return slog.String(KeyArtifact, p) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func Source(p string) slog.Attr        { return slog.String(KeySource, p) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Listing(dir string) slog.Attr     { return slog.String(KeyListing, dir) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
