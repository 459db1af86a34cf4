// Package render converts assembled intermediate documents into final output.
//
// The pipeline treats the renderer as an opaque collaborator: one call per
// artifact, no retries. A failed render is reported against its artifact and
// poisons dependents, but never halts sibling artifacts.
package render

import (
	"context"
	"errors"
	"fmt"
)

// ErrRenderFailed is the sentinel wrapped by every renderer failure.
var ErrRenderFailed = errors.New("render failed")

// Renderer converts assembled text into the final output format.
type Renderer interface {
	Render(ctx context.Context, src []byte) ([]byte, error)
}

// Identity returns its input unchanged. Useful for tests and for pipelines
// whose renderer runs out-of-band.
type Identity struct{}

// Render implements Renderer.
func (Identity) Render(_ context.Context, src []byte) ([]byte, error) {
	return src, nil
}

// renderError wraps a cause with the sentinel and a short description.
func renderError(desc string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrRenderFailed, desc)
	}
	return fmt.Errorf("%w: %s: %w", ErrRenderFailed, desc, cause)
}
