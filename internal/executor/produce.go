package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/assemble"
	"git.home.luguber.info/inful/sitebuilder/internal/graph"
)

// produce runs the artifact's production step: the assembler for
// intermediates, the renderer for finals.
func (r *run) produce(ctx context.Context, a *graph.Artifact) error {
	var data []byte

	switch a.Kind {
	case graph.KindAssembled:
		body, err := os.ReadFile(a.Source)
		if err != nil {
			return fmt.Errorf("read source %s: %w", a.Source, err)
		}
		data = []byte(assemble.Document(r.fragments, string(body)))

	case graph.KindListingAssembled:
		body := assemble.Listing(a.ListingDir, a.Entries)
		data = []byte(assemble.Document(r.fragments, body))

	case graph.KindRendered, graph.KindListingRendered:
		src, err := os.ReadFile(a.DependsOn[0])
		if err != nil {
			return fmt.Errorf("read intermediate %s: %w", a.DependsOn[0], err)
		}
		out, err := r.renderer.Render(ctx, src)
		if err != nil {
			return err
		}
		data = out

	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}

	return writeArtifact(a.OutputPath, data)
}

// writeArtifact creates parent directories and writes the artifact.
func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
