// Package graph builds the artifact dependency graph for a build invocation.
//
// The graph is bipartite between inputs and outputs: every source document
// yields an assembled intermediate (header + body + footer) and a rendered
// final; every listing directory yields an assembled manifest that depends on
// the rendered outputs of the documents directly under it, plus its own
// rendered final. Outputs never depend on other outputs except through that
// listing edge, so the graph is acyclic by construction.
package graph

import (
	"fmt"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/scan"
)

// Kind identifies the role of an artifact in the pipeline.
type Kind string

const (
	KindAssembled        Kind = "assembled"
	KindRendered         Kind = "rendered"
	KindListingAssembled Kind = "listing_assembled"
	KindListingRendered  Kind = "listing_rendered"
)

// Entry is one link row in a synthesized listing page.
type Entry struct {
	Name   string // output filename, used as the link text
	Target string // link target relative to the listing page
}

// Artifact is a single tracked output with its direct dependencies.
type Artifact struct {
	OutputPath string   // where the artifact is written
	Kind       Kind
	DependsOn  []string // dependency file paths: sources, fragments, or other artifacts' outputs

	Source     string  // source document path (KindAssembled only)
	ListingDir string  // listing directory, relative to the source root (listing kinds only)
	Entries    []Entry // link entries (KindListingAssembled only)
}

// IsIntermediate reports whether the artifact is produced by the assembler
// rather than the renderer.
func (a *Artifact) IsIntermediate() bool {
	return a.Kind == KindAssembled || a.Kind == KindListingAssembled
}

// Graph holds all artifacts of one build invocation in topological order.
type Graph struct {
	byOutput map[string]*Artifact
	order    []*Artifact
	levels   [][]*Artifact
}

// Artifacts returns all artifacts in topological order: every artifact
// appears after everything it depends on.
func (g *Graph) Artifacts() []*Artifact { return g.order }

// Levels returns artifacts grouped into dependency levels: artifacts within
// one level have no dependency relationship and may build concurrently.
func (g *Graph) Levels() [][]*Artifact { return g.levels }

// Lookup returns the artifact producing the given output path, if any.
func (g *Graph) Lookup(outputPath string) (*Artifact, bool) {
	a, ok := g.byOutput[outputPath]
	return a, ok
}

// Len returns the number of artifacts.
func (g *Graph) Len() int { return len(g.order) }

// Builder derives the dependency graph from scanned documents and configured
// listing directories.
type Builder struct {
	OutputRoot string // distinct output root; never overlaps the source root
	OutputExt  string // extension of rendered artifacts, with dot
	HeaderPath string // header fragment file
	FooterPath string // footer fragment file
}

// Build constructs the graph. It fails with a naming-collision error if two
// artifacts resolve to the same output path; this runs before any execution.
func (b *Builder) Build(docs []scan.Document, listingDirs []string) (*Graph, error) {
	g := &Graph{byOutput: make(map[string]*Artifact)}

	add := func(a *Artifact, origin string) error {
		if prev, exists := g.byOutput[a.OutputPath]; exists {
			return sberrors.New(sberrors.CategoryGraph, sberrors.SeverityFatal,
				fmt.Sprintf("output path collision: %s", a.OutputPath)).
				WithContext("first", originOf(prev)).
				WithContext("second", origin)
		}
		g.byOutput[a.OutputPath] = a
		return nil
	}

	// Index documents by directory for listing synthesis.
	byDir := make(map[string][]scan.Document)

	for _, doc := range docs {
		rendered := b.renderedPath(doc.RelPath)
		assembled := b.assembledPath(doc.RelPath)

		asm := &Artifact{
			OutputPath: assembled,
			Kind:       KindAssembled,
			DependsOn:  []string{b.HeaderPath, doc.Path, b.FooterPath},
			Source:     doc.Path,
		}
		if err := add(asm, doc.RelPath); err != nil {
			return nil, err
		}

		ren := &Artifact{
			OutputPath: rendered,
			Kind:       KindRendered,
			DependsOn:  []string{assembled},
		}
		if err := add(ren, doc.RelPath); err != nil {
			return nil, err
		}

		byDir[doc.Dir] = append(byDir[doc.Dir], doc)
	}

	for _, dir := range listingDirs {
		rendered := b.listingRenderedPath(dir)
		assembled := b.assembledPath(listingSourceRel(dir))

		deps := []string{b.HeaderPath, b.FooterPath}
		var entries []Entry
		// Documents are already in scanner order, so entries inherit it.
		for _, doc := range byDir[dir] {
			out := b.renderedPath(doc.RelPath)
			deps = append(deps, out)
			entries = append(entries, Entry{
				Name:   outputFileName(doc, b.OutputExt),
				Target: outputFileName(doc, b.OutputExt),
			})
		}

		asm := &Artifact{
			OutputPath: assembled,
			Kind:       KindListingAssembled,
			DependsOn:  deps,
			ListingDir: dir,
			Entries:    entries,
		}
		if err := add(asm, "listing "+dir); err != nil {
			return nil, err
		}

		ren := &Artifact{
			OutputPath: rendered,
			Kind:       KindListingRendered,
			DependsOn:  []string{assembled},
			ListingDir: dir,
		}
		if err := add(ren, "listing "+dir); err != nil {
			return nil, err
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

func originOf(a *Artifact) string {
	if a.ListingDir != "" {
		return "listing " + a.ListingDir
	}
	return a.Source
}
