package graph

import (
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/scan"
)

// stageDirName is the subdirectory of the output root holding assembled
// intermediates, kept out of the published tree by its leading dot.
const stageDirName = ".stage"

// swapExt replaces the extension of a slash-separated relative path.
func swapExt(rel, newExt string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + newExt
}

// renderedPath maps a source-relative path to its final output path: the
// source tree is mirrored under the output root with the extension swapped.
func (b *Builder) renderedPath(rel string) string {
	return filepath.Join(b.OutputRoot, filepath.FromSlash(swapExt(rel, b.OutputExt)))
}

// assembledPath maps a source-relative path to its staged intermediate. The
// stage tree mirrors the final tree with an ".in" suffix, so stage collisions
// occur exactly when final collisions do.
func (b *Builder) assembledPath(rel string) string {
	return filepath.Join(b.OutputRoot, stageDirName, filepath.FromSlash(swapExt(rel, b.OutputExt)+".in"))
}

// listingSourceRel is the synthetic source-relative path of a listing page.
func listingSourceRel(dir string) string {
	return path.Join(dir, "index.md")
}

// listingRenderedPath is the final path of a listing page: index.<ext> inside
// the listing directory under the output root.
func (b *Builder) listingRenderedPath(dir string) string {
	return filepath.Join(b.OutputRoot, filepath.FromSlash(dir), "index"+b.OutputExt)
}

// outputFileName is the filename of a document's rendered output.
func outputFileName(doc scan.Document, outputExt string) string {
	return doc.Name + outputExt
}
