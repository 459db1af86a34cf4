// Package assemble produces the intermediate documents handed to the renderer.
package assemble

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/graph"
)

// Fragments holds the shared header and footer text wrapped around every
// document. Exactly one pair exists per build configuration.
type Fragments struct {
	Header string
	Footer string
}

// LoadFragments reads the fragment pair from disk.
func LoadFragments(headerPath, footerPath string) (Fragments, error) {
	header, err := os.ReadFile(headerPath)
	if err != nil {
		return Fragments{}, fmt.Errorf("read header fragment: %w", err)
	}
	footer, err := os.ReadFile(footerPath)
	if err != nil {
		return Fragments{}, fmt.Errorf("read footer fragment: %w", err)
	}
	return Fragments{Header: string(header), Footer: string(footer)}, nil
}

// Document concatenates header, body, and footer byte-for-byte: header text,
// one blank line, body text, one blank line, footer text, trailing newline.
// No escaping and no content-aware merging.
func Document(f Fragments, body string) string {
	return f.Header + "\n\n" + body + "\n\n" + f.Footer + "\n"
}

// Listing synthesizes the body of a listing page: a heading naming the
// directory followed by one link entry per enumerated sibling output, in the
// order the entries were derived (scanner order).
func Listing(dir string, entries []graph.Entry) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(listingTitle(dir))
	b.WriteString("\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n- [%s](%s)", e.Name, e.Target)
	}
	if len(entries) > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

var titleCaser = cases.Title(language.English)

// listingTitle derives a human heading from a directory path: the last path
// element, dashes and underscores spaced out, title-cased.
func listingTitle(dir string) string {
	name := dir
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		name = dir[i+1:]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return titleCaser.String(name)
}
