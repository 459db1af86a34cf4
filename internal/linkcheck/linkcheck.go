// Package linkcheck verifies that relative links inside rendered HTML resolve
// to files in the output tree.
package linkcheck

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Issue is one dangling link found in a rendered page.
type Issue struct {
	Page   string // page path relative to the output root
	Link   string // the href/src value as written
	Target string // resolved filesystem path that does not exist
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: broken link %q", i.Page, i.Link)
}

// Checker scans rendered output for broken relative links. Absolute URLs and
// fragments are out of scope; the external web is not this tool's problem.
type Checker struct {
	outputRoot string
	extension  string // rendered file extension, with dot
	logger     *slog.Logger
}

// New creates a checker for the given output root and rendered extension.
func New(outputRoot, extension string) *Checker {
	return &Checker{outputRoot: outputRoot, extension: extension, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (c *Checker) WithLogger(logger *slog.Logger) *Checker {
	c.logger = logger
	return c
}

// Check walks the output tree and returns every dangling relative link.
func (c *Checker) Check() ([]Issue, error) {
	var issues []Issue

	err := filepath.WalkDir(c.outputRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// The stage directory holds intermediates, not published pages.
			if strings.HasPrefix(entry.Name(), ".") && path != c.outputRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), c.extension) {
			return nil
		}

		pageIssues, err := c.checkPage(path)
		if err != nil {
			return err
		}
		issues = append(issues, pageIssues...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk output tree: %w", err)
	}

	if len(issues) > 0 {
		c.logger.Warn("Broken links found", logfields.Count(len(issues)))
	}
	return issues, nil
}

func (c *Checker) checkPage(path string) ([]Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	rel, err := filepath.Rel(c.outputRoot, path)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, link := range extractLinks(doc) {
		target, ok := c.resolve(path, link)
		if !ok {
			continue
		}
		if _, err := os.Stat(target); os.IsNotExist(err) {
			issues = append(issues, Issue{Page: filepath.ToSlash(rel), Link: link, Target: target})
		}
	}
	return issues, nil
}

// resolve maps a link to a filesystem path. The second return is false for
// links outside the checker's scope (absolute URLs, anchors, mailto, ...).
func (c *Checker) resolve(pagePath, link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" { // pure fragment or query
		return "", false
	}
	if strings.HasPrefix(u.Path, "/") {
		return filepath.Join(c.outputRoot, filepath.FromSlash(u.Path)), true
	}
	return filepath.Join(filepath.Dir(pagePath), filepath.FromSlash(u.Path)), true
}

// extractLinks collects href/src attribute values from anchor, image, link,
// and script nodes.
func extractLinks(doc *html.Node) []string {
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var attr string
			switch n.Data {
			case "a", "link":
				attr = "href"
			case "img", "script":
				attr = "src"
			}
			if attr != "" {
				for _, a := range n.Attr {
					if a.Key == attr && a.Val != "" {
						links = append(links, a.Val)
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}
