// Package scan discovers source documents under a root directory.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Sentinel errors for scan failures.
var (
	ErrRootNotFound    = errors.New("source root not found")
	ErrRootNotReadable = errors.New("source root not readable")
	ErrFileReadFailed  = errors.New("failed to read source file")
)

// Document represents a discovered source document.
type Document struct {
	Path    string    // Absolute path to the file
	RelPath string    // Path relative to the source root, forward slashes
	Dir     string    // Directory portion of RelPath ("" at root level)
	Name    string    // File name without extension
	Ext     string    // File extension including the dot
	ModTime time.Time // Modification timestamp at scan time

	content []byte // loaded on demand
}

// LoadContent reads and caches the document body.
func (d *Document) LoadContent() ([]byte, error) {
	if d.content != nil {
		return d.content, nil
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileReadFailed, d.Path, err)
	}
	d.content = data
	return d.content, nil
}

// Scanner walks a source tree and returns matching documents.
type Scanner struct {
	root    string
	include map[string]struct{} // lowercase extensions, with dot
	exclude map[string]struct{} // exact filenames, e.g. fragment files
}

// New creates a scanner for the given root. includeExts are file extensions
// (with dot) to accept; excludeNames are exact filenames that are never
// content documents (the shared header/footer fragments).
func New(root string, includeExts, excludeNames []string) *Scanner {
	include := make(map[string]struct{}, len(includeExts))
	for _, ext := range includeExts {
		include[strings.ToLower(ext)] = struct{}{}
	}
	exclude := make(map[string]struct{}, len(excludeNames))
	for _, name := range excludeNames {
		exclude[name] = struct{}{}
	}
	return &Scanner{root: root, include: include, exclude: exclude}
}

// Scan walks the tree rooted at the scanner's root and returns all matching
// documents in lexicographic order of their relative paths. Repeated scans of
// an unchanged tree yield identical ordering.
func (s *Scanner) Scan() ([]Document, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotReadable, s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, s.root)
	}

	var docs []Document
	err = filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()

		// Skip hidden files and directories.
		if strings.HasPrefix(name, ".") && path != s.root {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := s.include[ext]; !ok {
			return nil
		}
		if _, ok := s.exclude[name]; ok {
			slog.Debug("Skipping excluded file", logfields.Path(path))
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		fi, err := entry.Info()
		if err != nil {
			return err
		}

		dir := ""
		if i := strings.LastIndex(rel, "/"); i >= 0 {
			dir = rel[:i]
		}

		docs = append(docs, Document{
			Path:    path,
			RelPath: rel,
			Dir:     dir,
			Name:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     filepath.Ext(name),
			ModTime: fi.ModTime(),
		})
		slog.Debug("Discovered document", logfields.Path(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotReadable, s.root, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].RelPath < docs[j].RelPath })

	slog.Debug("Scan complete", logfields.Count(len(docs)))
	return docs, nil
}
