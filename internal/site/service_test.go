package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
)

func testConfig(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return &config.Config{
		Source: config.SourceConfig{
			Root:              root,
			IncludeExtensions: []string{".md"},
			Header:            "header.md",
			Footer:            "footer.md",
		},
		Output: config.OutputConfig{
			Directory: filepath.Join(t.TempDir(), "site"),
			Extension: ".html",
		},
		Build: config.BuildConfig{FailurePolicy: config.PolicyBestEffort},
	}
}

func TestBuildRendersMarkdownByDefault(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md": "# Site",
		"footer.md": "(c) 2025",
		"about.md":  "Hello **world**",
	})

	svc, err := New(cfg)
	require.NoError(t, err)

	report, err := svc.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success())

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "about.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Site</h1>")
	assert.Contains(t, string(data), "<strong>world</strong>")
}

func TestBuildWithListing(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md":  "H",
		"footer.md":  "F",
		"posts/a.md": "a",
		"posts/b.md": "b",
	})
	cfg.Source.ListingDirs = []string{"posts"}

	svc, err := New(cfg)
	require.NoError(t, err)

	report, err := svc.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.Len(t, report.Built, 6)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "posts", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `href="a.html"`)
	assert.Contains(t, string(data), `href="b.html"`)
}

func TestBuildSecondRunSkipsEverything(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md": "H",
		"footer.md": "F",
		"a.md":      "a",
	})

	svc, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Build(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Built, 2)

	second, err := svc.Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Built)
	assert.Len(t, second.Skipped, 2)
}

func TestBuildCleanFlagForcesFullRebuild(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md": "H",
		"footer.md": "F",
		"a.md":      "a",
	})
	cfg.Output.Clean = true

	svc, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Build(ctx)
	require.NoError(t, err)

	second, err := svc.Build(ctx)
	require.NoError(t, err)
	assert.Len(t, second.Built, 2, "clean build must rebuild everything")
}

func TestBuildRecordsHistory(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md": "H",
		"footer.md": "F",
		"a.md":      "a",
	})

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc, err := New(cfg)
	require.NoError(t, err)
	svc.WithHistory(store)

	report, err := svc.Build(context.Background())
	require.NoError(t, err)

	entries, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, report.BuildID, entries[0].BuildID)
	assert.Equal(t, "success", entries[0].Outcome)
}

func TestBuildMissingFragmentFails(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md": "H",
		"a.md":      "a",
	})

	svc, err := New(cfg)
	require.NoError(t, err)

	_, err = svc.Build(context.Background())
	require.Error(t, err)
}

func TestPlanMissingRootIsFatalScanError(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Source.Root = filepath.Join(cfg.Source.Root, "does-not-exist")

	svc, err := New(cfg)
	require.NoError(t, err)

	_, err = svc.Plan()
	require.Error(t, err)

	var sbe *sberrors.SiteBuilderError
	require.ErrorAs(t, err, &sbe)
	assert.Equal(t, sberrors.CategoryScan, sbe.Category)
	assert.Equal(t, sberrors.SeverityFatal, sbe.Severity)
}

func TestScanExcludesFragments(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"header.md": "H",
		"footer.md": "F",
		"a.md":      "a",
	})

	svc, err := New(cfg)
	require.NoError(t, err)

	docs, err := svc.Scan()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.md", docs[0].RelPath)
}
