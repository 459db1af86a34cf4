package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/assemble"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/graph"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
	"git.home.luguber.info/inful/sitebuilder/internal/scan"
)

// flakyRenderer fails for any input containing the marker, passing everything
// else through unchanged.
type flakyRenderer struct {
	marker string
}

func (f flakyRenderer) Render(_ context.Context, src []byte) ([]byte, error) {
	if f.marker != "" && strings.Contains(string(src), f.marker) {
		return nil, errors.New("conversion exploded")
	}
	return src, nil
}

// slowRenderer passes input through after a fixed delay.
type slowRenderer struct {
	delay time.Duration
}

func (s slowRenderer) Render(_ context.Context, src []byte) ([]byte, error) {
	time.Sleep(s.delay)
	return src, nil
}

type fixture struct {
	t       *testing.T
	root    string
	out     string
	frags   assemble.Fragments
	builder *graph.Builder
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "src")
	out := filepath.Join(base, "site")

	all := map[string]string{"header.md": "H", "footer.md": "F"}
	for k, v := range files {
		all[k] = v
	}
	for rel, content := range all {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	return &fixture{
		t:     t,
		root:  root,
		out:   out,
		frags: assemble.Fragments{Header: "H", Footer: "F"},
		builder: &graph.Builder{
			OutputRoot: out,
			OutputExt:  ".html",
			HeaderPath: filepath.Join(root, "header.md"),
			FooterPath: filepath.Join(root, "footer.md"),
		},
	}
}

func (f *fixture) graph(listingDirs ...string) *graph.Graph {
	f.t.Helper()
	docs, err := scan.New(f.root, []string{".md"}, []string{"header.md", "footer.md"}).Scan()
	require.NoError(f.t, err)
	g, err := f.builder.Build(docs, listingDirs)
	require.NoError(f.t, err)
	return g
}

func (f *fixture) execute(g *graph.Graph, r render.Renderer, policy config.FailurePolicy) *Report {
	f.t.Helper()
	report, _ := New(f.frags, r, policy, 2).Execute(context.Background(), g)
	return report
}

func (f *fixture) touch(rel string, offset time.Duration) {
	f.t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	ts := time.Now().Add(offset)
	require.NoError(f.t, os.Chtimes(path, ts, ts))
}

func (f *fixture) touchOutput(rel string, offset time.Duration) {
	f.t.Helper()
	path := filepath.Join(f.out, filepath.FromSlash(rel))
	ts := time.Now().Add(offset)
	require.NoError(f.t, os.Chtimes(path, ts, ts))
}

func (f *fixture) readOutput(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.out, filepath.FromSlash(rel)))
	require.NoError(f.t, err)
	return string(data)
}

func TestEndToEndIdentity(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "X"})
	g := f.graph()

	report := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, report.Success(), "report: %+v", report)
	assert.Len(t, report.Built, 2)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	// With an identity renderer the final equals the assembled intermediate.
	assert.Equal(t, "H\n\nX\n\nF\n", f.readOutput("a.html"))
	assert.Equal(t, "H\n\nX\n\nF\n", f.readOutput(filepath.Join(".stage", "a.html.in")))
}

func TestIdempotence(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md":       "A",
		"posts/p.md": "P",
	})
	g := f.graph("posts")

	first := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, first.Success())
	assert.Len(t, first.Built, 6)

	second := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, second.Success())
	assert.Empty(t, second.Built, "unchanged tree must perform zero work")
	assert.Len(t, second.Skipped, 6)
}

func TestMinimalRebuild(t *testing.T) {
	f := newFixture(t, map[string]string{
		"posts/a.md": "A",
		"posts/b.md": "B",
	})
	g := f.graph("posts")

	first := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, first.Success())

	// Touch only A's source; exactly A's chain plus the listing chain rebuilds.
	f.touch("posts/a.md", time.Hour)

	second := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, second.Success())

	wantBuilt := []string{
		filepath.Join(f.out, ".stage", "posts", "a.html.in"),
		filepath.Join(f.out, "posts", "a.html"),
		filepath.Join(f.out, ".stage", "posts", "index.html.in"),
		filepath.Join(f.out, "posts", "index.html"),
	}
	assert.ElementsMatch(t, wantBuilt, second.Built)

	wantSkipped := []string{
		filepath.Join(f.out, ".stage", "posts", "b.html.in"),
		filepath.Join(f.out, "posts", "b.html"),
	}
	assert.ElementsMatch(t, wantSkipped, second.Skipped)
}

func TestListingContent(t *testing.T) {
	f := newFixture(t, map[string]string{
		"posts/p1.md": "one",
		"posts/p2.md": "two",
	})
	g := f.graph("posts")

	report := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, report.Success())

	listing := f.readOutput(filepath.Join("posts", "index.html"))
	want := "H\n\n# Posts\n\n- [p1.html](p1.html)\n- [p2.html](p2.html)\n\n\nF\n"
	assert.Equal(t, want, listing)
}

func TestEmptyListingStillBuilds(t *testing.T) {
	f := newFixture(t, nil)
	g := f.graph("posts")

	report := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, report.Success())

	listing := f.readOutput(filepath.Join("posts", "index.html"))
	assert.Contains(t, listing, "# Posts")
	assert.NotContains(t, listing, "](")
}

func TestBestEffortContinuesPastFailure(t *testing.T) {
	f := newFixture(t, map[string]string{
		"posts/bad.md":  "FAILME",
		"posts/good.md": "fine",
	})
	g := f.graph("posts")

	report := f.execute(g, flakyRenderer{marker: "FAILME"}, config.PolicyBestEffort)
	require.False(t, report.Success())
	assert.Equal(t, OutcomeFailed, report.Outcome)

	// The sibling still built.
	assert.Contains(t, report.Built, filepath.Join(f.out, "posts", "good.html"))

	// The failed artifact and both listing dependents are reported failed.
	failedPaths := make([]string, 0, len(report.Failed))
	for _, fl := range report.Failed {
		failedPaths = append(failedPaths, fl.Path)
	}
	assert.ElementsMatch(t, []string{
		filepath.Join(f.out, "posts", "bad.html"),
		filepath.Join(f.out, ".stage", "posts", "index.html.in"),
		filepath.Join(f.out, "posts", "index.html"),
	}, failedPaths)

	err := report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.html")
}

func TestFailedRenderRetriedOnNextRun(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "X"})
	g := f.graph()

	first := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, first.Success())

	// Edit the source, then let the render fail: the intermediate is
	// reassembled but the old final stays on disk, older than it.
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.md"), []byte("FAILME"), 0o644))
	f.touch("a.md", time.Hour)
	failed := f.execute(g, flakyRenderer{marker: "FAILME"}, config.PolicyBestEffort)
	require.False(t, failed.Success())
	assert.Contains(t, failed.Built, filepath.Join(f.out, ".stage", "a.html.in"))
	// Keep the intermediate strictly newer than the final regardless of
	// filesystem timestamp resolution.
	f.touchOutput(filepath.Join(".stage", "a.html.in"), time.Hour)

	// Re-running the build is the retry mechanism: the stale final must be
	// rebuilt even though its intermediate is skipped this run.
	retry := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.True(t, retry.Success())
	assert.Contains(t, retry.Built, filepath.Join(f.out, "a.html"))
	assert.Contains(t, retry.Skipped, filepath.Join(f.out, ".stage", "a.html.in"))
	assert.Equal(t, "H\n\nFAILME\n\nF\n", f.readOutput("a.html"))
}

func TestDeadlineStopsSchedulingNewArtifacts(t *testing.T) {
	f := newFixture(t, map[string]string{"posts/a.md": "A"})
	g := f.graph("posts")

	report, err := New(f.frags, slowRenderer{delay: 300 * time.Millisecond}, config.PolicyBestEffort, 1).
		WithDeadline(100 * time.Millisecond).
		Execute(context.Background(), g)
	require.NoError(t, err)

	// The document render was in flight when the deadline passed and still
	// finished; the listing chain behind it was never scheduled.
	assert.Equal(t, OutcomeCanceled, report.Outcome)
	assert.Contains(t, report.Built, filepath.Join(f.out, "posts", "a.html"))
	assert.ElementsMatch(t, []string{
		filepath.Join(f.out, ".stage", "posts", "index.html.in"),
		filepath.Join(f.out, "posts", "index.html"),
	}, report.Aborted)
	assert.Empty(t, report.Failed)
}

func TestFailFastStopsScheduling(t *testing.T) {
	f := newFixture(t, map[string]string{
		"posts/bad.md":  "FAILME",
		"posts/good.md": "fine",
	})
	g := f.graph("posts")

	report := f.execute(g, flakyRenderer{marker: "FAILME"}, config.PolicyFailFast)
	require.False(t, report.Success())
	assert.NotEmpty(t, report.Failed)
	// Later levels (the listing chain) were never scheduled.
	assert.ElementsMatch(t, []string{
		filepath.Join(f.out, ".stage", "posts", "index.html.in"),
		filepath.Join(f.out, "posts", "index.html"),
	}, report.Aborted)
}

func TestCanceledContextAbortsScheduling(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "X"})
	g := f.graph()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(f.frags, render.Identity{}, config.PolicyBestEffort, 1).Execute(ctx, g)
	require.NoError(t, err, "cancellation is not an artifact failure")
	assert.Equal(t, OutcomeCanceled, report.Outcome)
	assert.Len(t, report.Aborted, 2)
	assert.Empty(t, report.Built)
}

func TestMissingDependencyFailsArtifact(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "X"})
	g := f.graph()

	// Remove the source after the graph was built.
	require.NoError(t, os.Remove(filepath.Join(f.root, "a.md")))

	report := f.execute(g, render.Identity{}, config.PolicyBestEffort)
	require.False(t, report.Success())
	require.NotEmpty(t, report.Failed)
	assert.Contains(t, report.Failed[0].Cause.Error(), "dependency missing")
}

func TestReportIDAndDuration(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "X"})
	report := f.execute(f.graph(), render.Identity{}, config.PolicyBestEffort)
	assert.NotEmpty(t, report.BuildID)
	assert.False(t, report.StartedAt.IsZero())
}
