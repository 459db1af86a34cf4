package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/executor"
)

func testReport(id string, outcome executor.Outcome) *executor.Report {
	return &executor.Report{
		BuildID:   id,
		StartedAt: time.Now(),
		Duration:  120 * time.Millisecond,
		Built:     []string{"site/a.html", "site/.stage/a.html.in"},
		Skipped:   []string{"site/b.html"},
		Outcome:   outcome,
	}
}

func TestRecordAndRecent(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, testReport("build-1", executor.OutcomeSuccess)))
	require.NoError(t, store.Record(ctx, testReport("build-2", executor.OutcomeSuccess)))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "build-2", entries[0].BuildID)
	assert.Equal(t, "build-1", entries[1].BuildID)
	assert.Equal(t, 2, entries[0].Built)
	assert.Equal(t, 1, entries[0].Skipped)
	assert.Equal(t, "success", entries[0].Outcome)
	assert.Equal(t, 120*time.Millisecond, entries[0].Duration)
}

func TestRecordFailures(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	report := testReport("build-3", executor.OutcomeFailed)
	report.Failed = []sberrors.ArtifactFailure{
		{Path: "site/bad.html", Cause: errors.New("render failed: exit 1")},
	}

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, report))

	entries, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Failed)
	require.Len(t, entries[0].Failures, 1)
	assert.Contains(t, entries[0].Failures[0], "site/bad.html")
}

func TestRecentLimit(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, testReport("build", executor.OutcomeSuccess)))
	}

	entries, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestOpenPersistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), testReport("build-a", executor.OutcomeSuccess)))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
