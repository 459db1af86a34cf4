package executor

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/sitebuilder/internal/graph"
)

// isStale decides whether an artifact needs to be produced: the output is
// missing, a dependency artifact was rebuilt this run, or a dependency file is
// strictly newer than the output. Equal timestamps count as fresh, matching
// make-style incremental semantics. A missing dependency that is not an
// artifact of this run is an error.
func (r *run) isStale(a *graph.Artifact) (bool, error) {
	outInfo, err := os.Stat(a.OutputPath)
	missing := false
	if err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("stat artifact %s: %w", a.OutputPath, err)
		}
		missing = true
	}

	stale := missing
	for _, dep := range a.DependsOn {
		if st, tracked := r.state[dep]; tracked && st == stateBuilt {
			// A dependency produced this run always dirties its
			// dependents, independent of filesystem timestamp
			// granularity.
			stale = true
			continue
		}
		// Skipped dependency artifacts go through the same mtime check as
		// raw inputs: a fresh intermediate can still be newer than a final
		// whose last render failed.
		depInfo, err := os.Stat(dep)
		if err != nil {
			if os.IsNotExist(err) {
				return false, fmt.Errorf("dependency missing: %s", dep)
			}
			return false, fmt.Errorf("stat dependency %s: %w", dep, err)
		}
		if !missing && depInfo.ModTime().After(outInfo.ModTime()) {
			stale = true
		}
	}
	return stale, nil
}
