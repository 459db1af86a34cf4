package graph

import (
	"sort"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// sort orders the artifacts topologically using Kahn's algorithm and records
// the dependency levels. Only dependencies that are themselves artifact
// outputs form edges; raw source and fragment paths are leaves. Ready
// artifacts are processed in lexicographic output-path order so the result is
// deterministic.
func (g *Graph) sort() error {
	indegree := make(map[string]int, len(g.byOutput))
	dependents := make(map[string][]string, len(g.byOutput))

	for out, a := range g.byOutput {
		if _, ok := indegree[out]; !ok {
			indegree[out] = 0
		}
		for _, dep := range a.DependsOn {
			if _, isArtifact := g.byOutput[dep]; isArtifact {
				indegree[out]++
				dependents[dep] = append(dependents[dep], out)
			}
		}
	}

	ready := make([]string, 0, len(indegree))
	for out, deg := range indegree {
		if deg == 0 {
			ready = append(ready, out)
		}
	}
	sort.Strings(ready)

	g.order = g.order[:0]
	g.levels = g.levels[:0]

	for len(ready) > 0 {
		level := make([]*Artifact, 0, len(ready))
		var next []string
		for _, out := range ready {
			a := g.byOutput[out]
			level = append(level, a)
			g.order = append(g.order, a)
			for _, dep := range dependents[out] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		g.levels = append(g.levels, level)
		sort.Strings(next)
		ready = next
	}

	if len(g.order) != len(g.byOutput) {
		// Cannot occur for graphs produced by Builder.Build, but Kahn's
		// algorithm detects it for free.
		return sberrors.New(sberrors.CategoryGraph, sberrors.SeverityFatal,
			"dependency cycle detected")
	}
	return nil
}
