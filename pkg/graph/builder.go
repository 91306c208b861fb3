// Package graph builds the concept dependency DAG and computes blast-radius
// and diff reports over it. It runs off the request path against the same
// metadata the pipeline reads.
package graph

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// Expression reference patterns that create dependency edges.
var (
	metricRefPattern = regexp.MustCompile(`\{\{\s*metric:([A-Za-z0-9_]+)\s*\}\}`)
	dbtRefPattern    = regexp.MustCompile(`ref\(\s*["']([A-Za-z0-9_]+)["']\s*\)`)
)

// ExtractConceptRefs returns the concept names an expression references,
// deduplicated, in order of first appearance.
func ExtractConceptRefs(expression string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(matches [][]string) {
		for _, m := range matches {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	add(metricRefPattern.FindAllStringSubmatch(expression, -1))
	add(dbtRefPattern.FindAllStringSubmatch(expression, -1))
	return names
}

// Node identifies one concept version in the dependency graph. Nodes are
// kept at version granularity for precision.
type Node struct {
	ConceptID   uuid.UUID `json:"concept_id"`
	ConceptName string    `json:"concept_name"`
	VersionID   uuid.UUID `json:"version_id"`
	VersionName string    `json:"version_name"`
}

func (n Node) String() string {
	return n.ConceptName + "@" + n.VersionName
}

// Snapshot is the metadata slice the builder works from.
type Snapshot struct {
	Concepts    []*models.Concept
	Versions    []*models.ConceptVersion
	Definitions []*models.LogicalDefinition
	Declared    []*models.DependencyEdge
}

// Graph is the built dependency DAG. Edges run downstream -> upstream
// ("downstream's logical definition references upstream"); traversal for
// impact goes the other way.
type Graph struct {
	nodes      map[uuid.UUID]Node        // by version ID
	upstream   map[uuid.UUID][]uuid.UUID // version -> versions it depends on
	downstream map[uuid.UUID][]uuid.UUID // version -> versions depending on it
}

// Build assembles the graph from logical-definition references and declared
// dependency rows, then verifies acyclicity. A cycle among definitions is a
// modeling error and fails closed here, never at query time. An expression
// referencing an unknown concept also fails closed.
func Build(snap Snapshot) (*Graph, error) {
	conceptsByID := make(map[uuid.UUID]*models.Concept, len(snap.Concepts))
	conceptsByName := make(map[string]*models.Concept, len(snap.Concepts))
	for _, c := range snap.Concepts {
		conceptsByID[c.ID] = c
		conceptsByName[c.Name] = c
	}

	versionsByConcept := make(map[uuid.UUID][]*models.ConceptVersion)
	g := &Graph{
		nodes:      make(map[uuid.UUID]Node),
		upstream:   make(map[uuid.UUID][]uuid.UUID),
		downstream: make(map[uuid.UUID][]uuid.UUID),
	}

	for _, v := range snap.Versions {
		concept, ok := conceptsByID[v.ConceptID]
		if !ok {
			return nil, fmt.Errorf("version %s references unknown concept %s: %w",
				v.Name, v.ConceptID, apperrors.ErrConceptNotFound)
		}
		versionsByConcept[v.ConceptID] = append(versionsByConcept[v.ConceptID], v)
		g.nodes[v.ID] = Node{
			ConceptID:   concept.ID,
			ConceptName: concept.Name,
			VersionID:   v.ID,
			VersionName: v.Name,
		}
	}

	addEdge := func(downstream, upstream uuid.UUID) {
		for _, existing := range g.upstream[downstream] {
			if existing == upstream {
				return
			}
		}
		g.upstream[downstream] = append(g.upstream[downstream], upstream)
		g.downstream[upstream] = append(g.downstream[upstream], downstream)
	}

	// Edges from expression references. A reference names a concept; it
	// depends on every version of that concept, so a change to any upstream
	// version surfaces in the downstream blast radius.
	for _, def := range snap.Definitions {
		if _, ok := g.nodes[def.VersionID]; !ok {
			continue
		}
		for _, name := range ExtractConceptRefs(def.Expression) {
			upstream, ok := conceptsByName[name]
			if !ok {
				return nil, fmt.Errorf("expression references unresolved concept %q: %w",
					name, apperrors.ErrConceptNotFound)
			}
			for _, uv := range versionsByConcept[upstream.ID] {
				addEdge(def.VersionID, uv.ID)
			}
		}
	}

	// Declared dependency rows.
	for _, dep := range snap.Declared {
		if dep.UpstreamVersionID != nil && dep.DownstreamVersionID != nil {
			addEdge(*dep.DownstreamVersionID, *dep.UpstreamVersionID)
			continue
		}
		for _, dv := range versionsByConcept[dep.DownstreamConceptID] {
			for _, uv := range versionsByConcept[dep.UpstreamConceptID] {
				addEdge(dv.ID, uv.ID)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = g.nodes[id].String()
		}
		return nil, &apperrors.CycleDetectedError{Cycle: names}
	}

	return g, nil
}

// findCycle runs a DFS over upstream edges and returns the first cycle's
// node path, or nil when the graph is acyclic. Iteration order is sorted so
// repeated builds report the same cycle.
func (g *Graph) findCycle() []uuid.UUID {
	const (
		unvisited = iota
		inStack
		done
	)

	state := make(map[uuid.UUID]int, len(g.nodes))
	var cycle []uuid.UUID

	var visit func(id uuid.UUID, path []uuid.UUID) bool
	visit = func(id uuid.UUID, path []uuid.UUID) bool {
		state[id] = inStack
		path = append(path, id)

		for _, next := range sortedIDs(g.upstream[id]) {
			switch state[next] {
			case inStack:
				for i, n := range path {
					if n == next {
						cycle = append(append([]uuid.UUID{}, path[i:]...), next)
						return true
					}
				}
			case unvisited:
				if visit(next, path) {
					return true
				}
			}
		}

		state[id] = done
		return false
	}

	for _, id := range sortedNodeIDs(g.nodes) {
		if state[id] == unvisited && visit(id, nil) {
			return cycle
		}
	}
	return nil
}

// Node returns the graph node for a version ID.
func (g *Graph) Node(versionID uuid.UUID) (Node, bool) {
	n, ok := g.nodes[versionID]
	return n, ok
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortedNodeIDs(nodes map[uuid.UUID]Node) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(nodes))
	for id := range nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
