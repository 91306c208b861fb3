package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/lucentdata/metricplane/pkg/apperrors"
)

// ImpactReport is the blast radius of changing one version's definition:
// every downstream node transitively reachable from it.
type ImpactReport struct {
	Target           Node     `json:"target"`
	Downstream       []Node   `json:"downstream"`
	ImpactedConcepts []string `json:"impacted_concepts"`
	DownstreamCount  int      `json:"downstream_count"`
}

// Impact computes the transitive closure of downstream nodes reachable from
// the given version. The target itself is not part of its own blast radius.
func (g *Graph) Impact(versionID uuid.UUID) (*ImpactReport, error) {
	target, ok := g.nodes[versionID]
	if !ok {
		return nil, apperrors.ErrVersionNotFound
	}

	visited := map[uuid.UUID]bool{versionID: true}
	stack := []uuid.UUID{versionID}
	var downstream []Node

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.downstream[id] {
			if visited[next] {
				continue
			}
			visited[next] = true
			downstream = append(downstream, g.nodes[next])
			stack = append(stack, next)
		}
	}

	sort.Slice(downstream, func(i, j int) bool {
		return downstream[i].String() < downstream[j].String()
	})

	conceptSet := make(map[string]bool)
	for _, n := range downstream {
		conceptSet[n.ConceptName] = true
	}
	concepts := make([]string, 0, len(conceptSet))
	for name := range conceptSet {
		concepts = append(concepts, name)
	}
	sort.Strings(concepts)

	return &ImpactReport{
		Target:           target,
		Downstream:       downstream,
		ImpactedConcepts: concepts,
		DownstreamCount:  len(downstream),
	}, nil
}
