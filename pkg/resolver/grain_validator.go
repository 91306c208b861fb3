package resolver

import (
	"sort"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// GrainPolicy controls how strictly requested dimensions are matched
// against the declared grain.
type GrainPolicy string

// Grain policies. Subset allows requests at or coarser than the declared
// grain; Exact requires the requested dimensions to equal it. Requests for
// more detail than the grain supports are rejected, never silently
// coarsened.
const (
	GrainPolicySubset GrainPolicy = "subset"
	GrainPolicyExact  GrainPolicy = "exact"
)

// ValidateGrain confirms the requested dimensions are compatible with the
// definition's declared grain. This prevents silently aggregating a fact at
// the wrong level, e.g. requesting per-shift output from a per-day
// definition.
func ValidateGrain(def *models.LogicalDefinition, requested []string, policy GrainPolicy) error {
	declared := def.GrainSet()

	var offending []string
	for _, dim := range requested {
		if !declared[dim] {
			offending = append(offending, dim)
		}
	}

	if policy == GrainPolicyExact && len(offending) == 0 && len(requested) != len(declared) {
		// Exact policy: missing dimensions are as much a mismatch as extra ones.
		seen := make(map[string]bool, len(requested))
		for _, dim := range requested {
			seen[dim] = true
		}
		for _, dim := range def.Grain {
			if !seen[dim] {
				offending = append(offending, dim)
			}
		}
	}

	if len(offending) == 0 {
		return nil
	}

	sort.Strings(offending)
	return &apperrors.GrainMismatchError{
		Offending:     offending,
		DeclaredGrain: def.Grain,
	}
}
