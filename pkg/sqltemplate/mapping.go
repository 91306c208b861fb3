package sqltemplate

import (
	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// SelectMapping picks the physical mapping to render for a request's target
// engine. Among mappings for that engine the highest priority wins; a
// priority tie is engine-selection ambiguity and fails like a version tie.
// An empty engineType accepts any engine class.
func SelectMapping(mappings []*models.PhysicalMapping, engineType string) (*models.PhysicalMapping, error) {
	var matching []*models.PhysicalMapping
	for _, m := range mappings {
		if engineType == "" || m.EngineType == engineType {
			matching = append(matching, m)
		}
	}

	if len(matching) == 0 {
		return nil, apperrors.ErrMappingNotFound
	}

	maxPriority := matching[0].Priority
	for _, m := range matching[1:] {
		if m.Priority > maxPriority {
			maxPriority = m.Priority
		}
	}

	var top []*models.PhysicalMapping
	for _, m := range matching {
		if m.Priority == maxPriority {
			top = append(top, m)
		}
	}

	if len(top) > 1 {
		candidates := make([]apperrors.Candidate, len(top))
		for i, m := range top {
			candidates[i] = apperrors.Candidate{
				ID:       m.ID.String(),
				Name:     m.EngineType + "/" + m.ConnectionRef,
				Priority: m.Priority,
			}
		}
		return nil, &apperrors.AmbiguityError{Subject: "mapping", Candidates: candidates}
	}

	return top[0], nil
}
