package models

import (
	"time"

	"github.com/google/uuid"
)

// ConceptVersion is one temporally/scenario-scoped definition of a Concept.
// At most one version may be selected per request; selection is deterministic
// or the request fails.
// Stored in mp_concept_versions table.
type ConceptVersion struct {
	ID            uuid.UUID  `json:"id"`
	ConceptID     uuid.UUID  `json:"concept_id"`
	Name          string     `json:"name"` // unique per concept
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`

	// ScenarioCondition must match the request's scenario tags exactly,
	// key for key. A partial match is no match at all.
	ScenarioCondition map[string]string `json:"scenario_condition,omitempty"`

	Priority    int       `json:"priority"` // tie-break weight, higher wins
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsEffective reports whether the version's effective window covers the
// given instant. Inactive versions are never effective.
func (v *ConceptVersion) IsEffective(at time.Time) bool {
	if !v.Active {
		return false
	}
	if at.Before(v.EffectiveFrom) {
		return false
	}
	if v.EffectiveTo != nil && at.After(*v.EffectiveTo) {
		return false
	}
	return true
}

// MatchesScenario reports whether every key in the version's scenario
// condition is present in tags with an identical value. Versions without a
// condition match any request (they are the default candidate); a version
// with a condition never matches partially.
func (v *ConceptVersion) MatchesScenario(tags map[string]string) bool {
	if len(v.ScenarioCondition) == 0 {
		return true
	}
	for key, want := range v.ScenarioCondition {
		got, ok := tags[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
