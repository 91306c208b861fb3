// Package resolver implements version selection and grain validation: the
// deterministic heart of the pipeline. Everything here is pure computation
// over metadata plus request context.
package resolver

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucentdata/metricplane/pkg/models"
)

// Base score of any version whose effective window covers the request.
// Scenario-conditioned versions add one point per condition key on a full
// match, so more-specific matches always outrank less-specific ones.
const scoreInWindow = 1

// MatchResult records how one version scored against a request. Every
// result, selected or not, lands in the decision trail.
type MatchResult struct {
	VersionID   uuid.UUID `json:"version_id"`
	VersionName string    `json:"version_name"`
	Score       int       `json:"score"`
	Priority    int       `json:"priority"`
	Reason      string    `json:"reason"`
}

// EvaluateVersion scores a version against the request's effective instant
// and scenario tags. The second return value is false when the version is
// not a candidate at all: outside its effective window (excluded before
// scoring, never scored zero) or carrying a scenario condition the tags do
// not satisfy in full. A partial condition match is no match.
func EvaluateVersion(v *models.ConceptVersion, at time.Time, tags map[string]string) (MatchResult, bool) {
	result := MatchResult{
		VersionID:   v.ID,
		VersionName: v.Name,
		Priority:    v.Priority,
	}

	if !v.IsEffective(at) {
		result.Reason = "not_time_effective"
		return result, false
	}

	if len(v.ScenarioCondition) == 0 {
		result.Score = scoreInWindow
		result.Reason = "default_version_no_scenario"
		return result, true
	}

	if !v.MatchesScenario(tags) {
		result.Reason = fmt.Sprintf("scenario_mismatch: expected=%v provided=%v", v.ScenarioCondition, tags)
		return result, false
	}

	result.Score = scoreInWindow + len(v.ScenarioCondition)
	result.Reason = fmt.Sprintf("scenario_match: %v", v.ScenarioCondition)
	return result, true
}
