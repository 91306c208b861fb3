package resolver

import (
	"time"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// Selection is the outcome of version resolution: the chosen version plus
// the complete scoring breakdown, recorded regardless of outcome.
type Selection struct {
	Version  *models.ConceptVersion
	Score    int
	Reason   string
	Excluded []MatchResult // versions ruled out before or during scoring
	Scored   []MatchResult // candidate versions that received a score
}

// ResolveVersion selects exactly one version for a concept, or fails with a
// typed error. Pure function over the version list and request context.
//
// Algorithm: exclude out-of-window versions, score the rest, keep the
// maximal-score subset, break ties by priority descending. If two or more
// candidates still tie the resolution fails with an AmbiguityError listing
// every tied candidate; the system never picks arbitrarily.
func ResolveVersion(versions []*models.ConceptVersion, at time.Time, tags map[string]string) (*Selection, error) {
	sel := &Selection{}
	byID := make(map[string]*models.ConceptVersion, len(versions))

	for _, v := range versions {
		result, ok := EvaluateVersion(v, at, tags)
		if !ok {
			sel.Excluded = append(sel.Excluded, result)
			continue
		}
		sel.Scored = append(sel.Scored, result)
		byID[v.ID.String()] = v
	}

	if len(sel.Scored) == 0 {
		return sel, apperrors.ErrVersionNotFound
	}

	maxScore := sel.Scored[0].Score
	for _, r := range sel.Scored[1:] {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	var best []MatchResult
	for _, r := range sel.Scored {
		if r.Score == maxScore {
			best = append(best, r)
		}
	}

	if len(best) > 1 {
		maxPriority := best[0].Priority
		for _, r := range best[1:] {
			if r.Priority > maxPriority {
				maxPriority = r.Priority
			}
		}
		var top []MatchResult
		for _, r := range best {
			if r.Priority == maxPriority {
				top = append(top, r)
			}
		}
		best = top
	}

	if len(best) > 1 {
		candidates := make([]apperrors.Candidate, len(best))
		for i, r := range best {
			candidates[i] = apperrors.Candidate{
				ID:       r.VersionID.String(),
				Name:     r.VersionName,
				Priority: r.Priority,
			}
		}
		return sel, &apperrors.AmbiguityError{Subject: "version", Candidates: candidates}
	}

	winner := best[0]
	sel.Version = byID[winner.VersionID.String()]
	sel.Score = winner.Score
	sel.Reason = winner.Reason
	return sel, nil
}
