// Package policy decides allow/deny for a (subject, concept, action) triple
// using prioritized, possibly-conditional rules. Evaluation is fail-closed:
// no matching policy means deny.
package policy

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/lucentdata/metricplane/pkg/models"
)

// Decision is the evaluator's verdict with its explanation.
type Decision struct {
	Allowed      bool       `json:"allowed"`
	Reason       string     `json:"reason"`
	PolicyID     *uuid.UUID `json:"policy_id,omitempty"` // winning policy, nil on default deny
	MatchedCount int        `json:"matched_count"`
}

// Evaluate applies prioritized policies to a subject's request.
//
// Policies matching the concept (exact or wildcard), role, and action are
// filtered by condition against the subject's attributes, then ordered by
// priority descending. The highest-priority matching policy's effect wins.
// When conflicting effects tie at the same priority an explicit deny always
// beats an allow: a deliberate, conservative asymmetry with version
// resolution, where a tie is an error. No matching policy means deny.
//
// Deterministic: for a fixed policy set and request the decision and reason
// never vary.
func Evaluate(policies []*models.AccessPolicy, conceptID uuid.UUID, subject models.Subject, action string) Decision {
	var matched []*models.AccessPolicy
	for _, p := range policies {
		if !p.AppliesTo(conceptID) {
			continue
		}
		if p.Role != subject.Role || p.Action != action {
			continue
		}
		if !p.MatchesCondition(subject.Attributes) {
			continue
		}
		matched = append(matched, p)
	}

	if len(matched) == 0 {
		return Decision{
			Allowed: false,
			Reason:  "no applicable policy - default deny",
		}
	}

	// Priority descending; deny dominates within a priority band. The final
	// ID ordering only makes the winning reason stable, never the effect.
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		if matched[i].Effect != matched[j].Effect {
			return matched[i].Effect == models.PolicyEffectDeny
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	winner := matched[0]
	allowed := winner.Effect == models.PolicyEffectAllow

	reason := fmt.Sprintf("%s by policy %s (role=%s action=%s priority=%d)",
		winner.Effect, winner.ID, winner.Role, winner.Action, winner.Priority)
	if !allowed && hasEffectAtPriority(matched, winner.Priority, models.PolicyEffectAllow) {
		reason += " - deny dominates allow at equal priority"
	}

	id := winner.ID
	return Decision{
		Allowed:      allowed,
		Reason:       reason,
		PolicyID:     &id,
		MatchedCount: len(matched),
	}
}

func hasEffectAtPriority(policies []*models.AccessPolicy, priority int, effect string) bool {
	for _, p := range policies {
		if p.Priority == priority && p.Effect == effect {
			return true
		}
	}
	return false
}
