package models

import (
	"time"

	"github.com/google/uuid"
)

// Policy effects.
const (
	PolicyEffectAllow = "allow"
	PolicyEffectDeny  = "deny"
)

// Actions governed by policies.
const (
	PolicyActionQuery  = "query"
	PolicyActionReplay = "replay"
	PolicyActionExport = "export"
)

// AccessPolicy governs whether a (role, concept, action) triple is
// permitted. A nil ConceptID is a wildcard matching every concept.
// Stored in mp_access_policies table.
type AccessPolicy struct {
	ID        uuid.UUID  `json:"id"`
	ConceptID *uuid.UUID `json:"concept_id,omitempty"` // nil = wildcard
	Role      string     `json:"role"`
	Action    string     `json:"action"`

	// Condition, when present, must match the subject's attributes key for
	// key for the policy to apply. Unconditional policies always apply.
	Condition map[string]string `json:"condition,omitempty"`

	Effect    string    `json:"effect"`
	Priority  int       `json:"priority"` // higher evaluated first
	CreatedAt time.Time `json:"created_at"`
}

// AppliesTo reports whether the policy governs the given concept.
func (p *AccessPolicy) AppliesTo(conceptID uuid.UUID) bool {
	return p.ConceptID == nil || *p.ConceptID == conceptID
}

// MatchesCondition reports whether the policy's condition holds for the
// given subject attributes.
func (p *AccessPolicy) MatchesCondition(attrs map[string]string) bool {
	if len(p.Condition) == 0 {
		return true
	}
	for key, want := range p.Condition {
		got, ok := attrs[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
