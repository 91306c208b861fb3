package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lifecycle status values for concepts. Concepts are never physically
// deleted, only deprecated.
const (
	ConceptStatusActive     = "active"
	ConceptStatusDeprecated = "deprecated"
)

// Concept represents a named business quantity (a metric). This is WHAT the
// business cares about, not HOW it is calculated.
// Stored in mp_concepts table.
type Concept struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Aliases     []string  `json:"aliases,omitempty"`
	Domain      string    `json:"domain"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive reports whether the concept is still in governance rotation.
func (c *Concept) IsActive() bool {
	return c.Status == ConceptStatusActive
}

// MatchesHint reports whether term equals the concept's name or any of its
// aliases, case-insensitively.
func (c *Concept) MatchesHint(term string) bool {
	if strings.EqualFold(term, c.Name) {
		return true
	}
	for _, alias := range c.Aliases {
		if strings.EqualFold(term, alias) {
			return true
		}
	}
	return false
}
