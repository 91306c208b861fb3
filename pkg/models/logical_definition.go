package models

import (
	"time"

	"github.com/google/uuid"
)

// LogicalDefinition is the database-agnostic formula for a concept version.
// It contains no physical identifiers: no table names, no SQL. Expressions
// may reference other concepts via {{metric:Name}} or ref('Name'), which is
// where dependency graph edges come from.
// Stored in mp_logical_definitions table, exactly one per version.
type LogicalDefinition struct {
	ID          uuid.UUID `json:"id"`
	VersionID   uuid.UUID `json:"version_id"`
	Expression  string    `json:"expression"`
	Grain       []string  `json:"grain"` // dimension names the aggregation is valid at
	Variables   []string  `json:"variables,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GrainSet returns the declared grain as a lookup set.
func (d *LogicalDefinition) GrainSet() map[string]bool {
	set := make(map[string]bool, len(d.Grain))
	for _, g := range d.Grain {
		set[g] = true
	}
	return set
}
