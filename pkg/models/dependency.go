package models

import (
	"time"

	"github.com/google/uuid"
)

// Dependency edge kinds.
const (
	DependencyKindLogical  = "logical"  // derived from an expression reference
	DependencyKindDeclared = "declared" // recorded explicitly by a modeler
)

// DependencyEdge is an upstream-concept -> downstream-concept relation: the
// downstream version's logical definition references the upstream concept.
// Edges are derived from expressions or declared explicitly; they feed only
// the impact analyzer, never the request path.
// Stored in mp_concept_dependencies table.
type DependencyEdge struct {
	ID                  uuid.UUID  `json:"id"`
	UpstreamConceptID   uuid.UUID  `json:"upstream_concept_id"`
	DownstreamConceptID uuid.UUID  `json:"downstream_concept_id"`
	UpstreamVersionID   *uuid.UUID `json:"upstream_version_id,omitempty"`
	DownstreamVersionID *uuid.UUID `json:"downstream_version_id,omitempty"`
	Kind                string     `json:"kind"` // "logical" or "declared"
	Description         string     `json:"description,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}
