package models

import (
	"time"

	"github.com/google/uuid"
)

// Engine types a physical mapping may target.
const (
	EngineTypePostgres = "postgres"
	EngineTypeMSSQL    = "mssql"
)

// Parameter types accepted in a mapping's declared parameter schema.
const (
	ParamTypeString    = "string"
	ParamTypeInt       = "int"
	ParamTypeFloat     = "float"
	ParamTypeBool      = "bool"
	ParamTypeTimestamp = "timestamp"
	ParamTypeUUID      = "uuid"
)

// QueryParameter declares one named parameter of a query template.
type QueryParameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// PhysicalMapping ties a logical definition to a concrete, engine-specific
// query template. Template placeholders use {{param}} syntax and must be a
// subset of the declared parameter schema.
// Stored in mp_physical_mappings table; one or more per logical definition.
type PhysicalMapping struct {
	ID                  uuid.UUID        `json:"id"`
	LogicalDefinitionID uuid.UUID        `json:"logical_definition_id"`
	EngineType          string           `json:"engine_type"`
	ConnectionRef       string           `json:"connection_ref"`
	Template            string           `json:"template"`
	Parameters          []QueryParameter `json:"parameters,omitempty"`
	Priority            int              `json:"priority"` // higher wins within an engine class
	Description         string           `json:"description,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// ParameterByName returns the declared parameter with the given name.
func (m *PhysicalMapping) ParameterByName(name string) (QueryParameter, bool) {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return QueryParameter{}, false
}
