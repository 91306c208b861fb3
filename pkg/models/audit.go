package models

import (
	"time"

	"github.com/google/uuid"
)

// Execution outcomes recorded on audit records.
const (
	AuditStatusSuccess = "success"
	AuditStatusPreview = "preview"
	AuditStatusDenied  = "denied"
	AuditStatusError   = "error"
)

// TraceStep is one entry in a request's decision trail.
type TraceStep struct {
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// AuditRecord captures one executed or attempted request: the full ordered
// decision trail, every resolved identifier, the rendered query, and the
// execution outcome. Records are append-only and never mutated; they serve
// compliance reporting and exact replay.
// Stored in mp_audit_records table.
type AuditRecord struct {
	ID      uuid.UUID `json:"id"`
	AuditID string    `json:"audit_id"` // external, human-pasteable identifier

	ConceptHint   string            `json:"concept_hint"`
	RequestParams map[string]any    `json:"request_params,omitempty"`
	ScenarioTags  map[string]string `json:"scenario_tags,omitempty"`

	// Resolution outcome (nil until the corresponding step succeeded)
	ConceptID           *uuid.UUID `json:"concept_id,omitempty"`
	ConceptName         string     `json:"concept_name,omitempty"`
	VersionID           *uuid.UUID `json:"version_id,omitempty"`
	VersionName         string     `json:"version_name,omitempty"`
	LogicalDefinitionID *uuid.UUID `json:"logical_definition_id,omitempty"`
	Expression          string     `json:"expression,omitempty"`
	MappingID           *uuid.UUID `json:"mapping_id,omitempty"`
	EngineType          string     `json:"engine_type,omitempty"`
	ConnectionRef       string     `json:"connection_ref,omitempty"`

	// Rendered query and its bound values; together they are sufficient for
	// exact replay without re-resolution.
	RenderedQuery string `json:"rendered_query,omitempty"`
	BoundParams   []any  `json:"bound_params,omitempty"`
	PreviewQuery  string `json:"preview_query,omitempty"`

	DecisionTrace []TraceStep `json:"decision_trace"`

	SubjectRole    string `json:"subject_role"`
	PolicyDecision string `json:"policy_decision,omitempty"`

	Status       string `json:"status"`
	RowCount     *int   `json:"row_count,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	ReplayMode    bool   `json:"replay_mode,omitempty"`
	SourceAuditID string `json:"source_audit_id,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditFilters narrows audit history listings.
type AuditFilters struct {
	SubjectRole string
	Status      string
	ConceptName string
	Limit       int
}
