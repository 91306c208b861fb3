package models

import "time"

// Subject identifies who is asking: a role plus optional attributes used by
// conditional policies. Authentication happens upstream; the pipeline trusts
// the subject it is handed.
type Subject struct {
	Role       string            `json:"role"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TimeRange bounds the data a request is about. End also serves as the
// effective timestamp for version selection when set.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolveRequest is the single input to the resolution pipeline. It carries
// all request-scoped state; the pipeline holds none of its own.
type ResolveRequest struct {
	ConceptHint  string            `json:"concept_hint"`
	Dimensions   []string          `json:"requested_dimensions,omitempty"`
	TimeRange    *TimeRange        `json:"time_range,omitempty"`
	ScenarioTags map[string]string `json:"scenario_tags,omitempty"`
	Parameters   map[string]any    `json:"parameters,omitempty"`
	Subject      Subject           `json:"subject"`
	EngineType   string            `json:"engine_type,omitempty"`
	PreviewOnly  bool              `json:"preview_only,omitempty"`
}

// EffectiveAt returns the instant version selection is evaluated at: the end
// of the requested time range when given, otherwise now.
func (r *ResolveRequest) EffectiveAt(now time.Time) time.Time {
	if r.TimeRange != nil && !r.TimeRange.End.IsZero() {
		return r.TimeRange.End
	}
	return now
}

// ErrorInfo is the structured error payload of a response.
type ErrorInfo struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// ResolveResponse is the pipeline's output for one request.
type ResolveResponse struct {
	Status          string           `json:"status"`
	Data            []map[string]any `json:"data,omitempty"`
	ResolvedConcept string           `json:"resolved_concept,omitempty"`
	ResolvedVersion string           `json:"resolved_version,omitempty"`
	RenderedQuery   string           `json:"rendered_query,omitempty"`
	PreviewQuery    string           `json:"preview_query,omitempty"`
	AuditID         string           `json:"audit_id"`
	RowCount        int              `json:"row_count,omitempty"`
	DurationMs      int64            `json:"duration_ms,omitempty"`
	DecisionTrace   []TraceStep      `json:"decision_trace"`
	ReplayMode      bool             `json:"replay_mode,omitempty"`
	SourceAuditID   string           `json:"source_audit_id,omitempty"`
	Error           *ErrorInfo       `json:"error,omitempty"`
}
