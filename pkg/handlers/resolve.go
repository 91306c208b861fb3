package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/services"
)

// resolveRequestSchema rejects malformed resolve requests before they reach
// the pipeline, so shape errors never consume an audit identifier.
const resolveRequestSchema = `{
	"type": "object",
	"required": ["concept_hint", "subject"],
	"properties": {
		"concept_hint": {"type": "string", "minLength": 1},
		"requested_dimensions": {"type": "array", "items": {"type": "string"}},
		"time_range": {
			"type": "object",
			"properties": {
				"start": {"type": "string", "format": "date-time"},
				"end": {"type": "string", "format": "date-time"}
			}
		},
		"scenario_tags": {"type": "object", "additionalProperties": {"type": "string"}},
		"parameters": {"type": "object"},
		"subject": {
			"type": "object",
			"required": ["role"],
			"properties": {
				"role": {"type": "string", "minLength": 1},
				"attributes": {"type": "object", "additionalProperties": {"type": "string"}}
			}
		},
		"engine_type": {"type": "string", "enum": ["postgres", "mssql"]},
		"preview_only": {"type": "boolean"}
	}
}`

var compiledResolveSchema = jsonschema.MustCompileString("resolve_request.json", resolveRequestSchema)

// ResolveHandler serves resolve and replay requests.
type ResolveHandler struct {
	orchestrator *services.Orchestrator
	logger       *zap.Logger
}

// NewResolveHandler creates a new ResolveHandler.
func NewResolveHandler(orchestrator *services.Orchestrator, logger *zap.Logger) *ResolveHandler {
	return &ResolveHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the resolve handler's routes on the given mux.
func (h *ResolveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/resolve", h.Resolve)
	mux.HandleFunc("POST /api/replay/{audit_id}", h.Replay)
}

// Resolve handles POST /api/resolve.
// The response always carries the audit identifier; pipeline failures are
// reported in the body with an HTTP status derived from the error kind.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Failed to read request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := compiledResolveSchema.Validate(payload); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req models.ResolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.orchestrator.Resolve(r.Context(), &req)
	if err != nil {
		// The pipeline outcome is in resp; err here means the audit write
		// failed and the execution is unaccounted for.
		h.logger.Error("Audit persistence failed",
			zap.String("audit_id", resp.AuditID),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "audit_persistence_error",
			"Execution completed but the audit record could not be persisted"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status := http.StatusOK
	if resp.Error != nil {
		status = StatusForKind(resp.Error.Kind)
	}
	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Replay handles POST /api/replay/{audit_id}.
func (h *ResolveHandler) Replay(w http.ResponseWriter, r *http.Request) {
	auditID := r.PathValue("audit_id")
	if auditID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "audit_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.orchestrator.Replay(r.Context(), auditID)
	if err != nil {
		info := services.ErrorInfoFrom(err)
		h.logger.Warn("Replay rejected",
			zap.String("source_audit_id", auditID),
			zap.String("kind", info.Kind),
			zap.Error(err))
		if err := ErrorForKind(w, info.Kind, info.Message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status := http.StatusOK
	if resp.Error != nil {
		status = StatusForKind(resp.Error.Kind)
	}
	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
