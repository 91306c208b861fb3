package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/repositories"
)

// ListAuditsResponse wraps the audit list for frontend compatibility.
type ListAuditsResponse struct {
	Audits []*models.AuditRecord `json:"audits"`
}

// AuditsHandler serves the audit history.
type AuditsHandler struct {
	audits repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditsHandler creates a new AuditsHandler.
func NewAuditsHandler(audits repositories.AuditRepository, logger *zap.Logger) *AuditsHandler {
	return &AuditsHandler{audits: audits, logger: logger}
}

// RegisterRoutes registers the audits handler's routes on the given mux.
func (h *AuditsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audits", h.List)
	mux.HandleFunc("GET /api/audits/{audit_id}", h.Get)
}

// List handles GET /api/audits with optional role, status, concept, and
// limit query filters.
func (h *AuditsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := models.AuditFilters{
		SubjectRole: r.URL.Query().Get("role"),
		Status:      r.URL.Query().Get("status"),
		ConceptName: r.URL.Query().Get("concept"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filters.Limit = limit
	}

	records, err := h.audits.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list audit records", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list audit records"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if records == nil {
		records = []*models.AuditRecord{}
	}
	if err := WriteJSON(w, http.StatusOK, ListAuditsResponse{Audits: records}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/audits/{audit_id}.
func (h *AuditsHandler) Get(w http.ResponseWriter, r *http.Request) {
	auditID := r.PathValue("audit_id")

	record, err := h.audits.GetByAuditID(r.Context(), auditID)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuditNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Audit record not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to load audit record",
			zap.String("audit_id", auditID),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to load audit record"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
