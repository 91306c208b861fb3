package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/services"
)

// ImpactHandler serves dependency impact and version diff reports.
type ImpactHandler struct {
	impact services.ImpactService
	logger *zap.Logger
}

// NewImpactHandler creates a new ImpactHandler.
func NewImpactHandler(impact services.ImpactService, logger *zap.Logger) *ImpactHandler {
	return &ImpactHandler{impact: impact, logger: logger}
}

// RegisterRoutes registers the impact handler's routes on the given mux.
func (h *ImpactHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/impact", h.Impact)
	mux.HandleFunc("GET /api/diff", h.Diff)
}

// Impact handles GET /api/impact?concept=X&version=Y.
func (h *ImpactHandler) Impact(w http.ResponseWriter, r *http.Request) {
	conceptName := r.URL.Query().Get("concept")
	versionName := r.URL.Query().Get("version")
	if conceptName == "" || versionName == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "concept and version query parameters are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	report, err := h.impact.Impact(r.Context(), conceptName, versionName)
	if err != nil {
		h.writeImpactError(w, err, "Failed to compute impact")
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Diff handles GET /api/diff?concept=X&from=A&to=B. With format=markdown the
// report is rendered for review threads instead of returned as JSON.
func (h *ImpactHandler) Diff(w http.ResponseWriter, r *http.Request) {
	conceptName := r.URL.Query().Get("concept")
	versionA := r.URL.Query().Get("from")
	versionB := r.URL.Query().Get("to")
	if conceptName == "" || versionA == "" || versionB == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "concept, from, and to query parameters are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	report, err := h.impact.Diff(r.Context(), conceptName, versionA, versionB)
	if err != nil {
		h.writeImpactError(w, err, "Failed to compute diff")
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if _, err := w.Write([]byte(report.Markdown())); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ImpactHandler) writeImpactError(w http.ResponseWriter, err error, fallback string) {
	kind := apperrors.Kind(err)
	status := StatusForKind(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(fallback, zap.Error(err))
		message = fallback
	} else {
		h.logger.Warn(fallback, zap.String("kind", kind), zap.Error(err))
	}
	if err := ErrorResponse(w, status, kind, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
