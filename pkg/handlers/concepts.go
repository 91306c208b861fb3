package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/repositories"
)

// ConceptSummary is one catalog entry with its versions.
type ConceptSummary struct {
	Concept  *models.Concept          `json:"concept"`
	Versions []*models.ConceptVersion `json:"versions"`
}

// ListConceptsResponse wraps the catalog listing.
type ListConceptsResponse struct {
	Concepts []ConceptSummary `json:"concepts"`
}

// ConceptsHandler serves the concept catalog.
type ConceptsHandler struct {
	metadata repositories.MetadataRepository
	logger   *zap.Logger
}

// NewConceptsHandler creates a new ConceptsHandler.
func NewConceptsHandler(metadata repositories.MetadataRepository, logger *zap.Logger) *ConceptsHandler {
	return &ConceptsHandler{metadata: metadata, logger: logger}
}

// RegisterRoutes registers the concepts handler's routes on the given mux.
func (h *ConceptsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/concepts", h.List)
}

// List handles GET /api/concepts.
func (h *ConceptsHandler) List(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.metadata.ListConcepts(r.Context())
	if err != nil {
		h.logger.Error("Failed to list concepts", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list concepts"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ListConceptsResponse{Concepts: make([]ConceptSummary, 0, len(concepts))}
	for _, c := range concepts {
		versions, err := h.metadata.ListVersions(r.Context(), c.ID)
		if err != nil {
			h.logger.Error("Failed to list versions",
				zap.String("concept", c.Name),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list concept versions"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		response.Concepts = append(response.Concepts, ConceptSummary{Concept: c, Versions: versions})
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
