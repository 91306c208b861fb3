package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/graph"
	"github.com/lucentdata/metricplane/pkg/services"
)

// stubImpact returns canned reports.
type stubImpact struct {
	impactReport *graph.ImpactReport
	diffReport   *graph.DiffReport
	err          error
}

var _ services.ImpactService = (*stubImpact)(nil)

func (s *stubImpact) Impact(context.Context, string, string) (*graph.ImpactReport, error) {
	return s.impactReport, s.err
}

func (s *stubImpact) Diff(context.Context, string, string, string) (*graph.DiffReport, error) {
	return s.diffReport, s.err
}

func impactServer(svc services.ImpactService) *http.ServeMux {
	mux := http.NewServeMux()
	NewImpactHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestImpactEndpoint(t *testing.T) {
	mux := impactServer(&stubImpact{impactReport: &graph.ImpactReport{
		Target:           graph.Node{ConceptName: "first_pass_yield", VersionName: "fpy_v1"},
		ImpactedConcepts: []string{"plant_scorecard"},
		DownstreamCount:  1,
	}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/impact?concept=first_pass_yield&version=fpy_v1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plant_scorecard")
}

func TestImpactEndpoint_MissingParams(t *testing.T) {
	mux := impactServer(&stubImpact{})

	for _, target := range []string{"/api/impact", "/api/impact?concept=x", "/api/impact?version=y"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestImpactEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown concept", apperrors.ErrConceptNotFound, http.StatusNotFound},
		{"cyclic metadata", &apperrors.CycleDetectedError{Cycle: []string{"a@v1", "b@v1", "a@v1"}}, http.StatusConflict},
		{"internal", errors.New("pool exhausted"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := impactServer(&stubImpact{err: tt.err})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
				"/api/impact?concept=x&version=y", nil))

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "pool exhausted",
					"internal detail is not leaked")
			}
		})
	}
}

func TestDiffEndpoint_JSON(t *testing.T) {
	mux := impactServer(&stubImpact{diffReport: &graph.DiffReport{
		ConceptName: "first_pass_yield",
		VersionA:    "fpy_v1",
		VersionB:    "fpy_v2",
		Risk:        graph.RiskMedium,
		Actions:     []string{"data owner approval required"},
	}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/diff?concept=first_pass_yield&from=fpy_v1&to=fpy_v2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"risk":"medium"`)
}

func TestDiffEndpoint_MarkdownFormat(t *testing.T) {
	mux := impactServer(&stubImpact{diffReport: &graph.DiffReport{
		ConceptName: "first_pass_yield",
		VersionA:    "fpy_v1",
		VersionB:    "fpy_v2",
		Risk:        graph.RiskLow,
		Actions:     []string{"safe to release"},
	}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/diff?concept=first_pass_yield&from=fpy_v1&to=fpy_v2&format=markdown", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# Impact Report: first_pass_yield")
}

func TestDiffEndpoint_MissingParams(t *testing.T) {
	mux := impactServer(&stubImpact{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diff?concept=x&from=a", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
