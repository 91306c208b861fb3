package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/repositories"
)

// memAudits is an in-memory audit repository for handler tests.
type memAudits struct {
	records     []*models.AuditRecord
	lastFilters models.AuditFilters
}

var _ repositories.AuditRepository = (*memAudits)(nil)

func (m *memAudits) Append(_ context.Context, record *models.AuditRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memAudits) GetByAuditID(_ context.Context, auditID string) (*models.AuditRecord, error) {
	for _, r := range m.records {
		if r.AuditID == auditID {
			return r, nil
		}
	}
	return nil, apperrors.ErrAuditNotFound
}

func (m *memAudits) List(_ context.Context, filters models.AuditFilters) ([]*models.AuditRecord, error) {
	m.lastFilters = filters
	return m.records, nil
}

func auditsServer(repo repositories.AuditRepository) *http.ServeMux {
	mux := http.NewServeMux()
	NewAuditsHandler(repo, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestAuditsList_EmptyHistoryIsEmptyArray(t *testing.T) {
	mux := auditsServer(&memAudits{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audits", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"audits": []}`, rec.Body.String())
}

func TestAuditsList_QueryFiltersForwarded(t *testing.T) {
	repo := &memAudits{}
	mux := auditsServer(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/audits?role=analyst&status=denied&concept=first_pass_yield&limit=10", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AuditFilters{
		SubjectRole: "analyst",
		Status:      "denied",
		ConceptName: "first_pass_yield",
		Limit:       10,
	}, repo.lastFilters)
}

func TestAuditsList_InvalidLimit(t *testing.T) {
	mux := auditsServer(&memAudits{})

	for _, limit := range []string{"abc", "0", "-5"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audits?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestAuditsGet(t *testing.T) {
	repo := &memAudits{records: []*models.AuditRecord{{
		AuditID:     "audit-20250601T120000-abcd1234",
		ConceptHint: "FPY",
		SubjectRole: "analyst",
		Status:      models.AuditStatusSuccess,
		ExecutedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}}
	mux := auditsServer(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/audits/audit-20250601T120000-abcd1234", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "audit-20250601T120000-abcd1234", got.AuditID)
	assert.Equal(t, models.AuditStatusSuccess, got.Status)
}

func TestAuditsGet_NotFound(t *testing.T) {
	mux := auditsServer(&memAudits{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit-missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}
