//go:build integration

package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/repositories"
	"github.com/lucentdata/metricplane/pkg/testhelpers"
)

// Seed identifiers from the first-pass-yield demo migration.
var (
	seedConceptID = uuid.MustParse("6f1d9c1e-0000-4000-8000-000000000001")
	seedVersionV1 = uuid.MustParse("6f1d9c1e-0000-4000-8000-000000000011")
)

func TestFindConceptsByHint(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewMetadataRepository(db.Pool)
	ctx := context.Background()

	for _, hint := range []string{"first_pass_yield", "FPY", "fpy", "first-pass yield"} {
		concepts, err := repo.FindConceptsByHint(ctx, hint)
		require.NoError(t, err, hint)
		require.Len(t, concepts, 1, hint)
		assert.Equal(t, seedConceptID, concepts[0].ID)
		assert.Equal(t, "first_pass_yield", concepts[0].Name)
	}

	concepts, err := repo.FindConceptsByHint(ctx, "does_not_exist")
	require.NoError(t, err)
	assert.Empty(t, concepts)
}

func TestListVersions(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewMetadataRepository(db.Pool)

	versions, err := repo.ListVersions(context.Background(), seedConceptID)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	byName := map[string]*models.ConceptVersion{}
	for _, v := range versions {
		byName[v.Name] = v
	}
	require.Contains(t, byName, "fpy_v1")
	require.Contains(t, byName, "fpy_v2")
	assert.Empty(t, byName["fpy_v1"].ScenarioCondition)
	assert.Equal(t, map[string]string{"rework": "true"}, byName["fpy_v2"].ScenarioCondition)
	assert.Equal(t, 10, byName["fpy_v2"].Priority)
}

func TestGetLogicalDefinition(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewMetadataRepository(db.Pool)
	ctx := context.Background()

	def, err := repo.GetLogicalDefinition(ctx, seedVersionV1)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "good_units / total_units", def.Expression)
	assert.Equal(t, []string{"production_line", "shift"}, def.Grain)

	missing, err := repo.GetLogicalDefinition(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing, "absent definition is nil, not an error")
}

func TestListPhysicalMappings(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewMetadataRepository(db.Pool)
	ctx := context.Background()

	def, err := repo.GetLogicalDefinition(ctx, seedVersionV1)
	require.NoError(t, err)

	mappings, err := repo.ListPhysicalMappings(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, models.EngineTypePostgres, mappings[0].EngineType)
	assert.Contains(t, mappings[0].Template, "{{from_date}}")
	require.Len(t, mappings[0].Parameters, 2)
}

func TestListPolicies_IncludesWildcard(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewMetadataRepository(db.Pool)

	policies, err := repo.ListPolicies(context.Background(), seedConceptID)
	require.NoError(t, err)

	var sawWildcardDeny bool
	for _, p := range policies {
		if p.ConceptID == nil && p.Role == "contractor" && p.Effect == models.PolicyEffectDeny {
			sawWildcardDeny = true
			assert.Equal(t, 100, p.Priority)
		}
	}
	assert.True(t, sawWildcardDeny, "wildcard contractor deny must apply to every concept")
}

func TestAuditAppendAndGet(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewAuditRepository(db.Pool)
	ctx := context.Background()

	rowCount := 4
	durationMs := int64(12)
	record := &models.AuditRecord{
		AuditID:       "audit-20250601T120000-itest001",
		ConceptHint:   "FPY",
		RequestParams: map[string]any{"from_date": "2025-03-01T00:00:00Z"},
		ScenarioTags:  map[string]string{"rework": "true"},
		ConceptID:     &seedConceptID,
		ConceptName:   "first_pass_yield",
		VersionID:     &seedVersionV1,
		VersionName:   "fpy_v1",
		RenderedQuery: "SELECT 1",
		BoundParams:   []any{"2025-03-01T00:00:00Z"},
		PreviewQuery:  "SELECT 1",
		DecisionTrace: []models.TraceStep{
			{Step: "RESOLVING_CONCEPT", Timestamp: time.Now().UTC()},
		},
		SubjectRole:    "analyst",
		PolicyDecision: "allowed by policy x",
		Status:         models.AuditStatusSuccess,
		RowCount:       &rowCount,
		DurationMs:     &durationMs,
		ExecutedAt:     time.Now().UTC(),
	}

	require.NoError(t, repo.Append(ctx, record))
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	got, err := repo.GetByAuditID(ctx, record.AuditID)
	require.NoError(t, err)
	assert.Equal(t, record.ConceptHint, got.ConceptHint)
	assert.Equal(t, record.ScenarioTags, got.ScenarioTags)
	assert.Equal(t, record.RenderedQuery, got.RenderedQuery)
	assert.Equal(t, record.BoundParams, got.BoundParams)
	require.Len(t, got.DecisionTrace, 1)
	assert.Equal(t, "RESOLVING_CONCEPT", got.DecisionTrace[0].Step)
	require.NotNil(t, got.RowCount)
	assert.Equal(t, rowCount, *got.RowCount)
}

func TestAuditGet_NotFound(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewAuditRepository(db.Pool)

	_, err := repo.GetByAuditID(context.Background(), "audit-nope")
	assert.ErrorIs(t, err, apperrors.ErrAuditNotFound)
}

func TestAuditList_Filters(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := repositories.NewAuditRepository(db.Pool)
	ctx := context.Background()

	for i, status := range []string{models.AuditStatusSuccess, models.AuditStatusDenied} {
		require.NoError(t, repo.Append(ctx, &models.AuditRecord{
			AuditID:     "audit-20250601T120100-filter0" + string(rune('0'+i)),
			ConceptHint: "FPY",
			ConceptName: "first_pass_yield",
			SubjectRole: "auditor",
			Status:      status,
			ExecutedAt:  time.Now().UTC(),
		}))
	}

	denied, err := repo.List(ctx, models.AuditFilters{
		SubjectRole: "auditor",
		Status:      models.AuditStatusDenied,
	})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, models.AuditStatusDenied, denied[0].Status)

	limited, err := repo.List(ctx, models.AuditFilters{SubjectRole: "auditor", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
