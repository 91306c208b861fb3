package sqltemplate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

func mappingFor(engineType string, priority int) *models.PhysicalMapping {
	return &models.PhysicalMapping{
		ID:         uuid.New(),
		EngineType: engineType,
		Priority:   priority,
	}
}

func TestSelectMapping_FiltersByEngineType(t *testing.T) {
	pg := mappingFor(models.EngineTypePostgres, 0)
	ms := mappingFor(models.EngineTypeMSSQL, 10)

	selected, err := SelectMapping([]*models.PhysicalMapping{pg, ms}, models.EngineTypePostgres)
	require.NoError(t, err)
	assert.Equal(t, pg.ID, selected.ID, "higher-priority mapping for another engine is ignored")
}

func TestSelectMapping_HighestPriorityWins(t *testing.T) {
	low := mappingFor(models.EngineTypePostgres, 1)
	high := mappingFor(models.EngineTypePostgres, 5)

	selected, err := SelectMapping([]*models.PhysicalMapping{low, high}, models.EngineTypePostgres)
	require.NoError(t, err)
	assert.Equal(t, high.ID, selected.ID)
}

func TestSelectMapping_NoMatchForEngine(t *testing.T) {
	pg := mappingFor(models.EngineTypePostgres, 0)

	_, err := SelectMapping([]*models.PhysicalMapping{pg}, models.EngineTypeMSSQL)
	assert.ErrorIs(t, err, apperrors.ErrMappingNotFound)
}

func TestSelectMapping_PriorityTieFailsClosed(t *testing.T) {
	a := mappingFor(models.EngineTypePostgres, 5)
	b := mappingFor(models.EngineTypePostgres, 5)

	_, err := SelectMapping([]*models.PhysicalMapping{a, b}, models.EngineTypePostgres)

	var ambiguity *apperrors.AmbiguityError
	require.ErrorAs(t, err, &ambiguity)
	assert.Equal(t, "mapping", ambiguity.Subject)
	assert.Len(t, ambiguity.Candidates, 2)
}

func TestSelectMapping_EmptyEngineTypeAcceptsAny(t *testing.T) {
	ms := mappingFor(models.EngineTypeMSSQL, 3)

	selected, err := SelectMapping([]*models.PhysicalMapping{ms}, "")
	require.NoError(t, err)
	assert.Equal(t, ms.ID, selected.ID)
}
