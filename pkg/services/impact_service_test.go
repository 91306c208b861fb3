package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/graph"
	"github.com/lucentdata/metricplane/pkg/models"
)

// impactWorld extends the fixture with a second version of the concept and a
// downstream consumer referencing it.
func impactWorld() *world {
	w := newWorld()

	v2 := &models.ConceptVersion{
		ID:            uuid.New(),
		ConceptID:     w.concept.ID,
		Name:          "fpy_v2",
		EffectiveFrom: testClock,
		Active:        true,
	}
	v2def := &models.LogicalDefinition{
		ID:         uuid.New(),
		VersionID:  v2.ID,
		Expression: "(good_units + reworked_units) / total_units",
		Grain:      []string{"production_line", "shift"},
	}

	consumer := &models.Concept{
		ID:     uuid.New(),
		Name:   "plant_scorecard",
		Status: models.ConceptStatusActive,
	}
	consumerVersion := &models.ConceptVersion{
		ID:            uuid.New(),
		ConceptID:     consumer.ID,
		Name:          "v1",
		EffectiveFrom: testClock,
		Active:        true,
	}
	consumerDef := &models.LogicalDefinition{
		ID:         uuid.New(),
		VersionID:  consumerVersion.ID,
		Expression: "{{metric:first_pass_yield}} * weight",
	}

	w.metadata.concepts = append(w.metadata.concepts, consumer)
	w.metadata.versions = append(w.metadata.versions, v2, consumerVersion)
	w.metadata.definitions[v2.ID] = v2def
	w.metadata.definitions[consumerVersion.ID] = consumerDef
	return w
}

func TestImpactService_Impact(t *testing.T) {
	w := impactWorld()
	svc := NewImpactService(w.metadata, zap.NewNop())

	report, err := svc.Impact(context.Background(), "first_pass_yield", "fpy_v1")
	require.NoError(t, err)

	assert.Equal(t, "first_pass_yield", report.Target.ConceptName)
	assert.Equal(t, 1, report.DownstreamCount)
	assert.Equal(t, []string{"plant_scorecard"}, report.ImpactedConcepts)
}

func TestImpactService_ImpactUnknownConcept(t *testing.T) {
	w := impactWorld()
	svc := NewImpactService(w.metadata, zap.NewNop())

	_, err := svc.Impact(context.Background(), "unknown_metric", "v1")
	assert.ErrorIs(t, err, apperrors.ErrConceptNotFound)
}

func TestImpactService_ImpactUnknownVersion(t *testing.T) {
	w := impactWorld()
	svc := NewImpactService(w.metadata, zap.NewNop())

	_, err := svc.Impact(context.Background(), "first_pass_yield", "fpy_v9")
	assert.ErrorIs(t, err, apperrors.ErrVersionNotFound)
}

func TestImpactService_Diff(t *testing.T) {
	w := impactWorld()
	svc := NewImpactService(w.metadata, zap.NewNop())

	report, err := svc.Diff(context.Background(), "first_pass_yield", "fpy_v1", "fpy_v2")
	require.NoError(t, err)

	assert.Equal(t, "fpy_v1", report.VersionA)
	assert.Equal(t, "fpy_v2", report.VersionB)
	require.NotEmpty(t, report.LogicalChanges)
	assert.Equal(t, "expression", report.LogicalChanges[0].Field)
	assert.Equal(t, graph.RiskHigh, report.Risk, "downstream consumer raises the risk")
	assert.Equal(t, 1, report.ImpactedCount)
}

func TestImpactService_CyclicMetadataFailsClosed(t *testing.T) {
	w := impactWorld()
	// Point the base definition back at the consumer.
	w.def.Expression = "{{metric:plant_scorecard}}"
	svc := NewImpactService(w.metadata, zap.NewNop())

	_, err := svc.Impact(context.Background(), "first_pass_yield", "fpy_v1")

	var cycle *apperrors.CycleDetectedError
	assert.ErrorAs(t, err, &cycle)
}
