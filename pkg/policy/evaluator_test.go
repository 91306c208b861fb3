package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentdata/metricplane/pkg/models"
)

func pol(conceptID *uuid.UUID, role, action, effect string, priority int, condition map[string]string) *models.AccessPolicy {
	return &models.AccessPolicy{
		ID:        uuid.New(),
		ConceptID: conceptID,
		Role:      role,
		Action:    action,
		Condition: condition,
		Effect:    effect,
		Priority:  priority,
	}
}

func TestEvaluate_DefaultDeny(t *testing.T) {
	conceptID := uuid.New()

	d := Evaluate(nil, conceptID, models.Subject{Role: "analyst"}, models.PolicyActionQuery)
	assert.False(t, d.Allowed)
	assert.Equal(t, "no applicable policy - default deny", d.Reason)
	assert.Nil(t, d.PolicyID)
}

func TestEvaluate_RoleAndActionMustMatch(t *testing.T) {
	conceptID := uuid.New()
	policies := []*models.AccessPolicy{
		pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectAllow, 0, nil),
	}

	d := Evaluate(policies, conceptID, models.Subject{Role: "analyst"}, models.PolicyActionQuery)
	assert.True(t, d.Allowed)

	d = Evaluate(policies, conceptID, models.Subject{Role: "viewer"}, models.PolicyActionQuery)
	assert.False(t, d.Allowed, "other role has no policy")

	d = Evaluate(policies, conceptID, models.Subject{Role: "analyst"}, models.PolicyActionExport)
	assert.False(t, d.Allowed, "other action has no policy")
}

func TestEvaluate_WildcardConceptApplies(t *testing.T) {
	conceptID := uuid.New()
	policies := []*models.AccessPolicy{
		pol(nil, "contractor", models.PolicyActionQuery, models.PolicyEffectDeny, 100, nil),
		pol(&conceptID, "contractor", models.PolicyActionQuery, models.PolicyEffectAllow, 0, nil),
	}

	d := Evaluate(policies, conceptID, models.Subject{Role: "contractor"}, models.PolicyActionQuery)
	assert.False(t, d.Allowed, "higher-priority wildcard deny wins")
}

func TestEvaluate_HigherPriorityWins(t *testing.T) {
	conceptID := uuid.New()
	policies := []*models.AccessPolicy{
		pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectDeny, 1, nil),
		pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectAllow, 10, nil),
	}

	d := Evaluate(policies, conceptID, models.Subject{Role: "analyst"}, models.PolicyActionQuery)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.MatchedCount)
}

func TestEvaluate_DenyDominatesAllowAtEqualPriority(t *testing.T) {
	conceptID := uuid.New()
	allow := pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectAllow, 5, nil)
	deny := pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectDeny, 5, nil)

	// Outcome must not depend on input order.
	for _, policies := range [][]*models.AccessPolicy{
		{allow, deny},
		{deny, allow},
	} {
		d := Evaluate(policies, conceptID, models.Subject{Role: "analyst"}, models.PolicyActionQuery)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "deny dominates allow at equal priority")
		require.NotNil(t, d.PolicyID)
		assert.Equal(t, deny.ID, *d.PolicyID)
	}
}

func TestEvaluate_ConditionFiltersBySubjectAttributes(t *testing.T) {
	conceptID := uuid.New()
	policies := []*models.AccessPolicy{
		pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectAllow, 0,
			map[string]string{"department": "quality"}),
	}

	d := Evaluate(policies, conceptID,
		models.Subject{Role: "analyst", Attributes: map[string]string{"department": "quality"}},
		models.PolicyActionQuery)
	assert.True(t, d.Allowed)

	d = Evaluate(policies, conceptID,
		models.Subject{Role: "analyst", Attributes: map[string]string{"department": "sales"}},
		models.PolicyActionQuery)
	assert.False(t, d.Allowed, "condition mismatch falls through to default deny")
}

func TestEvaluate_Deterministic(t *testing.T) {
	conceptID := uuid.New()
	policies := []*models.AccessPolicy{
		pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectAllow, 5, nil),
		pol(&conceptID, "analyst", models.PolicyActionQuery, models.PolicyEffectDeny, 5, nil),
		pol(nil, "analyst", models.PolicyActionQuery, models.PolicyEffectAllow, 1, nil),
	}
	subject := models.Subject{Role: "analyst"}

	first := Evaluate(policies, conceptID, subject, models.PolicyActionQuery)
	for i := 0; i < 20; i++ {
		again := Evaluate(policies, conceptID, subject, models.PolicyActionQuery)
		assert.Equal(t, first, again)
	}
}
