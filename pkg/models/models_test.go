package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConceptMatchesHint(t *testing.T) {
	c := &Concept{
		Name:    "first_pass_yield",
		Aliases: []string{"FPY", "first-pass yield"},
	}

	assert.True(t, c.MatchesHint("first_pass_yield"))
	assert.True(t, c.MatchesHint("FIRST_PASS_YIELD"))
	assert.True(t, c.MatchesHint("fpy"))
	assert.True(t, c.MatchesHint("First-Pass Yield"))
	assert.False(t, c.MatchesHint("yield"))
	assert.False(t, c.MatchesHint(""))
}

func TestVersionMatchesScenario(t *testing.T) {
	unconditioned := &ConceptVersion{}
	assert.True(t, unconditioned.MatchesScenario(nil))
	assert.True(t, unconditioned.MatchesScenario(map[string]string{"anything": "goes"}))

	conditioned := &ConceptVersion{
		ScenarioCondition: map[string]string{"rework": "true", "region": "emea"},
	}
	assert.True(t, conditioned.MatchesScenario(map[string]string{
		"rework": "true", "region": "emea", "extra": "ignored",
	}))
	assert.False(t, conditioned.MatchesScenario(map[string]string{"rework": "true"}),
		"partial condition match is no match")
	assert.False(t, conditioned.MatchesScenario(map[string]string{
		"rework": "false", "region": "emea",
	}))
}

func TestMappingParameterByName(t *testing.T) {
	m := &PhysicalMapping{Parameters: []QueryParameter{
		{Name: "from_date", Type: ParamTypeTimestamp, Required: true},
	}}

	p, ok := m.ParameterByName("from_date")
	assert.True(t, ok)
	assert.Equal(t, ParamTypeTimestamp, p.Type)

	_, ok = m.ParameterByName("to_date")
	assert.False(t, ok)
}
