package graph

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/lucentdata/metricplane/pkg/models"
)

// Risk tiers for a proposed definition change.
const (
	RiskLow    = "low"    // no structural change
	RiskMedium = "medium" // definition or mapping changed, nothing downstream
	RiskHigh   = "high"   // change with downstream consumers, or both layers changed
)

// FieldChange records one field-level difference between two versions.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// VersionBundle gathers everything diffable about one version.
type VersionBundle struct {
	Version    *models.ConceptVersion
	Definition *models.LogicalDefinition
	Mappings   []*models.PhysicalMapping
}

// DiffReport compares two versions structurally and carries the union of
// their blast radii with a coarse risk classification.
type DiffReport struct {
	ConceptName     string        `json:"concept_name"`
	VersionA        string        `json:"version_a"`
	VersionB        string        `json:"version_b"`
	LogicalChanges  []FieldChange `json:"logical_changes,omitempty"`
	MappingChanges  []FieldChange `json:"mapping_changes,omitempty"`
	ScenarioChanges []FieldChange `json:"scenario_changes,omitempty"`
	BlastRadius     []Node        `json:"blast_radius,omitempty"`
	ImpactedCount   int           `json:"impacted_count"`
	Risk            string        `json:"risk"`
	Actions         []string      `json:"actions"`
}

// Diff reports field-level differences between two versions of the same
// concept plus the union of their downstream blast radii.
func (g *Graph) Diff(conceptName string, a, b VersionBundle) (*DiffReport, error) {
	report := &DiffReport{
		ConceptName: conceptName,
		VersionA:    a.Version.Name,
		VersionB:    b.Version.Name,
	}

	if a.Definition != nil && b.Definition != nil {
		report.LogicalChanges = diffFields([]fieldPair{
			{"expression", a.Definition.Expression, b.Definition.Expression},
			{"grain", a.Definition.Grain, b.Definition.Grain},
			{"variables", a.Definition.Variables, b.Definition.Variables},
		})
	}

	mapA := mappingFingerprint(a.Mappings)
	mapB := mappingFingerprint(b.Mappings)
	report.MappingChanges = diffFields([]fieldPair{
		{"template", mapA.template, mapB.template},
		{"parameters", mapA.params, mapB.params},
		{"engine_type", mapA.engine, mapB.engine},
	})

	report.ScenarioChanges = diffFields([]fieldPair{
		{"scenario_condition", a.Version.ScenarioCondition, b.Version.ScenarioCondition},
		{"priority", a.Version.Priority, b.Version.Priority},
	})

	blast := make(map[string]Node)
	for _, bundle := range []VersionBundle{a, b} {
		impact, err := g.Impact(bundle.Version.ID)
		if err != nil {
			return nil, err
		}
		for _, n := range impact.Downstream {
			blast[n.VersionID.String()] = n
		}
	}
	for _, n := range blast {
		report.BlastRadius = append(report.BlastRadius, n)
	}
	sort.Slice(report.BlastRadius, func(i, j int) bool {
		return report.BlastRadius[i].String() < report.BlastRadius[j].String()
	})
	report.ImpactedCount = len(report.BlastRadius)

	report.Risk = classifyRisk(report)
	report.Actions = suggestedActions(report.Risk)
	return report, nil
}

type fieldPair struct {
	name string
	old  any
	new  any
}

func diffFields(pairs []fieldPair) []FieldChange {
	var changes []FieldChange
	for _, p := range pairs {
		if !reflect.DeepEqual(p.old, p.new) {
			changes = append(changes, FieldChange{Field: p.name, Old: p.old, New: p.new})
		}
	}
	return changes
}

type fingerprint struct {
	template string
	params   string
	engine   string
}

// mappingFingerprint collapses a version's mappings into comparable strings,
// ordered by engine then priority so the comparison is stable.
func mappingFingerprint(mappings []*models.PhysicalMapping) fingerprint {
	sorted := append([]*models.PhysicalMapping{}, mappings...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EngineType != sorted[j].EngineType {
			return sorted[i].EngineType < sorted[j].EngineType
		}
		return sorted[i].Priority > sorted[j].Priority
	})

	var templates, params, engines []string
	for _, m := range sorted {
		templates = append(templates, m.Template)
		engines = append(engines, m.EngineType)
		var decls []string
		for _, p := range m.Parameters {
			decls = append(decls, p.Name+":"+p.Type)
		}
		sort.Strings(decls)
		params = append(params, strings.Join(decls, ","))
	}
	return fingerprint{
		template: strings.Join(templates, "\n--\n"),
		params:   strings.Join(params, ";"),
		engine:   strings.Join(engines, ","),
	}
}

func classifyRisk(r *DiffReport) string {
	logicalChanged := len(r.LogicalChanges) > 0
	mappingChanged := len(r.MappingChanges) > 0
	scenarioChanged := len(r.ScenarioChanges) > 0

	if !logicalChanged && !mappingChanged && !scenarioChanged {
		return RiskLow
	}
	if (logicalChanged && mappingChanged) || r.ImpactedCount > 0 {
		return RiskHigh
	}
	return RiskMedium
}

func suggestedActions(risk string) []string {
	switch risk {
	case RiskHigh:
		return []string{
			"business owner approval required",
			"prepare rollback plan",
			"run shadow queries against downstream concepts",
		}
	case RiskMedium:
		return []string{
			"data owner approval required",
			"run regression queries",
		}
	default:
		return []string{"safe to release"}
	}
}

// Markdown renders the report for review threads and approval packages.
func (r *DiffReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Impact Report: %s\n\n", r.ConceptName)
	fmt.Fprintf(&b, "- Version A: %s\n- Version B: %s\n- Risk: %s\n", r.VersionA, r.VersionB, r.Risk)
	fmt.Fprintf(&b, "- Downstream concepts impacted: %d\n\n", r.ImpactedCount)

	writeChanges := func(title string, changes []FieldChange) {
		if len(changes) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n", title)
		for _, c := range changes {
			fmt.Fprintf(&b, "- %s: `%v` -> `%v`\n", c.Field, c.Old, c.New)
		}
		b.WriteString("\n")
	}
	writeChanges("Logical Changes", r.LogicalChanges)
	writeChanges("Mapping Changes", r.MappingChanges)
	writeChanges("Scenario Changes", r.ScenarioChanges)

	if len(r.BlastRadius) > 0 {
		b.WriteString("## Blast Radius\n")
		for _, n := range r.BlastRadius {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommended Actions\n")
	for _, a := range r.Actions {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	return b.String()
}
