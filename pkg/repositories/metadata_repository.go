// Package repositories provides data access over the metadata store and the
// audit sink. Metadata access is strictly read-only from the pipeline's
// perspective; the audit sink is append-only.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucentdata/metricplane/pkg/models"
)

// MetadataRepository reads the five governed entity collections. The
// pipeline never mutates them.
type MetadataRepository interface {
	// FindConceptsByHint returns active concepts whose name or alias equals
	// hint, case-insensitively. Ambiguity handling is the caller's job.
	FindConceptsByHint(ctx context.Context, hint string) ([]*models.Concept, error)
	ListConcepts(ctx context.Context) ([]*models.Concept, error)
	ListVersions(ctx context.Context, conceptID uuid.UUID) ([]*models.ConceptVersion, error)
	ListAllVersions(ctx context.Context) ([]*models.ConceptVersion, error)
	GetLogicalDefinition(ctx context.Context, versionID uuid.UUID) (*models.LogicalDefinition, error)
	ListAllDefinitions(ctx context.Context) ([]*models.LogicalDefinition, error)
	ListPhysicalMappings(ctx context.Context, logicalDefinitionID uuid.UUID) ([]*models.PhysicalMapping, error)
	ListPolicies(ctx context.Context, conceptID uuid.UUID) ([]*models.AccessPolicy, error)
	ListDependencies(ctx context.Context) ([]*models.DependencyEdge, error)
}

type metadataRepository struct {
	pool *pgxpool.Pool
}

// NewMetadataRepository creates a MetadataRepository over the given pool.
func NewMetadataRepository(pool *pgxpool.Pool) MetadataRepository {
	return &metadataRepository{pool: pool}
}

var _ MetadataRepository = (*metadataRepository)(nil)

const conceptColumns = `id, name, description, aliases, domain, status, created_at, updated_at`

func (r *metadataRepository) FindConceptsByHint(ctx context.Context, hint string) ([]*models.Concept, error) {
	query := `
		SELECT ` + conceptColumns + `
		FROM mp_concepts
		WHERE status = 'active'
		  AND (lower(name) = lower($1)
		       OR EXISTS (
		           SELECT 1 FROM jsonb_array_elements_text(aliases) alias
		           WHERE lower(alias) = lower($1)))
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, hint)
	if err != nil {
		return nil, fmt.Errorf("query concepts by hint: %w", err)
	}
	defer rows.Close()
	return scanConcepts(rows)
}

func (r *metadataRepository) ListConcepts(ctx context.Context) ([]*models.Concept, error) {
	query := `SELECT ` + conceptColumns + ` FROM mp_concepts ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()
	return scanConcepts(rows)
}

func scanConcepts(rows pgx.Rows) ([]*models.Concept, error) {
	var concepts []*models.Concept
	for rows.Next() {
		var c models.Concept
		var aliasesJSON []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &aliasesJSON,
			&c.Domain, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		if err := unmarshalJSONB(aliasesJSON, &c.Aliases); err != nil {
			return nil, fmt.Errorf("unmarshal concept aliases: %w", err)
		}
		concepts = append(concepts, &c)
	}
	return concepts, rows.Err()
}

const versionColumns = `id, concept_id, name, effective_from, effective_to,
		scenario_condition, priority, active, description, created_at`

func (r *metadataRepository) ListVersions(ctx context.Context, conceptID uuid.UUID) ([]*models.ConceptVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM mp_concept_versions WHERE concept_id = $1 ORDER BY effective_from, name`

	rows, err := r.pool.Query(ctx, query, conceptID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

func (r *metadataRepository) ListAllVersions(ctx context.Context) ([]*models.ConceptVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM mp_concept_versions ORDER BY concept_id, effective_from`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

func scanVersions(rows pgx.Rows) ([]*models.ConceptVersion, error) {
	var versions []*models.ConceptVersion
	for rows.Next() {
		var v models.ConceptVersion
		var scenarioJSON []byte
		if err := rows.Scan(&v.ID, &v.ConceptID, &v.Name, &v.EffectiveFrom, &v.EffectiveTo,
			&scenarioJSON, &v.Priority, &v.Active, &v.Description, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		if err := unmarshalJSONB(scenarioJSON, &v.ScenarioCondition); err != nil {
			return nil, fmt.Errorf("unmarshal scenario condition: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

const definitionColumns = `id, version_id, expression, grain, variables, description, created_at`

func (r *metadataRepository) GetLogicalDefinition(ctx context.Context, versionID uuid.UUID) (*models.LogicalDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM mp_logical_definitions WHERE version_id = $1`

	var d models.LogicalDefinition
	var grainJSON, variablesJSON []byte
	err := r.pool.QueryRow(ctx, query, versionID).Scan(
		&d.ID, &d.VersionID, &d.Expression, &grainJSON, &variablesJSON, &d.Description, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query logical definition: %w", err)
	}
	if err := unmarshalJSONB(grainJSON, &d.Grain); err != nil {
		return nil, fmt.Errorf("unmarshal grain: %w", err)
	}
	if err := unmarshalJSONB(variablesJSON, &d.Variables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	return &d, nil
}

func (r *metadataRepository) ListAllDefinitions(ctx context.Context) ([]*models.LogicalDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM mp_logical_definitions ORDER BY version_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query logical definitions: %w", err)
	}
	defer rows.Close()

	var defs []*models.LogicalDefinition
	for rows.Next() {
		var d models.LogicalDefinition
		var grainJSON, variablesJSON []byte
		if err := rows.Scan(&d.ID, &d.VersionID, &d.Expression, &grainJSON,
			&variablesJSON, &d.Description, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan logical definition: %w", err)
		}
		if err := unmarshalJSONB(grainJSON, &d.Grain); err != nil {
			return nil, fmt.Errorf("unmarshal grain: %w", err)
		}
		if err := unmarshalJSONB(variablesJSON, &d.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
		defs = append(defs, &d)
	}
	return defs, rows.Err()
}

func (r *metadataRepository) ListPhysicalMappings(ctx context.Context, logicalDefinitionID uuid.UUID) ([]*models.PhysicalMapping, error) {
	query := `
		SELECT id, logical_definition_id, engine_type, connection_ref,
		       template, parameters, priority, description, created_at
		FROM mp_physical_mappings
		WHERE logical_definition_id = $1
		ORDER BY priority DESC, engine_type`

	rows, err := r.pool.Query(ctx, query, logicalDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("query physical mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.PhysicalMapping
	for rows.Next() {
		var m models.PhysicalMapping
		var paramsJSON []byte
		if err := rows.Scan(&m.ID, &m.LogicalDefinitionID, &m.EngineType, &m.ConnectionRef,
			&m.Template, &paramsJSON, &m.Priority, &m.Description, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan physical mapping: %w", err)
		}
		if err := unmarshalJSONB(paramsJSON, &m.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal mapping parameters: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

func (r *metadataRepository) ListPolicies(ctx context.Context, conceptID uuid.UUID) ([]*models.AccessPolicy, error) {
	// Wildcard policies (concept_id IS NULL) apply to every concept.
	query := `
		SELECT id, concept_id, role, action, condition, effect, priority, created_at
		FROM mp_access_policies
		WHERE concept_id = $1 OR concept_id IS NULL
		ORDER BY priority DESC, id`

	rows, err := r.pool.Query(ctx, query, conceptID)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.AccessPolicy
	for rows.Next() {
		var p models.AccessPolicy
		var conditionJSON []byte
		if err := rows.Scan(&p.ID, &p.ConceptID, &p.Role, &p.Action,
			&conditionJSON, &p.Effect, &p.Priority, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if err := unmarshalJSONB(conditionJSON, &p.Condition); err != nil {
			return nil, fmt.Errorf("unmarshal policy condition: %w", err)
		}
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

func (r *metadataRepository) ListDependencies(ctx context.Context) ([]*models.DependencyEdge, error) {
	query := `
		SELECT id, upstream_concept_id, downstream_concept_id,
		       upstream_version_id, downstream_version_id, kind, description, created_at
		FROM mp_concept_dependencies
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*models.DependencyEdge
	for rows.Next() {
		var d models.DependencyEdge
		if err := rows.Scan(&d.ID, &d.UpstreamConceptID, &d.DownstreamConceptID,
			&d.UpstreamVersionID, &d.DownstreamVersionID, &d.Kind, &d.Description, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, &d)
	}
	return deps, rows.Err()
}

// unmarshalJSONB decodes a nullable jsonb column into dst, leaving dst zero
// for NULL.
func unmarshalJSONB(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// marshalJSONB encodes a value for a nullable jsonb column, mapping zero
// values to NULL.
func marshalJSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
