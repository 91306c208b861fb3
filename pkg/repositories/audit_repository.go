package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// AuditRepository is the append-only audit sink. Each append is a single
// atomic INSERT of one complete record, so concurrent in-flight requests
// cannot interleave partial records. Records are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	GetByAuditID(ctx context.Context, auditID string) (*models.AuditRecord, error)
	List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates an AuditRepository over the given pool.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	requestParamsJSON, err := marshalJSONB(record.RequestParams)
	if err != nil {
		return fmt.Errorf("marshal request_params: %w", err)
	}
	scenarioJSON, err := marshalJSONB(record.ScenarioTags)
	if err != nil {
		return fmt.Errorf("marshal scenario_tags: %w", err)
	}
	boundParamsJSON, err := marshalJSONB(record.BoundParams)
	if err != nil {
		return fmt.Errorf("marshal bound_params: %w", err)
	}
	traceJSON, err := marshalJSONB(record.DecisionTrace)
	if err != nil {
		return fmt.Errorf("marshal decision_trace: %w", err)
	}

	query := `
		INSERT INTO mp_audit_records (
			id, audit_id, concept_hint, request_params, scenario_tags,
			concept_id, concept_name, version_id, version_name,
			logical_definition_id, expression, mapping_id, engine_type, connection_ref,
			rendered_query, bound_params, preview_query, decision_trace,
			subject_role, policy_decision, status, row_count, duration_ms,
			error_kind, error_message, replay_mode, source_audit_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		          $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
		RETURNING created_at`

	err = r.pool.QueryRow(ctx, query,
		record.ID,
		record.AuditID,
		record.ConceptHint,
		requestParamsJSON,
		scenarioJSON,
		record.ConceptID,
		record.ConceptName,
		record.VersionID,
		record.VersionName,
		record.LogicalDefinitionID,
		record.Expression,
		record.MappingID,
		record.EngineType,
		record.ConnectionRef,
		record.RenderedQuery,
		boundParamsJSON,
		record.PreviewQuery,
		traceJSON,
		record.SubjectRole,
		record.PolicyDecision,
		record.Status,
		record.RowCount,
		record.DurationMs,
		record.ErrorKind,
		record.ErrorMessage,
		record.ReplayMode,
		record.SourceAuditID,
		record.ExecutedAt,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	return nil
}

const auditColumns = `id, audit_id, concept_hint, request_params, scenario_tags,
		concept_id, concept_name, version_id, version_name,
		logical_definition_id, expression, mapping_id, engine_type, connection_ref,
		rendered_query, bound_params, preview_query, decision_trace,
		subject_role, policy_decision, status, row_count, duration_ms,
		error_kind, error_message, replay_mode, source_audit_id, executed_at, created_at`

func (r *auditRepository) GetByAuditID(ctx context.Context, auditID string) (*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM mp_audit_records WHERE audit_id = $1`

	rows, err := r.pool.Query(ctx, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("query audit record: %w", err)
	}
	defer rows.Close()

	records, err := scanAuditRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.ErrAuditNotFound
	}
	return records[0], nil
}

func (r *auditRepository) List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditRecord, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filters.SubjectRole != "" {
		conditions = append(conditions, fmt.Sprintf("subject_role = $%d", argIdx))
		args = append(args, filters.SubjectRole)
		argIdx++
	}
	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.ConceptName != "" {
		conditions = append(conditions, fmt.Sprintf("concept_name = $%d", argIdx))
		args = append(args, filters.ConceptName)
		argIdx++
	}

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM mp_audit_records WHERE %s
		ORDER BY executed_at DESC LIMIT $%d`,
		auditColumns, strings.Join(conditions, " AND "), argIdx)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

func scanAuditRecords(rows pgx.Rows) ([]*models.AuditRecord, error) {
	var records []*models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		var requestParamsJSON, scenarioJSON, boundParamsJSON, traceJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.AuditID, &rec.ConceptHint, &requestParamsJSON, &scenarioJSON,
			&rec.ConceptID, &rec.ConceptName, &rec.VersionID, &rec.VersionName,
			&rec.LogicalDefinitionID, &rec.Expression, &rec.MappingID, &rec.EngineType, &rec.ConnectionRef,
			&rec.RenderedQuery, &boundParamsJSON, &rec.PreviewQuery, &traceJSON,
			&rec.SubjectRole, &rec.PolicyDecision, &rec.Status, &rec.RowCount, &rec.DurationMs,
			&rec.ErrorKind, &rec.ErrorMessage, &rec.ReplayMode, &rec.SourceAuditID,
			&rec.ExecutedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if err := unmarshalJSONB(requestParamsJSON, &rec.RequestParams); err != nil {
			return nil, fmt.Errorf("unmarshal request_params: %w", err)
		}
		if err := unmarshalJSONB(scenarioJSON, &rec.ScenarioTags); err != nil {
			return nil, fmt.Errorf("unmarshal scenario_tags: %w", err)
		}
		if err := unmarshalJSONB(boundParamsJSON, &rec.BoundParams); err != nil {
			return nil, fmt.Errorf("unmarshal bound_params: %w", err)
		}
		if err := unmarshalJSONB(traceJSON, &rec.DecisionTrace); err != nil {
			return nil, fmt.Errorf("unmarshal decision_trace: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
