package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// Replay re-executes the exact rendered query and bound parameters captured
// in a prior successful audit record. No stage of the pipeline is re-run:
// replay answers "what did that execution return", not "what would it
// resolve to today". The replay itself produces a new audit record that
// points back at the original.
//
// A missing or non-replayable record is returned as an error; execution
// failures are reported inside the response like Resolve does.
func (o *Orchestrator) Replay(ctx context.Context, sourceAuditID string) (*models.ResolveResponse, error) {
	original, err := o.audits.GetByAuditID(ctx, sourceAuditID)
	if err != nil {
		return nil, fmt.Errorf("load audit record %q: %w", sourceAuditID, err)
	}
	if original.Status != models.AuditStatusSuccess {
		return nil, &apperrors.InvalidParameterError{
			Parameter: "audit_id",
			Reason:    fmt.Sprintf("only successful executions are replayable, record has status %q", original.Status),
		}
	}
	if original.RenderedQuery == "" {
		return nil, &apperrors.InvalidParameterError{
			Parameter: "audit_id",
			Reason:    "record carries no rendered query",
		}
	}

	auditID := o.newAuditID()
	r := &run{
		o: o,
		record: &models.AuditRecord{
			AuditID:             auditID,
			ConceptHint:         original.ConceptHint,
			RequestParams:       original.RequestParams,
			ScenarioTags:        original.ScenarioTags,
			ConceptID:           original.ConceptID,
			ConceptName:         original.ConceptName,
			VersionID:           original.VersionID,
			VersionName:         original.VersionName,
			LogicalDefinitionID: original.LogicalDefinitionID,
			Expression:          original.Expression,
			MappingID:           original.MappingID,
			EngineType:          original.EngineType,
			ConnectionRef:       original.ConnectionRef,
			RenderedQuery:       original.RenderedQuery,
			BoundParams:         original.BoundParams,
			PreviewQuery:        original.PreviewQuery,
			SubjectRole:         original.SubjectRole,
			PolicyDecision:      original.PolicyDecision,
			ReplayMode:          true,
			SourceAuditID:       original.AuditID,
			ExecutedAt:          o.now().UTC(),
		},
		response: &models.ResolveResponse{
			AuditID:         auditID,
			ResolvedConcept: original.ConceptName,
			ResolvedVersion: original.VersionName,
			RenderedQuery:   original.RenderedQuery,
			PreviewQuery:    original.PreviewQuery,
			ReplayMode:      true,
			SourceAuditID:   original.AuditID,
		},
	}

	o.logger.Info("Replaying audited execution",
		zap.String("audit_id", auditID),
		zap.String("source_audit_id", original.AuditID),
		zap.String("engine_type", original.EngineType))

	r.trace("replay_started", map[string]any{
		"source_audit_id": original.AuditID,
		"engine_type":     original.EngineType,
	})

	if err := o.replayExecute(ctx, r, original); err != nil {
		return o.finishFailure(ctx, r, err)
	}
	return o.finishSuccess(ctx, r)
}

func (o *Orchestrator) replayExecute(ctx context.Context, r *run, original *models.AuditRecord) error {
	r.trace(StateExecuting, map[string]any{"engine_type": original.EngineType})
	eng, err := o.engines.Get(original.EngineType)
	if err != nil {
		return &apperrors.ExecutionError{Engine: original.EngineType, Err: err}
	}

	start := o.now()
	result, err := eng.Execute(ctx, original.RenderedQuery, original.BoundParams)
	durationMs := o.now().Sub(start).Milliseconds()
	r.record.DurationMs = &durationMs
	if err != nil {
		return &apperrors.ExecutionError{Engine: original.EngineType, Err: err}
	}

	r.record.RowCount = &result.RowCount
	r.record.Status = models.AuditStatusSuccess
	r.response.Status = models.AuditStatusSuccess
	r.response.Data = result.Rows
	r.response.RowCount = result.RowCount
	r.response.DurationMs = durationMs
	r.trace("executed", map[string]any{
		"row_count":   result.RowCount,
		"duration_ms": durationMs,
	})
	return nil
}
