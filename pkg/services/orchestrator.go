// Package services coordinates the resolution pipeline: concept and version
// resolution, grain validation, policy evaluation, template rendering, query
// execution, and audit persistence.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/audit"
	"github.com/lucentdata/metricplane/pkg/engine"
	"github.com/lucentdata/metricplane/pkg/logging"
	"github.com/lucentdata/metricplane/pkg/models"
	"github.com/lucentdata/metricplane/pkg/policy"
	"github.com/lucentdata/metricplane/pkg/repositories"
	"github.com/lucentdata/metricplane/pkg/resolver"
	"github.com/lucentdata/metricplane/pkg/sqltemplate"
)

// Pipeline states, recorded in the decision trail as each stage begins.
const (
	StateResolvingConcept = "RESOLVING_CONCEPT"
	StateResolvingVersion = "RESOLVING_VERSION"
	StateResolvingLogic   = "RESOLVING_LOGIC"
	StateValidatingGrain  = "VALIDATING_GRAIN"
	StateResolvingMapping = "RESOLVING_MAPPING"
	StateEvaluatingPolicy = "EVALUATING_POLICY"
	StateRendering        = "RENDERING"
	StateExecuting        = "EXECUTING"
	StateAuditing         = "AUDITING"
)

// Orchestrator drives a resolve request through every pipeline stage in
// order. Every terminal outcome, success or failure, produces exactly one
// audit record; only a failure to write that record is reported as an error
// from Resolve itself.
type Orchestrator struct {
	metadata repositories.MetadataRepository
	audits   repositories.AuditRepository
	engines  *engine.Registry
	logger   *zap.Logger
	secaudit *audit.SecurityAuditor

	defaultEngine string
	grainPolicy   resolver.GrainPolicy

	now        func() time.Time
	newAuditID func() string
}

// OrchestratorOption customizes orchestrator construction.
type OrchestratorOption func(*Orchestrator)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithAuditIDGenerator replaces audit identifier generation.
func WithAuditIDGenerator(gen func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newAuditID = gen }
}

// WithGrainPolicy sets the dimension validation policy.
func WithGrainPolicy(p resolver.GrainPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.grainPolicy = p }
}

// WithDefaultEngine sets the engine used when a request does not name one.
func WithDefaultEngine(engineType string) OrchestratorOption {
	return func(o *Orchestrator) { o.defaultEngine = engineType }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	metadata repositories.MetadataRepository,
	audits repositories.AuditRepository,
	engines *engine.Registry,
	logger *zap.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		metadata:      metadata,
		audits:        audits,
		engines:       engines,
		logger:        logger.Named("orchestrator"),
		secaudit:      audit.NewSecurityAuditor(logger),
		defaultEngine: models.EngineTypePostgres,
		grainPolicy:   resolver.GrainPolicySubset,
		now:           time.Now,
		newAuditID:    defaultAuditID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// defaultAuditID produces sortable, globally unique audit identifiers.
func defaultAuditID() string {
	return fmt.Sprintf("audit-%s-%s",
		time.Now().UTC().Format("20060102T150405"),
		uuid.New().String()[:8])
}

// run accumulates the decision trail and the audit record for one request.
type run struct {
	o        *Orchestrator
	trail    []models.TraceStep
	record   *models.AuditRecord
	response *models.ResolveResponse
}

func (r *run) trace(step string, payload map[string]any) {
	r.trail = append(r.trail, models.TraceStep{
		Step:      step,
		Timestamp: r.o.now().UTC(),
		Payload:   payload,
	})
}

// Resolve executes the full pipeline for req. Pipeline failures (not found,
// ambiguity, grain mismatch, policy denial, execution errors) are reported
// inside the response with a populated Error and an audit record behind
// them; the returned error is non-nil only when the audit record itself
// could not be persisted.
func (o *Orchestrator) Resolve(ctx context.Context, req *models.ResolveRequest) (*models.ResolveResponse, error) {
	auditID := o.newAuditID()
	at := req.EffectiveAt(o.now().UTC())

	r := &run{
		o: o,
		record: &models.AuditRecord{
			AuditID:       auditID,
			ConceptHint:   req.ConceptHint,
			RequestParams: req.Parameters,
			ScenarioTags:  req.ScenarioTags,
			SubjectRole:   req.Subject.Role,
			ExecutedAt:    o.now().UTC(),
		},
		response: &models.ResolveResponse{AuditID: auditID},
	}

	o.logger.Info("Resolving request",
		zap.String("audit_id", auditID),
		zap.String("concept_hint", req.ConceptHint),
		zap.String("subject_role", req.Subject.Role),
		zap.Time("effective_at", at),
		zap.Bool("preview_only", req.PreviewOnly))

	if err := o.resolve(ctx, req, r, at); err != nil {
		return o.finishFailure(ctx, r, err)
	}
	return o.finishSuccess(ctx, r)
}

// resolve walks the pipeline stages. It returns the first failure; the run
// carries whatever state had been established by then, so the audit record
// shows exactly how far the request got.
func (o *Orchestrator) resolve(ctx context.Context, req *models.ResolveRequest, r *run, at time.Time) error {
	// Stage 1: concept resolution. Name and alias matches are equal-rank;
	// more than one active match is ambiguous and fails closed.
	r.trace(StateResolvingConcept, map[string]any{"hint": req.ConceptHint})
	concept, err := o.resolveConcept(ctx, req.ConceptHint)
	if err != nil {
		return err
	}
	r.record.ConceptID = &concept.ID
	r.record.ConceptName = concept.Name
	r.response.ResolvedConcept = concept.Name
	r.trace("concept_resolved", map[string]any{
		"concept_id": concept.ID.String(),
		"name":       concept.Name,
	})

	// Stage 2: version selection at the effective instant.
	r.trace(StateResolvingVersion, map[string]any{
		"effective_at":  at.Format(time.RFC3339),
		"scenario_tags": req.ScenarioTags,
	})
	versions, err := o.metadata.ListVersions(ctx, concept.ID)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	selection, err := resolver.ResolveVersion(versions, at, req.ScenarioTags)
	if selection != nil {
		r.trace("version_scoring", scoringPayload(selection))
	}
	if err != nil {
		return err
	}
	version := selection.Version
	r.record.VersionID = &version.ID
	r.record.VersionName = version.Name
	r.response.ResolvedVersion = version.Name
	r.trace("version_resolved", map[string]any{
		"version_id": version.ID.String(),
		"name":       version.Name,
		"score":      selection.Score,
		"reason":     selection.Reason,
	})

	// Stage 3: logical definition.
	r.trace(StateResolvingLogic, map[string]any{"version_id": version.ID.String()})
	def, err := o.metadata.GetLogicalDefinition(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("get logical definition: %w", err)
	}
	if def == nil {
		return fmt.Errorf("version %q: %w", version.Name, apperrors.ErrDefinitionNotFound)
	}
	r.record.LogicalDefinitionID = &def.ID
	r.record.Expression = def.Expression
	r.trace("logic_resolved", map[string]any{
		"expression": def.Expression,
		"grain":      def.Grain,
	})

	// Stage 4: grain validation.
	r.trace(StateValidatingGrain, map[string]any{"requested_dimensions": req.Dimensions})
	if err := resolver.ValidateGrain(def, req.Dimensions, o.grainPolicy); err != nil {
		return err
	}
	r.trace("grain_validated", map[string]any{"policy": string(o.grainPolicy)})

	// Stage 5: physical mapping selection.
	engineType := req.EngineType
	if engineType == "" {
		engineType = o.defaultEngine
	}
	r.trace(StateResolvingMapping, map[string]any{"engine_type": engineType})
	mappings, err := o.metadata.ListPhysicalMappings(ctx, def.ID)
	if err != nil {
		return fmt.Errorf("list physical mappings: %w", err)
	}
	mapping, err := sqltemplate.SelectMapping(mappings, engineType)
	if err != nil {
		return err
	}
	r.record.MappingID = &mapping.ID
	r.record.EngineType = mapping.EngineType
	r.record.ConnectionRef = mapping.ConnectionRef
	r.trace("mapping_resolved", map[string]any{
		"mapping_id":     mapping.ID.String(),
		"engine_type":    mapping.EngineType,
		"connection_ref": mapping.ConnectionRef,
	})

	// Stage 6: policy evaluation. Deny dominates; no applicable policy
	// means deny.
	r.trace(StateEvaluatingPolicy, map[string]any{
		"role":   req.Subject.Role,
		"action": models.PolicyActionQuery,
	})
	policies, err := o.metadata.ListPolicies(ctx, concept.ID)
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}
	decision := policy.Evaluate(policies, concept.ID, req.Subject, models.PolicyActionQuery)
	r.record.PolicyDecision = decision.Reason
	r.trace("policy_evaluated", map[string]any{
		"allowed":       decision.Allowed,
		"reason":        decision.Reason,
		"matched_count": decision.MatchedCount,
	})
	if !decision.Allowed {
		return &apperrors.PolicyDeniedError{Reason: decision.Reason}
	}

	// Stage 7: template rendering with injection screening.
	r.trace(StateRendering, map[string]any{"mapping_id": mapping.ID.String()})
	rendered, err := sqltemplate.Render(mapping, req.Parameters)
	if err != nil {
		return err
	}
	r.record.RenderedQuery = rendered.Query
	r.record.BoundParams = rendered.Params
	r.record.PreviewQuery = rendered.Preview
	r.response.RenderedQuery = rendered.Query
	r.response.PreviewQuery = rendered.Preview
	r.trace("rendered", map[string]any{
		"query":       rendered.Query,
		"param_count": len(rendered.Params),
	})
	o.logger.Debug("Rendered query",
		zap.String("query", logging.SanitizeQuery(rendered.Query)),
		zap.Int("param_count", len(rendered.Params)))

	// Stage 8: execution, skipped in preview mode.
	if req.PreviewOnly {
		r.record.Status = models.AuditStatusPreview
		r.response.Status = models.AuditStatusPreview
		r.trace("preview_only", nil)
		return nil
	}

	r.trace(StateExecuting, map[string]any{"engine_type": mapping.EngineType})
	eng, err := o.engines.Get(mapping.EngineType)
	if err != nil {
		return &apperrors.ExecutionError{Engine: mapping.EngineType, Err: err}
	}
	// One call per request: the pipeline never retries a failed execution,
	// it reports the failure. Transient-failure handling lives inside the
	// engine adapters.
	start := o.now()
	result, err := eng.Execute(ctx, rendered.Query, rendered.Params)
	durationMs := o.now().Sub(start).Milliseconds()
	r.record.DurationMs = &durationMs
	if err != nil {
		return &apperrors.ExecutionError{Engine: mapping.EngineType, Err: err}
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

func (o *Orchestrator) resolveConcept(ctx context.Context, hint string) (*models.Concept, error) {
	concepts, err := o.metadata.FindConceptsByHint(ctx, hint)
	if err != nil {
		return nil, fmt.Errorf("find concepts: %w", err)
	}
	switch len(concepts) {
	case 0:
		return nil, fmt.Errorf("hint %q: %w", hint, apperrors.ErrConceptNotFound)
	case 1:
		return concepts[0], nil
	default:
		candidates := make([]apperrors.Candidate, len(concepts))
		for i, c := range concepts {
			candidates[i] = apperrors.Candidate{ID: c.ID.String(), Name: c.Name}
		}
		return nil, &apperrors.AmbiguityError{Subject: "concept", Candidates: candidates}
	}
}

func (o *Orchestrator) finishSuccess(ctx context.Context, r *run) (*models.ResolveResponse, error) {
	r.trace(StateAuditing, nil)
	r.record.DecisionTrace = r.trail
	r.response.DecisionTrace = r.trail

	if err := o.audits.Append(ctx, r.record); err != nil {
		// An unaudited execution breaks the core guarantee; surface this
		// above the pipeline outcome.
		o.logger.Error("Failed to persist audit record",
			zap.String("audit_id", r.record.AuditID),
			zap.Error(err))
		return r.response, &apperrors.AuditPersistenceError{AuditID: r.record.AuditID, Err: err}
	}

	o.logger.Info("Request resolved",
		zap.String("audit_id", r.record.AuditID),
		zap.String("status", r.record.Status))
	return r.response, nil
}

func (o *Orchestrator) finishFailure(ctx context.Context, r *run, cause error) (*models.ResolveResponse, error) {
	kind := apperrors.Kind(cause)
	status := models.AuditStatusError
	if kind == apperrors.KindPolicyDenied {
		status = models.AuditStatusDenied
	}

	r.trace("failed", map[string]any{"kind": kind, "message": cause.Error()})
	r.trace(StateAuditing, nil)
	r.record.Status = status
	r.record.ErrorKind = kind
	r.record.ErrorMessage = cause.Error()
	r.record.DecisionTrace = r.trail

	r.response.Status = status
	r.response.DecisionTrace = r.trail
	r.response.Error = ErrorInfoFrom(cause)

	o.logger.Warn("Request failed",
		zap.String("audit_id", r.record.AuditID),
		zap.String("kind", kind),
		zap.Error(cause))

	o.emitSecurityEvent(r, cause, kind)

	if err := o.audits.Append(ctx, r.record); err != nil {
		o.logger.Error("Failed to persist audit record",
			zap.String("audit_id", r.record.AuditID),
			zap.Error(err))
		return r.response, &apperrors.AuditPersistenceError{AuditID: r.record.AuditID, Err: err}
	}
	return r.response, nil
}

// emitSecurityEvent forwards denials and blocked injection attempts to the
// SIEM stream. Other failure kinds are operational, not security-relevant.
func (o *Orchestrator) emitSecurityEvent(r *run, cause error, kind string) {
	switch kind {
	case apperrors.KindPolicyDenied:
		var denied *apperrors.PolicyDeniedError
		if errors.As(cause, &denied) {
			o.secaudit.LogPolicyDenial(r.record.AuditID, r.record.ConceptName, r.record.SubjectRole,
				audit.DenialDetails{Reason: denied.Reason, Action: models.PolicyActionQuery})
		}
	case apperrors.KindInvalidParameter:
		var invalid *apperrors.InvalidParameterError
		if errors.As(cause, &invalid) && strings.Contains(invalid.Reason, "injection") {
			o.secaudit.LogInjectionAttempt(r.record.AuditID, r.record.SubjectRole,
				audit.InjectionDetails{
					ParamName:   invalid.Parameter,
					Reason:      invalid.Reason,
					ConceptHint: r.record.ConceptHint,
				})
		}
	}
}

func scoringPayload(sel *resolver.Selection) map[string]any {
	scored := make([]map[string]any, len(sel.Scored))
	for i, m := range sel.Scored {
		scored[i] = map[string]any{
			"version": m.VersionName, "score": m.Score,
			"priority": m.Priority, "reason": m.Reason,
		}
	}
	excluded := make([]map[string]any, len(sel.Excluded))
	for i, m := range sel.Excluded {
		excluded[i] = map[string]any{"version": m.VersionName, "reason": m.Reason}
	}
	return map[string]any{"scored": scored, "excluded": excluded}
}

// ErrorInfoFrom converts a pipeline error into the structured form carried
// by responses, attaching kind-specific context where available.
func ErrorInfoFrom(err error) *models.ErrorInfo {
	info := &models.ErrorInfo{
		Kind:    apperrors.Kind(err),
		Message: err.Error(),
	}

	var (
		ambiguity *apperrors.AmbiguityError
		grain     *apperrors.GrainMismatchError
		missing   *apperrors.MissingParameterError
		invalid   *apperrors.InvalidParameterError
		cycle     *apperrors.CycleDetectedError
	)
	switch {
	case errors.As(err, &ambiguity):
		info.Context = map[string]any{
			"subject":    ambiguity.Subject,
			"candidates": ambiguity.Candidates,
		}
	case errors.As(err, &grain):
		info.Context = map[string]any{
			"offending_dimensions": grain.Offending,
			"declared_grain":       grain.DeclaredGrain,
		}
	case errors.As(err, &missing):
		info.Context = map[string]any{"missing_parameters": missing.Parameters}
	case errors.As(err, &invalid):
		info.Context = map[string]any{
			"parameter": invalid.Parameter,
			"reason":    invalid.Reason,
		}
	case errors.As(err, &cycle):
		info.Context = map[string]any{"cycle": cycle.Cycle}
	}
	return info
}
