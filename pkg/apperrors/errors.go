// Package apperrors defines the error kinds surfaced by the resolution
// pipeline. Flat conditions are sentinel errors; kinds that carry context
// (tied candidates, offending dimensions) are typed errors.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConceptNotFound    = errors.New("concept not found")
	ErrVersionNotFound    = errors.New("no effective version found")
	ErrDefinitionNotFound = errors.New("no logical definition found")
	ErrMappingNotFound    = errors.New("no physical mapping found")
	ErrAuditNotFound      = errors.New("audit record not found")
)

// Error kind identifiers used in API responses and audit records.
const (
	KindNotFound         = "not_found"
	KindAmbiguity        = "ambiguity"
	KindGrainMismatch    = "grain_mismatch"
	KindMissingParameter = "missing_parameter"
	KindInvalidParameter = "invalid_parameter"
	KindPolicyDenied     = "policy_denied"
	KindCycleDetected    = "cycle_detected"
	KindExecution        = "execution_error"
	KindAuditPersistence = "audit_persistence_error"
	KindInternal         = "internal_error"
)

// Candidate identifies one of several equally valid resolution candidates.
type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// AmbiguityError is raised when two or more candidates tie after every
// deterministic tie-break. The pipeline never picks arbitrarily.
type AmbiguityError struct {
	Subject    string      // what was being resolved: "concept", "version", "mapping"
	Candidates []Candidate // full tied candidate list, selection order
}

func (e *AmbiguityError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf("ambiguous %s resolution: %d candidates tied (%s)",
		e.Subject, len(e.Candidates), strings.Join(names, ", "))
}

// GrainMismatchError is raised when requested dimensions are not supported
// by the resolved definition's aggregation grain.
type GrainMismatchError struct {
	Offending     []string // requested dimensions outside the declared grain
	DeclaredGrain []string
}

func (e *GrainMismatchError) Error() string {
	return fmt.Sprintf("requested dimensions %v not supported by declared grain %v",
		e.Offending, e.DeclaredGrain)
}

// MissingParameterError is raised when required template parameters were not
// supplied with the request.
type MissingParameterError struct {
	Parameters []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameters: %s", strings.Join(e.Parameters, ", "))
}

// InvalidParameterError is raised when a supplied parameter value does not
// conform to the declared schema, or would require unsafe interpolation.
type InvalidParameterError struct {
	Parameter string
	Reason    string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Parameter, e.Reason)
}

// PolicyDeniedError is raised when policy evaluation denies execution.
// Reason carries the winning policy's explanation.
type PolicyDeniedError struct {
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return "access denied by policy: " + e.Reason
}

// CycleDetectedError is raised at dependency-graph build time when logical
// definitions reference each other cyclically. Cyclic evaluation is
// undefined and fails closed before any query is rendered.
type CycleDetectedError struct {
	Cycle []string // node names along the cycle, in traversal order
}

func (e *CycleDetectedError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// ExecutionError wraps a failure from the external execution engine.
type ExecutionError struct {
	Engine string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed on engine %q: %v", e.Engine, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// AuditPersistenceError means the audit record could not be written. An
// unaudited execution violates the system's core guarantee, so this is
// reported at higher severity than the pipeline failure it may accompany.
type AuditPersistenceError struct {
	AuditID string
	Err     error
}

func (e *AuditPersistenceError) Error() string {
	return fmt.Sprintf("failed to persist audit record %s: %v", e.AuditID, e.Err)
}

func (e *AuditPersistenceError) Unwrap() error { return e.Err }

// Kind classifies err into one of the Kind* identifiers for structured
// error responses and audit payloads.
func Kind(err error) string {
	var (
		ambiguity *AmbiguityError
		grain     *GrainMismatchError
		missing   *MissingParameterError
		invalid   *InvalidParameterError
		denied    *PolicyDeniedError
		cycle     *CycleDetectedError
		exec      *ExecutionError
		audit     *AuditPersistenceError
	)
	switch {
	case errors.Is(err, ErrConceptNotFound),
		errors.Is(err, ErrVersionNotFound),
		errors.Is(err, ErrDefinitionNotFound),
		errors.Is(err, ErrMappingNotFound),
		errors.Is(err, ErrAuditNotFound):
		return KindNotFound
	case errors.As(err, &ambiguity):
		return KindAmbiguity
	case errors.As(err, &grain):
		return KindGrainMismatch
	case errors.As(err, &missing):
		return KindMissingParameter
	case errors.As(err, &invalid):
		return KindInvalidParameter
	case errors.As(err, &denied):
		return KindPolicyDenied
	case errors.As(err, &cycle):
		return KindCycleDetected
	case errors.As(err, &exec):
		return KindExecution
	case errors.As(err, &audit):
		return KindAuditPersistence
	default:
		return KindInternal
	}
}
