package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrConceptNotFound, KindNotFound},
		{fmt.Errorf("concept %q: %w", "fpy", ErrConceptNotFound), KindNotFound},
		{ErrVersionNotFound, KindNotFound},
		{ErrDefinitionNotFound, KindNotFound},
		{ErrMappingNotFound, KindNotFound},
		{ErrAuditNotFound, KindNotFound},
		{&AmbiguityError{Subject: "version"}, KindAmbiguity},
		{&GrainMismatchError{Offending: []string{"machine"}}, KindGrainMismatch},
		{&MissingParameterError{Parameters: []string{"from_date"}}, KindMissingParameter},
		{&InvalidParameterError{Parameter: "line"}, KindInvalidParameter},
		{&PolicyDeniedError{Reason: "denied"}, KindPolicyDenied},
		{&CycleDetectedError{Cycle: []string{"a@v1", "b@v1", "a@v1"}}, KindCycleDetected},
		{&ExecutionError{Engine: "postgres", Err: errors.New("boom")}, KindExecution},
		{&AuditPersistenceError{AuditID: "audit-x", Err: errors.New("boom")}, KindAuditPersistence},
		{errors.New("something else"), KindInternal},
		{nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ExecutionError{Engine: "mssql", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestAmbiguityErrorMessageListsCandidates(t *testing.T) {
	err := &AmbiguityError{
		Subject: "version",
		Candidates: []Candidate{
			{ID: "1", Name: "fpy_v1", Priority: 3},
			{ID: "2", Name: "fpy_v2", Priority: 3},
		},
	}
	assert.Equal(t, "ambiguous version resolution: 2 candidates tied (fpy_v1, fpy_v2)", err.Error())
}
