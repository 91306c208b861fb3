package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedAuditor() (*SecurityAuditor, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return NewSecurityAuditor(zap.New(core)), logs
}

func TestLogInjectionAttempt_Critical(t *testing.T) {
	auditor, logs := observedAuditor()

	auditor.LogInjectionAttempt("audit-x", "analyst", InjectionDetails{
		ParamName:   "line",
		Reason:      "value matches SQL injection pattern",
		ConceptHint: "FPY",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, string(EventSQLInjectionAttempt), fields["event_type"])
	assert.Equal(t, "critical", fields["severity"])
	assert.Equal(t, "audit-x", fields["audit_id"])
	assert.Equal(t, "analyst", fields["subject_role"])
}

func TestLogPolicyDenial_Warning(t *testing.T) {
	auditor, logs := observedAuditor()

	auditor.LogPolicyDenial("audit-y", "first_pass_yield", "contractor", DenialDetails{
		Reason: "denied by policy p1",
		Action: "query",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, string(EventPolicyDenied), entry.ContextMap()["event_type"])
	assert.Equal(t, "first_pass_yield", entry.ContextMap()["concept_name"])
}

func TestLog_FillsTimestamp(t *testing.T) {
	auditor, logs := observedAuditor()

	auditor.Log(SecurityEvent{
		EventType: EventParameterValidation,
		AuditID:   "audit-z",
		Severity:  "info",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.NotNil(t, entry.ContextMap()["timestamp"])
}
