// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format, separate from
// the durable audit records the pipeline persists.
package audit

import (
	"time"

	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventParameterValidation is logged when parameter validation fails.
	EventParameterValidation SecurityEventType = "parameter_validation_failure"
	// EventPolicyDenied is logged when policy evaluation denies execution.
	EventPolicyDenied SecurityEventType = "policy_denied"
)

// SecurityEvent represents an auditable security event with the context a
// SIEM needs to correlate it back to the durable audit record.
type SecurityEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   SecurityEventType `json:"event_type"`
	AuditID     string            `json:"audit_id"`
	ConceptName string            `json:"concept_name,omitempty"`
	SubjectRole string            `json:"subject_role,omitempty"`
	Details     any               `json:"details"`
	Severity    string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a detected SQL injection attempt.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	Reason      string `json:"reason"`
	ConceptHint string `json:"concept_hint"`
}

// DenialDetails contains specifics of a policy denial.
type DenialDetails struct {
	Reason string `json:"reason"`
	Action string `json:"action"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// Log emits the event at a level matching its severity.
func (a *SecurityAuditor) Log(event SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", string(event.EventType)),
		zap.String("audit_id", event.AuditID),
		zap.String("severity", event.Severity),
		zap.Any("details", event.Details),
	}
	if event.ConceptName != "" {
		fields = append(fields, zap.String("concept_name", event.ConceptName))
	}
	if event.SubjectRole != "" {
		fields = append(fields, zap.String("subject_role", event.SubjectRole))
	}

	switch event.Severity {
	case "critical":
		a.logger.Error("Security event", fields...)
	case "warning":
		a.logger.Warn("Security event", fields...)
	default:
		a.logger.Info("Security event", fields...)
	}
}

// LogInjectionAttempt records a blocked injection attempt at critical severity.
func (a *SecurityAuditor) LogInjectionAttempt(auditID, subjectRole string, details InjectionDetails) {
	a.Log(SecurityEvent{
		EventType:   EventSQLInjectionAttempt,
		AuditID:     auditID,
		SubjectRole: subjectRole,
		Details:     details,
		Severity:    "critical",
	})
}

// LogPolicyDenial records a policy denial at warning severity.
func (a *SecurityAuditor) LogPolicyDenial(auditID, conceptName, subjectRole string, details DenialDetails) {
	a.Log(SecurityEvent{
		EventType:   EventPolicyDenied,
		AuditID:     auditID,
		ConceptName: conceptName,
		SubjectRole: subjectRole,
		Details:     details,
		Severity:    "warning",
	})
}
