package sqltemplate

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/lucentdata/metricplane/pkg/apperrors"
)

// ScreenValue checks a string parameter value for SQL injection patterns
// before it is accepted for binding. Non-string values cannot carry
// injection payloads and pass unchecked. Detection fails the request; values
// are never best-effort escaped.
func ScreenValue(name string, value any) error {
	str, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(str)
	if isSQLi {
		return &apperrors.InvalidParameterError{
			Parameter: name,
			Reason:    "value matches SQL injection pattern (fingerprint " + string(fingerprint) + ")",
		}
	}
	return nil
}
