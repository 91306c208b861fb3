package sqltemplate

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates the template contains more than one SQL
// statement. Only single statements are permitted.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// NormalizeTemplate strips surrounding whitespace and a trailing semicolon,
// then rejects templates that still contain a semicolon outside string
// literals (a second statement).
func NormalizeTemplate(template string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", nil
	}

	normalized := stripTrailingSemicolon(template)
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

func stripTrailingSemicolon(template string) string {
	trimmed := strings.TrimSpace(template)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// hasSemicolonOutsideStrings scans for a semicolon outside single- or
// double-quoted regions, handling SQL standard quote escaping ('').
func hasSemicolonOutsideStrings(template string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	runes := []rune(template)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch state {
		case stateNormal:
			switch ch {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if ch == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++ // escaped quote, stay in string
					continue
				}
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' {
				state = stateNormal
			}
		}
	}

	return false
}
