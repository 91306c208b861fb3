package sqltemplate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucentdata/metricplane/pkg/apperrors"
	"github.com/lucentdata/metricplane/pkg/models"
)

// Rendered is an executable, parameter-safe query: the query text with
// engine-native positional placeholders, the ordered values to bind, and a
// denormalized preview for audit display. Preview is never executed.
type Rendered struct {
	Query   string `json:"query"`
	Params  []any  `json:"params"`
	Preview string `json:"preview"`
}

// Render validates the supplied parameters against the mapping's declared
// schema and binds them into the template.
//
// Validation order: single-statement check, placeholder/schema consistency,
// placeholders inside string literals (rejected as unsafe), required
// parameters present, values type-conformant, string values screened for
// injection patterns. Raw values are never concatenated into the query; the
// engine's positional binding carries them out-of-band.
func Render(mapping *models.PhysicalMapping, supplied map[string]any) (*Rendered, error) {
	template, err := NormalizeTemplate(mapping.Template)
	if err != nil {
		return nil, &apperrors.InvalidParameterError{Parameter: "template", Reason: err.Error()}
	}

	placeholders := ExtractPlaceholders(template)

	// Mapping invariant: placeholders must be a subset of the declared schema.
	for _, name := range placeholders {
		if _, ok := mapping.ParameterByName(name); !ok {
			return nil, &apperrors.InvalidParameterError{
				Parameter: name,
				Reason:    "placeholder not declared in parameter schema",
			}
		}
	}

	if unsafe := PlaceholdersInStringLiterals(template); len(unsafe) > 0 {
		return nil, &apperrors.InvalidParameterError{
			Parameter: unsafe[0],
			Reason:    "placeholder inside string literal cannot be bound safely",
		}
	}

	// Resolve each placeholder's value: supplied, else default, else missing.
	values := make(map[string]any, len(placeholders))
	var missing []string
	for _, name := range placeholders {
		def, _ := mapping.ParameterByName(name)
		value, ok := supplied[name]
		if !ok {
			if def.Default != nil {
				value = def.Default
			} else if def.Required {
				missing = append(missing, name)
				continue
			} else {
				value = nil
			}
		}
		values[name] = value
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &apperrors.MissingParameterError{Parameters: missing}
	}

	for _, name := range placeholders {
		def, _ := mapping.ParameterByName(name)
		value := values[name]
		if value == nil {
			continue
		}
		if err := checkType(name, def.Type, value); err != nil {
			return nil, err
		}
		if err := ScreenValue(name, value); err != nil {
			return nil, err
		}
	}

	marker := positionalMarker(mapping.EngineType)

	var ordered []any
	positions := make(map[string]int, len(placeholders))
	query := placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		if pos, exists := positions[name]; exists {
			return marker(pos)
		}
		ordered = append(ordered, values[name])
		pos := len(ordered)
		positions[name] = pos
		return marker(pos)
	})

	preview := placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		return previewLiteral(values[name])
	})

	return &Rendered{Query: query, Params: ordered, Preview: preview}, nil
}

// positionalMarker returns the engine's native positional placeholder style:
// $N for postgres, @pN for mssql.
func positionalMarker(engineType string) func(int) string {
	if engineType == models.EngineTypeMSSQL {
		return func(n int) string { return fmt.Sprintf("@p%d", n) }
	}
	return func(n int) string { return fmt.Sprintf("$%d", n) }
}

// checkType verifies a supplied value conforms to the declared parameter
// type. JSON decoding hands numbers over as float64, so integer checks
// accept integral floats.
func checkType(name, declared string, value any) error {
	fail := func(reason string) error {
		return &apperrors.InvalidParameterError{Parameter: name, Reason: reason}
	}

	switch declared {
	case models.ParamTypeString:
		if _, ok := value.(string); !ok {
			return fail(fmt.Sprintf("expected string, got %T", value))
		}
	case models.ParamTypeInt:
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return fail(fmt.Sprintf("expected integer, got %v", v))
			}
		default:
			return fail(fmt.Sprintf("expected integer, got %T", value))
		}
	case models.ParamTypeFloat:
		switch value.(type) {
		case float32, float64, int, int32, int64:
		default:
			return fail(fmt.Sprintf("expected number, got %T", value))
		}
	case models.ParamTypeBool:
		if _, ok := value.(bool); !ok {
			return fail(fmt.Sprintf("expected boolean, got %T", value))
		}
	case models.ParamTypeTimestamp:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fail("expected RFC3339 timestamp: " + err.Error())
			}
		default:
			return fail(fmt.Sprintf("expected timestamp, got %T", value))
		}
	case models.ParamTypeUUID:
		switch v := value.(type) {
		case uuid.UUID:
		case string:
			if _, err := uuid.Parse(v); err != nil {
				return fail("expected UUID: " + err.Error())
			}
		default:
			return fail(fmt.Sprintf("expected UUID, got %T", value))
		}
	default:
		return fail(fmt.Sprintf("unknown declared type %q", declared))
	}
	return nil
}

// previewLiteral formats a value for the human-readable preview string.
// Strings are quoted with doubled single quotes; this output is for audit
// display only and is never sent to an engine.
func previewLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.Format(time.RFC3339) + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}
