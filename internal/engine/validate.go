package engine

import (
	"fmt"
	"strconv"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// validateArgs checks args against tool's parameter schema: every required
// parameter must be present, and declared types are coerced from the
// loosely-typed values a caller supplies (e.g. JSON numbers as float64).
// Defaults are filled in for parameters the caller omitted. Returns a
// ValidationError naming the first offending field; no side effects occur
// before this check passes.
func validateArgs(tool *models.Tool, args map[string]any) (map[string]any, *models.ExecError) {
	coerced := make(map[string]any, len(tool.Parameters))

	for _, param := range tool.Parameters {
		value, present := args[param.Name]
		if !present {
			if param.Required {
				return nil, models.NewValidationError(param.Name, fmt.Sprintf("tool %s requires parameter %q", tool.ID(), param.Name))
			}
			if param.Default != nil {
				coerced[param.Name] = param.Default
			}
			continue
		}

		converted, err := coerceType(param.Type, value)
		if err != nil {
			return nil, models.NewValidationError(param.Name, fmt.Sprintf("tool %s parameter %q: %v", tool.ID(), param.Name, err))
		}
		coerced[param.Name] = converted
	}

	return coerced, nil
}

func coerceType(paramType models.ParamType, value any) (any, error) {
	switch paramType {
	case models.ParamString:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case models.ParamInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("expected an int, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected an int, got %T", v)
		}
	case models.ParamBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("expected a bool, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected a bool, got %T", v)
		}
	case models.ParamArray:
		if _, ok := value.([]any); !ok {
			return nil, fmt.Errorf("expected an array, got %T", value)
		}
		return value, nil
	case models.ParamObject:
		if _, ok := value.(map[string]any); !ok {
			return nil, fmt.Errorf("expected an object, got %T", value)
		}
		return value, nil
	default:
		return value, nil
	}
}
