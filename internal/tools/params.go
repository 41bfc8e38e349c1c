package tools

import "fmt"

// Parameter maps arrive from JSON, so numbers are float64 and everything is
// loosely typed. These helpers normalize without panicking.

func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func boolParam(params map[string]any, key string) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func intParam(params map[string]any, key string, fallback int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number, got %T", key, v)
	}
}
