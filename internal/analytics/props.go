package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Property extraction fails closed: a missing or oddly-typed key reads as
// "absent", never as a panic or a fabricated zero.

func numericProp(props map[string]any, key string) (float64, bool) {
	if props == nil {
		return 0, false
	}
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolProp(props map[string]any, key string) bool {
	if props == nil {
		return false
	}
	switch v := props[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	case float64:
		return v != 0
	default:
		return false
	}
}

func stringPropTrim(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	v, _ := props[key].(string)
	return strings.TrimSpace(v)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
