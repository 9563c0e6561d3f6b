// Package correlate reconciles relationship fields that changed meaning
// across client schema generations. The resolution rules live in pure
// functions shared by the bulk migration path and the live read path, so
// the two can not drift.
package correlate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mocksi/bilan-sub001/internal/model"
)

// Property names across the two schema generations. Current clients send
// turnId; legacy clients sent promptId for the same relationship.
const (
	PropTurnID   = "turnId"
	PropPromptID = "promptId"

	UnknownTurnPrefix = "unknown_turn_"
)

// Properties decodes an event's property bag. It fails closed: a missing
// or malformed blob yields nil, never an error.
func Properties(e model.Event) map[string]any {
	if len(e.Properties) == 0 {
		return nil
	}
	var props map[string]any
	if err := json.Unmarshal(e.Properties, &props); err != nil {
		return nil
	}
	return props
}

// ResolveTurnID returns the canonical turn identifier for a vote's property
// bag: explicit turn id, then the legacy prompt id, then a synthesized id
// derived from the event's own id. A vote therefore always resolves to a
// turn identifier.
func ResolveTurnID(props map[string]any, eventID string) string {
	if v := stringProp(props, PropTurnID); v != "" {
		return v
	}
	if v := stringProp(props, PropPromptID); v != "" {
		return v
	}
	return UnknownTurnPrefix + eventID
}

// TurnIDFromEvent is ResolveTurnID applied to a stored row.
func TurnIDFromEvent(e model.Event) string {
	return ResolveTurnID(Properties(e), e.EventID)
}

// NormalizeTurnSequence coerces a loosely-typed sequence value to a
// positive integer. After trimming, the value must be non-empty, all
// decimal digits, and greater than zero; anything else (empty, text,
// zero, negative, fractional) normalizes to nil. Numbers are rendered to
// their shortest decimal form first so string and numeric input follow
// the identical rule.
func NormalizeTurnSequence(v any) *int64 {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprintf("%d", x)
	default:
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func stringProp(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	v, _ := props[key].(string)
	return strings.TrimSpace(v)
}
