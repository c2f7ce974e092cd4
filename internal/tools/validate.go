package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParamsSchema is the minimal structural schema this package validates
// against: required top-level field names and their expected JSON
// kinds. The registry stores the full JSON Schema document for display
// to the provider (Descriptor.ParamsSchema). Nothing in this package
// derives a ParamsSchema from that document, and Dispatcher.Gate does
// not call Validate: Gate only checks that the arguments parse as a
// JSON object. No
// repo in the example pack implements JSON Schema validation for tool
// arguments (the teacher does ad hoc per-tool field checks inline in
// executor.go); this minimal structural check is written directly
// against spec.md §4.5's requirement rather than against a specific
// precedent, using only encoding/json.
type ParamsSchema struct {
	Required []string
	Kinds    map[string]string // field -> "string"|"number"|"bool"|"array"|"object"
}

// RepairJSON applies a deterministic best-effort repair pass over
// model-provided tool arguments before parsing: it escapes bare newlines
// and tabs that appear inside string literals, which is the single most
// common malformation in streamed tool-call JSON (spec.md §4.5
// "tolerant of unescaped newlines ... via a deterministic repair
// pass"). It does not attempt to fix structurally broken JSON (missing
// braces, truncated output); those still fail validation and surface as
// invalid_params.
func RepairJSON(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+8)
	inString := false
	escaped := false
	for _, b := range raw {
		if inString {
			switch {
			case escaped:
				out = append(out, b)
				escaped = false
				continue
			case b == '\\':
				out = append(out, b)
				escaped = true
				continue
			case b == '"':
				inString = false
				out = append(out, b)
				continue
			case b == '\n':
				out = append(out, '\\', 'n')
				continue
			case b == '\t':
				out = append(out, '\\', 't')
				continue
			case b == '\r':
				continue
			default:
				out = append(out, b)
				continue
			}
		}
		if b == '"' {
			inString = true
		}
		out = append(out, b)
	}
	return out
}

// ParseArgs repairs and unmarshals raw tool-call arguments into a
// generic map, returning a validation error string (not a Go error) on
// failure so callers can surface it verbatim as the invalid_params tool
// result content (spec.md §4.5).
func ParseArgs(raw json.RawMessage) (map[string]any, string) {
	repaired := RepairJSON(raw)
	var m map[string]any
	if err := json.Unmarshal(repaired, &m); err != nil {
		return nil, fmt.Sprintf("arguments are not valid JSON: %v", err)
	}
	return m, ""
}

// Validate checks a parsed argument map against a ParamsSchema,
// returning a human-readable validation error, or "" if valid.
func Validate(args map[string]any, schema ParamsSchema) string {
	var missing []string
	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", "))
	}

	for field, kind := range schema.Kinds {
		v, ok := args[field]
		if !ok {
			continue
		}
		if !matchesKind(v, kind) {
			return fmt.Sprintf("field %q must be of type %s", field, kind)
		}
	}
	return ""
}

func matchesKind(v any, kind string) bool {
	switch kind {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "bool":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
