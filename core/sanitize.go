package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SanitizeMessage coerces an arbitrary caller value into the plain
// prompt string forwarded to the collaborator. The probe order is
// fixed: string passthrough, then a content field, then the first entry
// of a messages field, then the first element of an array, then JSON
// serialization, then fmt formatting. Structured values that match no
// rule are serialized whole so the collaborator never receives an
// uninformative placeholder.
func SanitizeMessage(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case map[string]any:
		if s, ok := shapedMessage(val); ok {
			return s
		}
		return serialize(val)
	case []any:
		if len(val) > 0 {
			return SanitizeMessage(val[0])
		}
		return serialize(val)
	default:
		return opaqueMessage(val)
	}
}

// shapedMessage probes the message-bearing keys of a decoded object.
func shapedMessage(m map[string]any) (string, bool) {
	if c, ok := fieldOf(m, "content"); ok {
		if s, ok := c.(string); ok {
			return s, true
		}
		return SanitizeMessage(c), true
	}
	if msgs, ok := fieldOf(m, "messages"); ok {
		if arr, ok := msgs.([]any); ok && len(arr) > 0 {
			return SanitizeMessage(arr[0]), true
		}
	}
	return "", false
}

// fieldOf looks up a key case-insensitively so structs marshaled with
// exported field names probe the same as lowercase wire objects.
func fieldOf(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// opaqueMessage handles values outside the basic shapes by round-
// tripping through JSON and re-running the object probes on the result.
func opaqueMessage(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}

	var m map[string]any
	if json.Unmarshal(b, &m) == nil {
		if s, ok := shapedMessage(m); ok {
			return s
		}
	}

	var arr []any
	if json.Unmarshal(b, &arr) == nil && len(arr) > 0 {
		return SanitizeMessage(arr[0])
	}

	if s := string(b); s != "null" {
		return s
	}
	return fmt.Sprintf("%+v", v)
}
