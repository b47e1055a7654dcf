package llm

import (
	"bytes"
	"encoding/json"
)

var emptyArgs = json.RawMessage(`{}`)

// NormalizeArguments converts raw tool-call arguments into a canonical JSON object.
// Agents sometimes send the arguments object double-encoded as a JSON string; that is
// unquoted once. Anything that is not an object becomes {} so parameter validation
// reports the missing fields instead of a decode error.
func NormalizeArguments(raw json.RawMessage) (map[string]interface{}, json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]interface{}{}, emptyArgs
	}

	if trimmed[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(trimmed, &unquoted); err != nil {
			return map[string]interface{}{}, emptyArgs
		}
		trimmed = bytes.TrimSpace([]byte(unquoted))
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return map[string]interface{}{}, emptyArgs
		}
	}

	var args map[string]interface{}
	if err := json.Unmarshal(trimmed, &args); err != nil || args == nil {
		return map[string]interface{}{}, emptyArgs
	}

	normalized, err := json.Marshal(args)
	if err != nil {
		return map[string]interface{}{}, emptyArgs
	}
	return args, json.RawMessage(normalized)
}
