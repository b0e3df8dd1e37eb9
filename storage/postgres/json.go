package postgres

import (
	"encoding/json"

	"github.com/reviewpilot/reviewpilot/storage"
)

// resultToJSON converts a raw result payload to a JSON string for storage.
func resultToJSON(result json.RawMessage) string {
	if len(result) == 0 {
		return "null"
	}
	return string(result)
}

// resultFromJSON parses a stored JSON string back into a raw payload.
func resultFromJSON(s string) json.RawMessage {
	if s == "" || s == "null" {
		return nil
	}
	return json.RawMessage(s)
}

// usageToJSON converts token usage to a JSON string for storage.
func usageToJSON(usage *storage.TokenUsage) string {
	if usage == nil {
		return "null"
	}
	b, _ := json.Marshal(usage)
	return string(b)
}

// usageFromJSON parses a JSON string into token usage.
func usageFromJSON(s string) *storage.TokenUsage {
	if s == "" || s == "null" {
		return nil
	}
	var usage storage.TokenUsage
	if err := json.Unmarshal([]byte(s), &usage); err != nil {
		return nil
	}
	return &usage
}
