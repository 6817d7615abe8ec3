// Package decision extracts a structured intent from raw model text: either
// a SQL query to execute or an explanation to show the user directly.
package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoDecision covers every parse failure: no braces, malformed JSON, or
// neither expected key. Callers treat all three identically and answer with
// a reflection, so they are not distinguished further.
var ErrNoDecision = errors.New("no structured decision in model response")

type Kind int

const (
	KindQuery Kind = iota
	KindExplanation
)

type Decision struct {
	Kind    Kind
	SQL     string
	Message string
}

// Parse cleans the raw model text, slices the first '{' through the last '}',
// and interprets the JSON object inside. A "sql" key wins over "error".
func Parse(raw string) (Decision, error) {
	cleaned := strings.TrimSpace(stripEscapes(raw))

	open := strings.Index(cleaned, "{")
	closeIdx := strings.LastIndex(cleaned, "}")
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return Decision{}, fmt.Errorf("%w: no balanced braces in %q", ErrNoDecision, truncate(cleaned, 80))
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(cleaned[open:closeIdx+1]), &object); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrNoDecision, err)
	}

	if value, ok := object["sql"]; ok {
		sql, ok := value.(string)
		if !ok {
			return Decision{}, fmt.Errorf("%w: sql value is not a string", ErrNoDecision)
		}
		return Decision{Kind: KindQuery, SQL: FormatSQL(sql)}, nil
	}
	if value, ok := object["error"]; ok {
		message, ok := value.(string)
		if !ok {
			return Decision{}, fmt.Errorf("%w: error value is not a string", ErrNoDecision)
		}
		return Decision{Kind: KindExplanation, Message: message}, nil
	}
	return Decision{}, fmt.Errorf("%w: neither sql nor error key present", ErrNoDecision)
}

// stripEscapes removes the formatting noise models wrap around JSON: literal
// backslash-n sequences, real newlines, and stray backslashes, in that order.
func stripEscapes(raw string) string {
	cleaned := strings.ReplaceAll(raw, `\n`, " ")
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, `\`, "")
	return cleaned
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
