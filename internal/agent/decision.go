package agent

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Invocation is a tool call requested by the model.
type Invocation struct {
	Tool  string
	Input json.RawMessage
}

// ParseDecision reports whether the model's reply is a tool call. Anything
// other than a JSON object with a string "tool" and an "input" member is a
// direct answer. Extra members are ignored.
func ParseDecision(response string) (Invocation, bool) {
	text := strings.TrimSpace(response)
	if !gjson.Valid(text) {
		return Invocation{}, false
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return Invocation{}, false
	}

	name := doc.Get("tool")
	input := doc.Get("input")
	if name.Type != gjson.String || !input.Exists() {
		return Invocation{}, false
	}
	return Invocation{
		Tool:  name.String(),
		Input: json.RawMessage(input.Raw),
	}, true
}
