package decision

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/protocolsim/idlarena/internal/domain"
)

//go:embed schema/action.schema.json
var actionSchemaSrc string

var actionSchema = jsonschema.MustCompileString("action.schema.json", actionSchemaSrc)

// ParseAction extracts and validates one action from raw model output. The
// model may wrap the JSON object in prose or code fences; everything from
// the first '{' to the last '}' is taken as the candidate document.
func ParseAction(raw string) (domain.Action, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return domain.Action{}, fmt.Errorf("decision: no JSON object in response")
	}
	doc := raw[start : end+1]

	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return domain.Action{}, fmt.Errorf("decision: parse response: %w", err)
	}
	if err := actionSchema.Validate(v); err != nil {
		return domain.Action{}, fmt.Errorf("decision: schema: %w", err)
	}

	var act domain.Action
	if err := json.Unmarshal([]byte(doc), &act); err != nil {
		return domain.Action{}, fmt.Errorf("decision: decode action: %w", err)
	}
	if err := act.Validate(); err != nil {
		return domain.Action{}, err
	}
	return act, nil
}
