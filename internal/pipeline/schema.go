package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxLinksPerCategory caps each list of a link-selection output. Longer lists
// are truncated, never accepted unbounded.
const MaxLinksPerCategory = 10

// Classification is the structured output of the classify stage. The boolean
// flags are not mutually exclusive; any subset may be true. Downstream stage
// conditions are evaluated against this record only.
type Classification struct {
	Business  bool   `json:"business"`
	Technical bool   `json:"technical"`
	User      bool   `json:"user"`
	Content   string `json:"content"`
}

// LinkSelection is the structured output of the link-selection stages.
type LinkSelection struct {
	Business  []string `json:"business"`
	User      []string `json:"user"`
	Technical []string `json:"technical"`
}

func classificationSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"business":  map[string]any{"type": "boolean"},
			"technical": map[string]any{"type": "boolean"},
			"user":      map[string]any{"type": "boolean"},
			"content":   map[string]any{"type": "string"},
		},
		"required": []string{"business", "technical", "user", "content"},
	}
}

func linkSelectionSchema() map[string]any {
	urlList := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"business":  urlList,
			"user":      urlList,
			"technical": urlList,
		},
		"required": []string{"business", "user", "technical"},
	}
}

// validateJSONAgainstSchema validates data against a schema expressed as a
// generic map. The same map is embedded in the stage prompt as the output
// constraint.
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func decodeClassification(raw string) (Classification, error) {
	data := []byte(stripFences(raw))
	if err := validateJSONAgainstSchema(classificationSchema(), data); err != nil {
		return Classification{}, err
	}
	var c Classification
	if err := json.Unmarshal(data, &c); err != nil {
		return Classification{}, fmt.Errorf("unmarshal classification: %w", err)
	}
	return c, nil
}

func decodeLinkSelection(raw string) (LinkSelection, error) {
	data := []byte(stripFences(raw))
	if err := validateJSONAgainstSchema(linkSelectionSchema(), data); err != nil {
		return LinkSelection{}, err
	}
	var l LinkSelection
	if err := json.Unmarshal(data, &l); err != nil {
		return LinkSelection{}, fmt.Errorf("unmarshal link selection: %w", err)
	}
	l.truncate()
	return l, nil
}

func (l *LinkSelection) truncate() {
	if len(l.Business) > MaxLinksPerCategory {
		l.Business = l.Business[:MaxLinksPerCategory]
	}
	if len(l.User) > MaxLinksPerCategory {
		l.User = l.User[:MaxLinksPerCategory]
	}
	if len(l.Technical) > MaxLinksPerCategory {
		l.Technical = l.Technical[:MaxLinksPerCategory]
	}
}

// stripFences removes a surrounding markdown code fence, which chat models
// add around JSON even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
