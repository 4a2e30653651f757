package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sgte/pdf-splitter/constants"
)

// Rule maps a set of keywords to a document type. Keywords are matched as
// whole words against folded page text; a multi-word keyword tolerates any
// whitespace between its words.
type Rule struct {
	Type     constants.DocumentType `json:"type"`
	Keywords []string               `json:"keywords"`
}

// DefaultRules is the built-in rule order. The first rule that matches wins.
func DefaultRules() []Rule {
	return []Rule{
		{Type: constants.Bienestar, Keywords: []string{"bienestar", "bienestar estudiantil", "asistencia social"}},
		{Type: constants.Financiero, Keywords: []string{"financiero", "financiera", "finanzas", "tesoreria", "aranceles"}},
		{Type: constants.Biblioteca, Keywords: []string{"biblioteca", "prestamos bibliograficos"}},
		{Type: constants.SDT, Keywords: []string{"solicitud de titulo", "solicitud de titulacion", "sdt"}},
		{Type: constants.Memorandum, Keywords: []string{"memorandum", "memo"}},
		{Type: constants.Acta, Keywords: []string{"acta", "acta de examen", "acta de titulacion"}},
	}
}

// BuildRulesJSONSchema returns the JSON-Schema a rules file must satisfy.
func BuildRulesJSONSchema() map[string]any {
	types := make([]string, 0, len(constants.DocumentTypes()))
	for _, t := range constants.DocumentTypes() {
		if t != constants.Unknown {
			types = append(types, string(t))
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rules": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"type", "keywords"},
					"properties": map[string]any{
						"type": map[string]any{"type": "string", "enum": types},
						"keywords": map[string]any{
							"type":     "array",
							"minItems": 1,
							"items":    map[string]any{"type": "string", "minLength": 2},
						},
					},
				},
			},
		},
		"required": []string{"rules"},
	}
}

// ParseRules validates data against the rules schema and decodes it.
func ParseRules(data []byte) ([]Rule, error) {
	b, err := json.Marshal(BuildRulesJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("rules do not match schema: %w", err)
	}

	var doc struct {
		Rules []Rule `json:"rules"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return doc.Rules, nil
}

// LoadRules reads a rules file. An empty path yields DefaultRules.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}
