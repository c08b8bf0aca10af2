package llm

import (
	"strings"

	"google.golang.org/genai"
)

// Schema types
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Schema is a provider-neutral subset of JSON Schema used for tool
// parameters.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]Schema
	Items       *Schema
	Required    []string
	Enum        []string
}

// JSONSchema renders the schema as a JSON Schema document, the form
// OpenAI and Anthropic accept.
func (s Schema) JSONSchema() map[string]any {
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	}
	return out
}

// GenAI converts the schema for Gemini function declarations
func (s Schema) GenAI() *genai.Schema {
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if s.Items != nil {
		out.Items = s.Items.GenAI()
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.GenAI()
		}
	}
	return out
}
