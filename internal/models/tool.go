package models

import (
	"encoding/json"
	"fmt"
)

// ToolDescriptor is one tool as advertised by the upstream and, after
// filtering, as exposed to clients.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is a tool's JSON Schema. Properties and Required are broken
// out so parameters can be hidden; every other keyword is kept verbatim in
// Extra and written back unchanged.
type InputSchema struct {
	Type       string                     `json:"-"`
	Properties map[string]json.RawMessage `json:"-"`
	Required   []string                   `json:"-"`
	Extra      map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON splits a schema object into its known and unknown keywords.
func (s *InputSchema) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("input schema is not an object: %w", err)
	}
	*s = InputSchema{}
	for key, val := range raw {
		switch key {
		case "type":
			if err := json.Unmarshal(val, &s.Type); err != nil {
				return fmt.Errorf("input schema type: %w", err)
			}
		case "properties":
			if err := json.Unmarshal(val, &s.Properties); err != nil {
				return fmt.Errorf("input schema properties: %w", err)
			}
		case "required":
			if err := json.Unmarshal(val, &s.Required); err != nil {
				return fmt.Errorf("input schema required: %w", err)
			}
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]json.RawMessage)
			}
			s.Extra[key] = val
		}
	}
	return nil
}

// MarshalJSON writes the schema back as a single object. Type defaults to
// "object" and properties is always present, as MCP clients expect both.
func (s InputSchema) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	out["type"] = typ
	props := s.Properties
	if props == nil {
		props = map[string]json.RawMessage{}
	}
	out["properties"] = props
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return json.Marshal(out)
}

// HasProperty reports whether the schema declares a parameter.
func (s InputSchema) HasProperty(name string) bool {
	_, ok := s.Properties[name]
	return ok
}

// IsRequired reports whether a parameter is listed as required.
func (s InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Without returns a copy of the schema with the named parameters removed
// from both properties and required. Names the schema lacks are ignored.
func (s InputSchema) Without(hidden func(string) bool) InputSchema {
	out := InputSchema{Type: s.Type, Extra: s.Extra}
	if s.Properties != nil {
		out.Properties = make(map[string]json.RawMessage, len(s.Properties))
		for name, prop := range s.Properties {
			if !hidden(name) {
				out.Properties[name] = prop
			}
		}
	}
	for _, r := range s.Required {
		if !hidden(r) {
			out.Required = append(out.Required, r)
		}
	}
	return out
}

// ToolCallRequest is a client's tools/call payload.
type ToolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
