// Package schema declares the response contracts for every agent call.
// A Schema is an implementation-neutral descriptor (the OpenAPI-3.0 subset:
// type/properties/required/items plus numeric and length bounds) that is
// submitted to providers supporting structured output and used to validate
// whatever comes back. Invalid responses fail fast with a field path.
package schema

import (
	"encoding/json"
	"sort"

	"google.golang.org/genai"
)

// FieldType is the OpenAPI-3.0 subset of types.
type FieldType string

const (
	TypeString  FieldType = "STRING"
	TypeInteger FieldType = "INTEGER"
	TypeNumber  FieldType = "NUMBER"
	TypeBoolean FieldType = "BOOLEAN"
	TypeArray   FieldType = "ARRAY"
	TypeObject  FieldType = "OBJECT"
)

// Schema is a declarative response contract. Numeric bounds and length
// constraints propagate to provider requests unchanged.
type Schema struct {
	Name        string             `json:"name,omitempty"` // top-level identity only
	Type        FieldType          `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	MinLength   *int               `json:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty"`
	MinItems    *int               `json:"minItems,omitempty"`
	MaxItems    *int               `json:"maxItems,omitempty"`
}

// -----------------------------------------------------------------------------
// Builders
// -----------------------------------------------------------------------------

// Str returns a string field.
func Str(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

// StrMin returns a string field with a minimum length.
func StrMin(desc string, min int) *Schema {
	return &Schema{Type: TypeString, Description: desc, MinLength: intp(min)}
}

// Int returns an integer field with a minimum.
func Int(desc string, min float64) *Schema {
	return &Schema{Type: TypeInteger, Description: desc, Minimum: floatp(min)}
}

// Num returns a number field bounded to [min, max].
func Num(desc string, min, max float64) *Schema {
	return &Schema{Type: TypeNumber, Description: desc, Minimum: floatp(min), Maximum: floatp(max)}
}

// Arr returns an array field of items.
func Arr(desc string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: items}
}

// ArrBounded returns an array field with item count bounds.
func ArrBounded(desc string, items *Schema, min, max int) *Schema {
	s := Arr(desc, items)
	if min > 0 {
		s.MinItems = intp(min)
	}
	if max > 0 {
		s.MaxItems = intp(max)
	}
	return s
}

// Obj returns an object field with the given properties and required names.
func Obj(desc string, props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Description: desc, Properties: props, Required: required}
}

func intp(v int) *int          { return &v }
func floatp(v float64) *float64 { return &v }

// -----------------------------------------------------------------------------
// Identity and sizing
// -----------------------------------------------------------------------------

// ID returns the schema identity used in cache keys: the declared name when
// present, otherwise the canonical JSON form.
func (s *Schema) ID() string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	return s.CanonicalJSON()
}

// CanonicalJSON serializes the descriptor deterministically (map keys are
// sorted by encoding/json) so identical schemas hash identically.
func (s *Schema) CanonicalJSON() string {
	if s == nil {
		return "null"
	}
	data, err := json.Marshal(s)
	if err != nil {
		return s.Name
	}
	return string(data)
}

// FieldCount counts the leaf fields of the descriptor. The local provider
// derives its token budget from this (1000 baseline + 400 per field).
func (s *Schema) FieldCount() int {
	if s == nil {
		return 0
	}
	switch s.Type {
	case TypeObject:
		count := 0
		for _, p := range s.Properties {
			count += p.FieldCount()
		}
		return count
	case TypeArray:
		return s.Items.FieldCount()
	default:
		return 1
	}
}

// -----------------------------------------------------------------------------
// Provider conversion
// -----------------------------------------------------------------------------

// ToGenAI converts the descriptor into the Gemini structured-output schema.
func (s *Schema) ToGenAI() *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}

	switch s.Type {
	case TypeString:
		out.Type = genai.TypeString
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	case TypeArray:
		out.Type = genai.TypeArray
		out.Items = s.Items.ToGenAI()
	case TypeObject:
		out.Type = genai.TypeObject
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]*genai.Schema, len(s.Properties))
			for name, p := range s.Properties {
				out.Properties[name] = p.ToGenAI()
			}
		}
	}

	if s.Nullable {
		nullable := true
		out.Nullable = &nullable
	}
	if s.MinLength != nil {
		v := int64(*s.MinLength)
		out.MinLength = &v
	}
	if s.MaxLength != nil {
		v := int64(*s.MaxLength)
		out.MaxLength = &v
	}
	if s.MinItems != nil {
		v := int64(*s.MinItems)
		out.MinItems = &v
	}
	if s.MaxItems != nil {
		v := int64(*s.MaxItems)
		out.MaxItems = &v
	}

	return out
}

// ToRawJSONSchema converts the descriptor into a lowercase raw JSON schema
// map for providers that take a plain "format" object (the local backend).
func (s *Schema) ToRawJSONSchema() map[string]interface{} {
	if s == nil {
		return nil
	}

	out := map[string]interface{}{}
	switch s.Type {
	case TypeString:
		out["type"] = "string"
	case TypeInteger:
		out["type"] = "integer"
	case TypeNumber:
		out["type"] = "number"
	case TypeBoolean:
		out["type"] = "boolean"
	case TypeArray:
		out["type"] = "array"
		out["items"] = s.Items.ToRawJSONSchema()
	case TypeObject:
		out["type"] = "object"
		if len(s.Properties) > 0 {
			props := map[string]interface{}{}
			names := make([]string, 0, len(s.Properties))
			for name := range s.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				props[name] = s.Properties[name].ToRawJSONSchema()
			}
			out["properties"] = props
		}
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	}

	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if s.MinLength != nil {
		out["minLength"] = *s.MinLength
	}
	if s.MaxLength != nil {
		out["maxLength"] = *s.MaxLength
	}
	if s.MinItems != nil {
		out["minItems"] = *s.MinItems
	}
	if s.MaxItems != nil {
		out["maxItems"] = *s.MaxItems
	}

	return out
}
