package schema

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidationError reports a provider response that violates its declared
// schema. Path points at the offending field ("ideas[3].title").
type ValidationError struct {
	Schema string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s: %s", e.Schema, e.Path, e.Reason)
}

// Validate checks a parsed JSON value (map[string]interface{}, []interface{},
// float64, string, bool, nil) against the descriptor. The first violation is
// returned with its field path.
func (s *Schema) Validate(value interface{}) error {
	return s.validate(s.ID(), "$", value)
}

func (s *Schema) validate(root, path string, value interface{}) error {
	if value == nil {
		if s.Nullable {
			return nil
		}
		return &ValidationError{Schema: root, Path: path, Reason: "value is null"}
	}

	switch s.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("expected string, got %T", value)}
		}
		if s.MinLength != nil && len(str) < *s.MinLength {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("length %d below minimum %d", len(str), *s.MinLength)}
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("length %d above maximum %d", len(str), *s.MaxLength)}
		}
		if len(s.Enum) > 0 && !contains(s.Enum, str) {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("%q not in enum %v", str, s.Enum)}
		}

	case TypeInteger:
		num, ok := asNumber(value)
		if !ok || num != math.Trunc(num) {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("expected integer, got %v", value)}
		}
		return s.checkBounds(root, path, num)

	case TypeNumber:
		num, ok := asNumber(value)
		if !ok {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("expected number, got %T", value)}
		}
		return s.checkBounds(root, path, num)

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("expected boolean, got %T", value)}
		}

	case TypeArray:
		arr, ok := value.([]interface{})
		if !ok {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("expected array, got %T", value)}
		}
		if s.MinItems != nil && len(arr) < *s.MinItems {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("array has %d items, minimum %d", len(arr), *s.MinItems)}
		}
		if s.MaxItems != nil && len(arr) > *s.MaxItems {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("array has %d items, maximum %d", len(arr), *s.MaxItems)}
		}
		if s.Items != nil {
			for i, item := range arr {
				if err := s.Items.validate(root, fmt.Sprintf("%s[%d]", path, i), item); err != nil {
					return err
				}
			}
		}

	case TypeObject:
		obj, ok := value.(map[string]interface{})
		if !ok {
			return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("expected object, got %T", value)}
		}
		for _, req := range s.Required {
			if _, present := obj[req]; !present {
				return &ValidationError{Schema: root, Path: path + "." + req, Reason: "required field missing"}
			}
		}
		for name, prop := range s.Properties {
			v, present := obj[name]
			if !present {
				continue
			}
			if err := prop.validate(root, path+"."+name, v); err != nil {
				return err
			}
		}

	default:
		return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("unknown schema type %q", s.Type)}
	}

	return nil
}

func (s *Schema) checkBounds(root, path string, num float64) error {
	if s.Minimum != nil && num < *s.Minimum {
		return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("%v below minimum %v", num, *s.Minimum)}
	}
	if s.Maximum != nil && num > *s.Maximum {
		return &ValidationError{Schema: root, Path: path, Reason: fmt.Sprintf("%v above maximum %v", num, *s.Maximum)}
	}
	return nil
}

func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
