package agent

import (
	"fmt"
	"reflect"
	"sort"
)

// validateArguments checks proposed arguments against a tool's declared input
// schema before the capability is invoked. The schema is the JSON-schema
// subset the catalog accepts: object type, properties with scalar types,
// required list, and an optional additionalProperties bool.
func validateArguments(schema map[string]any, arguments map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	required, err := requiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := arguments[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, hasProperties := anyMap(schema["properties"])
	additionalAllowed := true
	if raw, ok := schema["additionalProperties"]; ok {
		b, isBool := raw.(bool)
		if !isBool {
			return fmt.Errorf(`schema "additionalProperties" must be a bool`)
		}
		additionalAllowed = b
	}

	for _, key := range sortedKeys(arguments) {
		propSchema, known := properties[key]
		if !known {
			if hasProperties && !additionalAllowed {
				return fmt.Errorf("unknown argument %q", key)
			}
			continue
		}
		expected, hasType := propertyType(propSchema)
		if !hasType {
			continue
		}
		if !matchesType(expected, arguments[key]) {
			return fmt.Errorf("argument %q must be of type %s", key, expected)
		}
	}
	return nil
}

func requiredFields(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return value, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf(`schema "required" entries must be strings`)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, fmt.Errorf(`schema "required" must be an array`)
	}
}

func propertyType(propSchema any) (string, bool) {
	m, ok := anyMap(propSchema)
	if !ok {
		return "", false
	}
	name, ok := m["type"].(string)
	return name, ok
}

func anyMap(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	return m, ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func matchesType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumeric(value)
	case "integer":
		if f, ok := value.(float64); ok {
			// JSON numbers decode as float64; whole values count as integers.
			return f == float64(int64(f))
		}
		return isIntegral(value)
	case "object":
		if value == nil {
			return false
		}
		return reflect.TypeOf(value).Kind() == reflect.Map
	case "array":
		if value == nil {
			return false
		}
		kind := reflect.TypeOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	default:
		return true
	}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func isIntegral(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
