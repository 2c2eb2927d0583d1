package gemini

import (
	"google.golang.org/genai"
)

// toSchema converts a JSON schema document into the genai schema subset.
// Unsupported keywords are dropped; the generation client validates the
// full schema after parsing anyway.
func toSchema(doc map[string]interface{}) *genai.Schema {
	if doc == nil {
		return nil
	}

	s := &genai.Schema{}
	switch t := doc["type"].(type) {
	case string:
		s.Type = schemaType(t)
	case []interface{}:
		// ["string", "null"] style unions
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				nullable := true
				s.Nullable = &nullable
				continue
			}
			s.Type = schemaType(name)
		}
	}

	if desc, ok := doc["description"].(string); ok {
		s.Description = desc
	}
	if enum, ok := doc["enum"].([]interface{}); ok {
		for _, v := range enum {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if props, ok := doc["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if child, ok := raw.(map[string]interface{}); ok {
				s.Properties[name] = toSchema(child)
			}
		}
	}
	if required, ok := doc["required"].([]interface{}); ok {
		for _, v := range required {
			if str, ok := v.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := doc["items"].(map[string]interface{}); ok {
		s.Items = toSchema(items)
	}
	return s
}

func schemaType(name string) genai.Type {
	switch name {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}
