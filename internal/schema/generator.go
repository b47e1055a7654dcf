package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Generator converts tool parameter structs to JSON schemas.
//
// Field tags:
//
//	json:"name,omitempty"   property name; fields without omitempty are listed as required
//	schema:"required,..."   constraints: enum:a|b, min:N, max:N, minItems:N, maxItems:N, pattern:RE, default:V
//	description:"..."       property description shown to the calling agent
type Generator struct{}

// NewGenerator creates a new schema generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate creates a JSON schema from a struct or pointer to struct
func (g *Generator) Generate(v interface{}) (map[string]interface{}, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("expected struct, got nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", t.Kind())
	}

	return g.generateObject(t), nil
}

// GenerateFunctionSchema creates an OpenAI-compatible function schema
func (g *Generator) GenerateFunctionSchema(name, description string, params interface{}) map[string]interface{} {
	schema, _ := g.Generate(params)

	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        name,
			"description": description,
			"parameters":  schema,
		},
	}
}

func (g *Generator) generateObject(t reflect.Type) map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		fieldName := FieldName(field, jsonTag)

		schemaTag := field.Tag.Get("schema")
		if strings.Contains(schemaTag, "required") || !strings.Contains(jsonTag, "omitempty") {
			required = append(required, fieldName)
		}

		fieldSchema := g.generateType(field.Type)
		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}
		parseSchemaTag(schemaTag, fieldSchema)

		properties[fieldName] = fieldSchema
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (g *Generator) generateType(t reflect.Type) map[string]interface{} {
	schema := make(map[string]interface{})

	switch t.Kind() {
	case reflect.String:
		schema["type"] = "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		schema["type"] = "integer"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema["type"] = "integer"
		schema["minimum"] = 0
	case reflect.Float32, reflect.Float64:
		schema["type"] = "number"
	case reflect.Bool:
		schema["type"] = "boolean"
	case reflect.Slice, reflect.Array:
		schema["type"] = "array"
		schema["items"] = g.generateType(t.Elem())
	case reflect.Map:
		schema["type"] = "object"
		if t.Elem().Kind() != reflect.Interface {
			schema["additionalProperties"] = g.generateType(t.Elem())
		}
	case reflect.Struct:
		return g.generateObject(t)
	case reflect.Ptr:
		return g.generateType(t.Elem())
	default:
		schema["type"] = "string"
	}

	return schema
}

func parseSchemaTag(tag string, schema map[string]interface{}) {
	if tag == "" {
		return
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}

		switch key {
		case "enum":
			schema["enum"] = strings.Split(value, "|")
		case "min", "max":
			var n interface{}
			if err := json.Unmarshal([]byte(value), &n); err == nil {
				schema[map[string]string{"min": "minimum", "max": "maximum"}[key]] = n
			}
		case "minItems", "maxItems":
			if n, err := strconv.Atoi(value); err == nil {
				schema[key] = n
			}
		case "pattern", "format":
			schema[key] = value
		case "default":
			var def interface{}
			if err := json.Unmarshal([]byte(value), &def); err == nil {
				schema["default"] = def
			} else {
				schema["default"] = value
			}
		}
	}
}

// FieldName returns the JSON property name for a struct field
func FieldName(field reflect.StructField, jsonTag string) string {
	name, _, _ := strings.Cut(jsonTag, ",")
	name = strings.TrimSpace(name)
	if name == "" {
		return field.Name
	}
	return name
}
