package schema

import (
	"reflect"
	"testing"
)

type sampleParams struct {
	ImagePaths []string `json:"image_paths" schema:"minItems:2,maxItems:5" description:"paths"`
	Prompt     string   `json:"prompt" description:"instruction"`
	Detail     string   `json:"detail,omitempty" schema:"enum:low|high"`
	Limit      int      `json:"limit,omitempty" schema:"min:1,max:10"`
	internal   string
	Skipped    string `json:"-"`
}

func TestGenerate_Properties(t *testing.T) {
	s, err := NewGenerator().Generate(&sampleParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s["type"] != "object" {
		t.Fatalf("expected object schema, got %v", s["type"])
	}
	if got := s["required"].([]string); !reflect.DeepEqual(got, []string{"image_paths", "prompt"}) {
		t.Fatalf("unexpected required list: %v", got)
	}

	props := s["properties"].(map[string]interface{})
	if len(props) != 4 {
		t.Fatalf("expected 4 properties, got %d: %v", len(props), props)
	}

	paths := props["image_paths"].(map[string]interface{})
	if paths["type"] != "array" || paths["minItems"] != 2 || paths["maxItems"] != 5 {
		t.Fatalf("unexpected image_paths schema: %v", paths)
	}
	if items := paths["items"].(map[string]interface{}); items["type"] != "string" {
		t.Fatalf("expected string items, got %v", items)
	}
	if paths["description"] != "paths" {
		t.Fatalf("expected description, got %v", paths["description"])
	}

	detail := props["detail"].(map[string]interface{})
	if !reflect.DeepEqual(detail["enum"], []string{"low", "high"}) {
		t.Fatalf("unexpected enum: %v", detail["enum"])
	}
	limit := props["limit"].(map[string]interface{})
	if limit["minimum"] != float64(1) || limit["maximum"] != float64(10) {
		t.Fatalf("unexpected bounds: %v", limit)
	}
}

func TestGenerate_RejectsNonStruct(t *testing.T) {
	if _, err := NewGenerator().Generate("nope"); err == nil {
		t.Fatalf("expected error for non-struct input")
	}
}

func TestGenerateFunctionSchema(t *testing.T) {
	fn := NewGenerator().GenerateFunctionSchema("compare_images", "Compare images", &sampleParams{})
	inner := fn["function"].(map[string]interface{})
	if fn["type"] != "function" || inner["name"] != "compare_images" {
		t.Fatalf("unexpected function schema: %v", fn)
	}
}
