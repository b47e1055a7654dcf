package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/nachoal/coding-agent-server/internal/schema"
)

// Validator checks decoded tool parameters against their schema tags.
// Array bounds (minItems/maxItems) are left to the tools so they can report
// which bound was violated.
type Validator struct {
	tagName string
}

// New creates a new validator
func New() *Validator {
	return &Validator{
		tagName: "schema",
	}
}

// Validate validates a struct based on its schema tags
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", val.Kind())
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		structField := typ.Field(i)
		if !structField.IsExported() {
			continue
		}

		jsonTag := structField.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		tag := structField.Tag.Get(v.tagName)
		if err := v.validateField(val.Field(i), tag, schema.FieldName(structField, jsonTag)); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateField(value reflect.Value, tag string, fieldName string) error {
	if tag == "" {
		return nil
	}

	required := strings.Contains(tag, "required")
	if isZeroValue(value) {
		if required {
			return fmt.Errorf("field '%s' is required", fieldName)
		}
		return nil
	}

	for _, part := range strings.Split(tag, ",") {
		key, arg, _ := strings.Cut(strings.TrimSpace(part), ":")

		var err error
		switch key {
		case "enum":
			err = validateEnum(value, arg, fieldName)
		case "min":
			err = validateBound(value, arg, fieldName, true)
		case "max":
			err = validateBound(value, arg, fieldName, false)
		case "pattern":
			err = validatePattern(value, arg, fieldName)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func validateEnum(value reflect.Value, enumValues string, fieldName string) error {
	allowedValues := strings.Split(enumValues, "|")
	currentValue := fmt.Sprintf("%v", value.Interface())

	for _, allowed := range allowedValues {
		if currentValue == allowed {
			return nil
		}
	}

	return fmt.Errorf("field '%s' must be one of: %s", fieldName, strings.Join(allowedValues, ", "))
}

// validateBound checks numbers by value and strings by length
func validateBound(value reflect.Value, boundStr string, fieldName string, isMin bool) error {
	word := "at most"
	if isMin {
		word = "at least"
	}
	outside := func(got, bound float64) bool {
		if isMin {
			return got < bound
		}
		return got > bound
	}

	bound, err := strconv.ParseFloat(boundStr, 64)
	if err != nil {
		return fmt.Errorf("invalid bound for field '%s': %s", fieldName, boundStr)
	}

	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if outside(float64(value.Int()), bound) {
			return fmt.Errorf("field '%s' must be %s %s", fieldName, word, boundStr)
		}
	case reflect.Float32, reflect.Float64:
		if outside(value.Float(), bound) {
			return fmt.Errorf("field '%s' must be %s %s", fieldName, word, boundStr)
		}
	case reflect.String:
		if outside(float64(len(value.String())), bound) {
			return fmt.Errorf("field '%s' must be %s %s characters", fieldName, word, boundStr)
		}
	}
	return nil
}

func validatePattern(value reflect.Value, pattern string, fieldName string) error {
	if value.Kind() != reflect.String {
		return nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for field '%s': %s", fieldName, pattern)
	}

	if !re.MatchString(value.String()) {
		return fmt.Errorf("field '%s' does not match pattern: %s", fieldName, pattern)
	}

	return nil
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return v.IsZero()
}
