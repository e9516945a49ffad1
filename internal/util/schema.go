package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

var (
	structReflector = &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	// ExpandedStruct looks the root up by type name, so anonymous structs,
	// maps and other unnamed types go through the plain reflector.
	inlineReflector = &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
)

// CreateSchema reflects a JSON schema from a Go value (usually a struct or a
// pointer to one). Nested types are inlined; the "$schema" and "$id"
// keywords are dropped so the result can be embedded in tool definitions.
func CreateSchema(v any) (out map[string]any, err error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("reflect schema: nil value")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r := inlineReflector
	if t.Kind() == reflect.Struct && t.Name() != "" {
		r = structReflector
	}

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("reflect schema for %s: %v", t, p)
		}
	}()

	s := r.ReflectFromType(t)
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

var schemaCache sync.Map

// CompileSchema compiles a schema map into a validator. Compiled schemas are
// cached by their JSON encoding.
func CompileSchema(schema map[string]any) (*sjsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*sjsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := sjsonschema.CompileString("schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateParameters validates params against a JSON schema map. An empty
// schema accepts anything.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := CompileSchema(schema)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid schema: %v", err)}
	}
	if params == nil {
		params = map[string]any{}
	}
	return ValidateValue(compiled, params)
}

// ValidateValue validates an arbitrary Go value against a compiled schema.
// The value is normalised through a JSON round trip first so Go specific
// types (ints, typed slices, structs) validate like decoded JSON.
func ValidateValue(compiled *sjsonschema.Schema, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &ValidationError{Value: v, Message: fmt.Sprintf("value is not JSON encodable: %v", err)}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return &ValidationError{Value: v, Message: err.Error()}
	}
	if err := compiled.Validate(decoded); err != nil {
		return toValidationError(err)
	}
	return nil
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

func toValidationError(err error) error {
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" && strings.HasPrefix(leaf.Message, "missing properties") {
		if m := quotedName.FindStringSubmatch(leaf.Message); len(m) == 2 {
			field = m[1]
		}
	}
	return &ValidationError{Field: field, Message: leaf.Message}
}
