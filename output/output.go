// Package output derives structured-output contracts from Go types and
// coerces raw model text back into those types.
//
// A Schema is reflected once from the target type. Its JSON form is sent to
// models with native structured output support; Instructions renders the
// textual contract appended to the system message for every other model.
// Coerce parses the model text, retrying once without a Markdown code fence.
package output

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentcore/internal/util"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is the structured-output contract of one Go type.
type Schema struct {
	typ      reflect.Type
	schema   map[string]any
	compiled *sjsonschema.Schema
}

// cosmetic schema keywords removed from the textual contract.
var cosmetic = []string{"title", "$schema", "$id", "additionalProperties"}

// NewSchema reflects the contract of v's type. v is usually a zero value or
// a pointer to one.
func NewSchema(v any) (*Schema, error) {
	if v == nil {
		return nil, fmt.Errorf("output: nil response model")
	}
	typ := reflect.TypeOf(v)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	schema, err := util.CreateSchema(reflect.New(typ).Interface())
	if err != nil {
		return nil, fmt.Errorf("output: reflect %s: %w", typ, err)
	}
	compiled, err := util.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("output: compile %s: %w", typ, err)
	}
	return &Schema{typ: typ, schema: schema, compiled: compiled}, nil
}

// Type returns the target type.
func (s *Schema) Type() reflect.Type { return s.typ }

// Name returns the type name, or "response" for unnamed types.
func (s *Schema) Name() string {
	if n := s.typ.Name(); n != "" {
		return n
	}
	return "response"
}

// JSON returns a copy of the full JSON schema.
func (s *Schema) JSON() map[string]any {
	return deepCopy(s.schema).(map[string]any)
}

// RequiredFields returns the required top level field names.
func (s *Schema) RequiredFields() []string {
	var out []string
	switch req := s.schema["required"].(type) {
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
	case []string:
		out = append(out, req...)
	}
	return out
}

// Properties returns the top level property map with nested definitions
// inlined and cosmetic metadata stripped.
func (s *Schema) Properties() map[string]any {
	props, _ := s.schema["properties"].(map[string]any)
	out := make(map[string]any, len(props))
	for name, p := range props {
		out[name] = strip(p)
	}
	return out
}

// Instructions renders the textual contract for models without native
// structured output.
func (s *Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Provide your output as a JSON containing the following fields:")
	fields := s.RequiredFields()
	if len(fields) == 0 {
		fields = sortedKeys(s.Properties())
	}
	if raw, err := json.Marshal(fields); err == nil {
		b.WriteString("\n<json_fields>\n")
		b.Write(raw)
		b.WriteString("\n</json_fields>")
	}
	if props := s.Properties(); len(props) > 0 {
		if raw, err := json.MarshalIndent(props, "", "  "); err == nil {
			b.WriteString("\nHere are the properties for each field:\n<json_field_properties>\n")
			b.Write(raw)
			b.WriteString("\n</json_field_properties>")
		}
	}
	b.WriteString("\nStart your response with `{` and end it with `}`.")
	b.WriteString("\nYour output will be parsed as JSON, so make sure it only contains valid JSON.")
	return b.String()
}

// Coerce parses raw into the target type. When the first parse fails and raw
// is wrapped in a ``` fence, the fence is stripped and the parse retried once.
// The returned value has the target type (not a pointer to it).
func (s *Schema) Coerce(raw string) (any, bool) {
	if v, ok := s.parse(raw); ok {
		return v, true
	}
	if inner, fenced := StripFence(raw); fenced {
		return s.parse(inner)
	}
	return nil, false
}

func (s *Schema) parse(raw string) (any, bool) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, false
	}
	if err := util.ValidateValue(s.compiled, decoded); err != nil {
		return nil, false
	}
	ptr := reflect.New(s.typ)
	if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
		return nil, false
	}
	return ptr.Elem().Interface(), true
}

var schemaCache sync.Map // reflect.Type -> *Schema

// Coerce is the generic form of Schema.Coerce for a target type T.
func Coerce[T any](raw string) (T, bool) {
	var zero T
	s, err := schemaFor[T]()
	if err != nil {
		return zero, false
	}
	v, ok := s.Coerce(raw)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

func schemaFor[T any]() (*Schema, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(*Schema), nil
	}
	s, err := NewSchema(new(T))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(typ, s)
	return s, nil
}

// StripFence removes a surrounding Markdown code fence (``` or ```json). It
// reports false when raw is not fenced.
func StripFence(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || len(s) < 6 {
		return raw, false
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string (json, JSON, ...)
		s = s[nl+1:]
	} else {
		return raw, false
	}
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "```") {
		return raw, false
	}
	return strings.TrimSpace(strings.TrimSuffix(s, "```")), true
}

// strip removes cosmetic keywords from a schema node. Keys of "properties"
// maps are field names and are kept.
func strip(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			if props, ok := e.(map[string]any); ok && k == "properties" {
				fields := make(map[string]any, len(props))
				for name, p := range props {
					fields[name] = strip(p)
				}
				out[k] = fields
				continue
			}
			out[k] = strip(e)
		}
		for _, k := range cosmetic {
			delete(out, k)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = strip(e)
		}
		return out
	}
	return v
}

func deepCopy(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = deepCopy(e)
		}
		return out
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
