package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	A string `json:"a" jsonschema:"description=Field A"`
	B *int   `json:"b,omitempty"`
	C int    `json:"c,omitempty"`
	N inner  `json:"n"`
}

type inner struct {
	X int `json:"x"`
}

func TestCreateSchema(t *testing.T) {
	schema, err := CreateSchema(sampleArgs{})
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$ref")

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Equal(t, "Field A", props["a"].(map[string]any)["description"])

	// nested definitions are inlined
	n := props["n"].(map[string]any)
	assert.Equal(t, "object", n["type"])

	assert.ElementsMatch(t, []any{"a", "n"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []string{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	vErr, ok := err.(*ValidationError)
	require.True(t, ok, "expected ValidationError, got %T", err)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.Error(t, err)
	vErr, ok = err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "x", vErr.Field)
}

func TestValidateParameters_EmptySchema(t *testing.T) {
	assert.NoError(t, ValidateParameters(map[string]any{"anything": true}, nil))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name | upper}} from {{default \"nowhere\" .city}}", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA from nowhere", out)

	out, err = RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}

func TestCreateSchema_UnnamedTypes(t *testing.T) {
	t.Run("anonymous struct", func(t *testing.T) {
		schema, err := CreateSchema(struct {
			A int `json:"a"`
		}{})
		require.NoError(t, err)
		assert.Equal(t, "object", schema["type"])
		props := schema["properties"].(map[string]any)
		assert.Equal(t, "integer", props["a"].(map[string]any)["type"])
		assert.ElementsMatch(t, []any{"a"}, schema["required"])
	})

	t.Run("empty struct pointer", func(t *testing.T) {
		schema, err := CreateSchema(&struct{}{})
		require.NoError(t, err)
		assert.Equal(t, "object", schema["type"])
	})

	t.Run("map", func(t *testing.T) {
		schema, err := CreateSchema(map[string]int{})
		require.NoError(t, err)
		assert.Equal(t, "object", schema["type"])
		assert.Equal(t, "integer", schema["additionalProperties"].(map[string]any)["type"])
	})

	t.Run("nil", func(t *testing.T) {
		_, err := CreateSchema(nil)
		assert.Error(t, err)
	})
}
