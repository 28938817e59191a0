// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, schemaID, schema["$id"])
	assert.Equal(t, "Magnum Plugin Manifest", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"name", "version", "interface", "executable", "dependencies"} {
		assert.Contains(t, props, field)
	}
}

func TestValidateSchema(t *testing.T) {
	valid := []byte(`
name: png-importer
version: 1.0.0
interface: magnum.importer/1.0
executable: png-importer
`)
	assert.NoError(t, ValidateSchema(valid))

	assert.Error(t, ValidateSchema(nil))
	assert.Error(t, ValidateSchema([]byte("name: [unclosed")))

	// Wrong type for a declared field.
	wrongType := []byte("name: importer\nversion: 1.0.0\ninterface: magnum.importer/1.0\nexecutable: x\ndependencies: not-a-list\n")
	err := ValidateSchema(wrongType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestToJSONTypes(t *testing.T) {
	in := map[string]any{
		"str":  "s",
		"num":  3,
		"list": []any{true, nil, map[string]any{"k": "v"}},
	}
	out, ok := toJSONTypes(in).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s", out["str"])
	assert.Equal(t, 3, out["num"])
}
