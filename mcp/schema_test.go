package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemaTestArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo"`
	N    int    `json:"n,omitempty" jsonschema:"description=Repeat count"`
}

func TestSchemaForDerivesPropertiesAndRequired(t *testing.T) {
	raw, err := SchemaFor(schemaTestArgs{})
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "object", doc["type"])

	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "text")
	assert.Contains(t, props, "n")

	required, ok := doc["required"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, required, "text")
	assert.NotContains(t, required, "n")
}
