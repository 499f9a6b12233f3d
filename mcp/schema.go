package mcp

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// SchemaFor derives a tool's inputSchema from a Go argument struct via
// reflection, the same `jsonschema:"description=...,required"` struct-tag
// style used across the example pack. Pass a zero value of the argument
// type, e.g. SchemaFor(echoArgs{}), typically from a ToolHandler's
// ListTools implementation.
func SchemaFor(v interface{}) (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "mcp: reflect input schema")
	}
	return data, nil
}
