package mcp

import (
	"encoding/json"
	"sort"

	"github.com/brewie/voicegate/pkg/tool"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toDescriptor converts an MCP tool to a catalog descriptor
func toDescriptor(t *mcp.Tool) (*tool.Descriptor, error) {
	d := &tool.Descriptor{
		Name:        t.Name,
		Description: t.Description,
	}

	if t.InputSchema == nil {
		return d, nil
	}

	// InputSchema arrives as a generic value; round-trip it through JSON
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal input schema")
	}

	d.Params = paramsFromSchema(&schema)
	return d, nil
}

func paramsFromSchema(schema *jsonschema.Schema) []tool.Param {
	if len(schema.Properties) == 0 {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tool.Param, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		p := tool.Param{
			Name:     name,
			Required: required[name],
		}
		if prop != nil {
			p.Type = schemaType(prop)
			p.Description = prop.Description
		}
		params = append(params, p)
	}
	return params
}

func schemaType(s *jsonschema.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	// nullable parameters come as ["number", "null"]
	for _, t := range s.Types {
		if t != "null" {
			return t
		}
	}
	return ""
}
