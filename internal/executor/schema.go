package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// compileParamsSchema converts an endpoint's parameter schema into a JSON
// Schema object. It returns nil when the endpoint declares no parameters.
func compileParamsSchema(ep *domain.Endpoint) (*jsonschema.Schema, error) {
	if len(ep.ParamsSchema) == 0 {
		return nil, nil
	}

	properties := make(map[string]interface{}, len(ep.ParamsSchema))
	required := make([]string, 0)
	for name, spec := range ep.ParamsSchema {
		prop := map[string]interface{}{}
		if t := jsonType(spec.Type); t != "" {
			prop["type"] = t
		}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	doc := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", ep.Name, err)
	}
	compiled, err := compiler.Compile("params.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", ep.Name, err)
	}
	return compiled, nil
}

// jsonType maps the loose type names stored on endpoints to JSON Schema types.
func jsonType(t string) string {
	switch t {
	case "string", "text":
		return "string"
	case "number", "float":
		return "number"
	case "integer", "int":
		return "integer"
	case "boolean", "bool":
		return "boolean"
	default:
		return ""
	}
}

// ValidateParams checks params against the endpoint schema. A nil error
// means the parameters conform, or that no schema is declared.
func ValidateParams(ep *domain.Endpoint, params domain.Params) error {
	schema, err := compileParamsSchema(ep)
	if err != nil || schema == nil {
		return err
	}
	if err := schema.Validate(params.Values()); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
