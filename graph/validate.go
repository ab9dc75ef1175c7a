package graph

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/berrylands/noflo/errors"
)

// definitionSchema is the JSON schema for the graph definition format
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["processes", "connections"],
  "properties": {
    "caseSensitive": {"type": "boolean"},
    "properties": {"type": "object"},
    "processes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "component": {"type": "string"},
          "metadata": {"type": "object"}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["tgt"],
        "properties": {
          "src": {"$ref": "#/definitions/endpoint"},
          "data": {},
          "tgt": {"$ref": "#/definitions/endpoint"},
          "metadata": {"type": "object"}
        }
      }
    },
    "inports": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/portref"}
    },
    "outports": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/portref"}
    }
  },
  "definitions": {
    "endpoint": {
      "type": "object",
      "required": ["process", "port"],
      "properties": {
        "process": {"type": "string"},
        "port": {"type": "string"},
        "index": {"type": "integer", "minimum": 0}
      }
    },
    "portref": {
      "type": "object",
      "required": ["process", "port"],
      "properties": {
        "process": {"type": "string"},
        "port": {"type": "string"}
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// validateDefinition checks a JSON graph definition against the schema
func validateDefinition(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.WrapInvalid(err, "Graph", "validateDefinition", "schema evaluation")
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %v", errors.ErrInvalidGraph, issues),
		"Graph", "validateDefinition", "definition validation")
}
