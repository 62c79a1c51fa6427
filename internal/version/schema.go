package version

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Stored records are validated against these schemas when they come back
// out of the key-value store. A corrupt or truncated record fails here, at
// the serialization boundary, instead of surfacing later as a zero-valued
// snapshot or branch.

const snapshotSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "manuscript_id", "timestamp", "kind", "scenes", "metadata", "content_hash"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "manuscript_id": {"type": "string", "minLength": 1},
    "timestamp": {"type": "string"},
    "kind": {"enum": ["auto", "manual", "branch", "merge"]},
    "description": {"type": "string"},
    "branch_name": {"type": "string"},
    "parent_version_id": {"type": "string"},
    "scenes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "text", "index_in_manuscript"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "text": {"type": "string"},
          "index_in_manuscript": {"type": "integer"}
        }
      }
    },
    "metadata": {
      "type": "object",
      "required": ["total_word_count", "scene_count"],
      "properties": {
        "total_word_count": {"type": "integer", "minimum": 0},
        "scene_count": {"type": "integer", "minimum": 0},
        "last_modified_scene_id": {"type": "string"}
      }
    },
    "content_hash": {"type": "string", "minLength": 1}
  }
}`

const branchSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "name", "manuscript_id", "created_at", "current_version_id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "manuscript_id": {"type": "string", "minLength": 1},
    "created_at": {"type": "string"},
    "description": {"type": "string"},
    "current_version_id": {"type": "string", "minLength": 1},
    "parent_version_id": {"type": "string"},
    "is_active": {"type": "boolean"}
  }
}`

var (
	schemaOnce     sync.Once
	snapshotSchema *jsonschema.Schema
	branchSchema   *jsonschema.Schema
	schemaErr      error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot.schema.json", strings.NewReader(snapshotSchemaJSON)); err != nil {
		schemaErr = err
		return
	}
	if err := compiler.AddResource("branch.schema.json", strings.NewReader(branchSchemaJSON)); err != nil {
		schemaErr = err
		return
	}
	if snapshotSchema, schemaErr = compiler.Compile("snapshot.schema.json"); schemaErr != nil {
		return
	}
	branchSchema, schemaErr = compiler.Compile("branch.schema.json")
}

func validateRecord(schemaName string, data []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return fmt.Errorf("compile record schemas: %w", schemaErr)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}

	schema := snapshotSchema
	if schemaName == "branch" {
		schema = branchSchema
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("record failed %s schema: %w", schemaName, err)
	}
	return nil
}
