// Package contract validates job-status response bodies against the service
// contract before the probe trusts them.
package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// jobSchema is the wire contract for GET /summarize-doc/{job_id}. Completed
// jobs must carry a usable summary; failed jobs must say why.
const jobSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["job_id", "status"],
  "properties": {
    "job_id": {"type": "string", "minLength": 1},
    "status": {"enum": ["queued", "processing", "completed", "failed"]},
    "summary": {"type": "string"},
    "word_count": {"type": "integer", "minimum": 0},
    "reading_time": {"type": "string"},
    "error": {"type": "string"},
    "error_details": {"type": "string"},
    "provider": {"type": "string"}
  },
  "allOf": [
    {
      "if": {"properties": {"status": {"const": "completed"}}},
      "then": {
        "required": ["summary", "word_count", "reading_time"],
        "properties": {
          "summary": {"minLength": 1},
          "reading_time": {"minLength": 1}
        }
      }
    },
    {
      "if": {"properties": {"status": {"const": "failed"}}},
      "then": {"required": ["error"]}
    }
  ]
}`

// Validator checks raw status bodies against the job schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the job contract schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("job.json", strings.NewReader(jobSchema)); err != nil {
		return nil, fmt.Errorf("add job schema: %w", err)
	}
	schema, err := compiler.Compile("job.json")
	if err != nil {
		return nil, fmt.Errorf("compile job schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateJob checks a raw status body against the contract.
func (v *Validator) ValidateJob(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("unmarshal status body: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("status body violates contract: %w", err)
	}
	return nil
}
