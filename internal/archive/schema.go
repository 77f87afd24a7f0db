package archive

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed job.schema.json
var jobSchemaJSON []byte

var (
	schemaOnce sync.Once
	jobSchema  *jsonschema.Schema
	schemaErr  error
)

func compiledJobSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("job.schema.json", bytes.NewReader(jobSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		jobSchema, schemaErr = compiler.Compile("job.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return jobSchema, schemaErr
}

// validateJobDocument checks raw job.json bytes against the embedded schema.
func validateJobDocument(data []byte) error {
	schema, err := compiledJobSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("job does not match schema: %w", err)
	}
	return nil
}
