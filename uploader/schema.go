package uploader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/metadata.schema.json
var metadataSchema []byte

const metadataSchemaID = "inmemory://metadata.schema.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func metadataValidator() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(metadataSchemaID, bytes.NewReader(metadataSchema)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(metadataSchemaID)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// ValidateDocument checks doc against the embedded metadata schema.
func ValidateDocument(doc *MetadataDocument) error {
	schema, err := metadataValidator()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var payload any
	if err := json.Unmarshal(b, &payload); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("metadata for %s failed schema validation: %w", doc.FileName, err)
	}
	return nil
}
