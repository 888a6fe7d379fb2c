package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed document_detail.schema.json
var documentDetailSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateDocumentDetail checks that a detail payload fetched from the
// upstream API is well-formed JSON matching the expected shape, either a
// bare body or a {"data": ...} envelope, and that it carries at least one
// identifying field. It does not normalize; callers do that separately.
func ValidateDocumentDetail(payload json.RawMessage) error {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	body, _ := value.(map[string]any)
	if inner, ok := body["data"].(map[string]any); ok {
		body = inner
	}
	if !hasIdentity(body) {
		return fmt.Errorf("payload has no uuid, id, name, or title")
	}
	return nil
}

func hasIdentity(body map[string]any) bool {
	for _, key := range []string{"uuid", "id", "name", "title"} {
		switch v := body[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return true
			}
		case json.Number:
			return true
		}
	}
	return false
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("document_detail.schema.json", strings.NewReader(documentDetailSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("document_detail.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
