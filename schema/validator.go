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

	"horse.fit/feedcore/internal/article"
)

//go:embed article.schema.json
var articleSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArticlePayload checks a scraper payload (one article object or a non-empty array of
// them) against the embedded schema and decodes it into article inputs.
func ValidateArticlePayload(payload json.RawMessage) ([]article.Input, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var inputs []article.Input
	if _, isList := value.([]any); isList {
		if err := json.Unmarshal(normalized, &inputs); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	} else {
		var single article.Input
		if err := json.Unmarshal(normalized, &single); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		inputs = []article.Input{single}
	}

	for i := range inputs {
		if err := validateSemantics(i, &inputs[i]); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("article.schema.json", strings.NewReader(articleSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("article.schema.json")
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

func validateSemantics(index int, in *article.Input) error {
	if strings.TrimSpace(in.Source) == "" {
		return fmt.Errorf("articles[%d].source must not be empty", index)
	}
	if _, err := in.Build(); err != nil {
		return fmt.Errorf("articles[%d]: %w", index, err)
	}
	return nil
}
