package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "config.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the compiled configuration schema.
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// format is a config file encoding.
type format int

const (
	formatTOML format = iota
	formatJSON
	formatYAML
)

func (f format) String() string {
	switch f {
	case formatJSON:
		return "JSON"
	case formatYAML:
		return "YAML"
	default:
		return "TOML"
	}
}

// decodeDocument parses data into a generic document.
func decodeDocument(data []byte, f format) (map[string]any, error) {
	var doc map[string]any
	var err error
	switch f {
	case formatTOML:
		err = toml.Unmarshal(data, &doc)
	case formatJSON:
		err = json.Unmarshal(data, &doc)
	case formatYAML:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// validateDocument checks a generic document against the schema. The
// document is re-encoded as JSON first so TOML and YAML scalars reach the
// validator as JSON types.
func validateDocument(doc map[string]any) error {
	sch, err := Schema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}

	return sch.Validate(v)
}
