package format

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed format.schema.json
var schemaJSON []byte

const schemaURL = "format.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// ErrUnknownEncoding is returned when a document matches none of the
// supported encodings.
var ErrUnknownEncoding = errors.New("unable to parse format document (tried TOML, JSON, YAML)")

func documentSchema() (*jsonschema.Schema, error) {
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

// Load reads, validates and compiles the format document at path. The
// encoding is chosen by extension (.toml, .json, .yaml, .yml) and
// auto-detected otherwise.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read format: %w", err)
	}

	spec, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("load format %s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a format document in the encoding named by ext, checks it
// against the embedded JSON schema and compiles it.
func Parse(data []byte, ext string) (*Spec, error) {
	generic, err := decodeGeneric(data, strings.ToLower(ext))
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so the schema validator and the struct decoder
	// see the same canonical value types regardless of the source encoding.
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	var instance any
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	schema, err := documentSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(canonical, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	return New(doc)
}

func decodeGeneric(data []byte, ext string) (map[string]any, error) {
	doc := make(map[string]any)

	switch ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &doc); err == nil {
			return doc, nil
		}
		doc = make(map[string]any)
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc, nil
		}
		doc = make(map[string]any)
		if err := yaml.Unmarshal(data, &doc); err == nil {
			return doc, nil
		}
		return nil, ErrUnknownEncoding
	}

	return doc, nil
}

// Save writes the spec as a TOML document.
func Save(spec *Spec, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(spec.Document()); err != nil {
		return fmt.Errorf("encode format: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create format directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write format: %w", err)
	}
	return nil
}
