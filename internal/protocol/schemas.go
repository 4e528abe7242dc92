package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"festering.ai/schemas"
)

const (
	SchemaSourceRecords = "source_records.schema.json"
	SchemaSubscribe     = "subscribe.schema.json"
	SchemaTick          = "tick.schema.json"
	SchemaChanges       = "changes.schema.json"
	SchemaAdminRequest  = "admin_request.schema.json"
	SchemaChunkVoxels   = "chunk_voxels.schema.json"
)

const schemaBase = "https://festering.ai/schemas/"

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileAll() {
	names := []string{SchemaSourceRecords, SchemaSubscribe, SchemaTick, SchemaChanges, SchemaAdminRequest, SchemaChunkVoxels}
	c := jsonschema.NewCompiler()
	for _, name := range names {
		b, err := schemas.FS.ReadFile(name)
		if err != nil {
			compileErr = err
			return
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("%s: %w", name, err)
			return
		}
	}
	compiled = make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			compileErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		compiled[name] = s
	}
}

// Schema returns the compiled schema for one of the Schema* names.
func Schema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// SchemaError is a document that parsed as JSON but failed validation.
type SchemaError struct {
	Schema string
	Err    error
}

func (e *SchemaError) Error() string { return e.Schema + ": " + e.Err.Error() }
func (e *SchemaError) Unwrap() error { return e.Err }

// Validate checks the JSON document doc against the named schema.
func Validate(name string, doc []byte) error {
	s, err := Schema(name)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return &SchemaError{Schema: name, Err: err}
	}
	if err := s.Validate(v); err != nil {
		return &SchemaError{Schema: name, Err: err}
	}
	return nil
}

// ValidateValue marshals v and validates the result.
func ValidateValue(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return Validate(name, b)
}
