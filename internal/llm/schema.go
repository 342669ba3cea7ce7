package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON Schema document. It compiles itself on first use;
// share it by pointer.
type Schema struct {
	Name        string // kebab-case, e.g. "coaching-note"
	Description string
	Definition  map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// Check reports whether raw is JSON satisfying the schema.
func (s *Schema) Check(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("not JSON: %w", err)
	}
	compiled, err := s.compile()
	if err != nil {
		return err
	}
	return compiled.Validate(v)
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		// The compiler wants plain decoded JSON, not Go literals.
		doc, err := json.Marshal(s.Definition)
		if err != nil {
			s.err = fmt.Errorf("encode schema %s: %w", s.Name, err)
			return
		}
		var def any
		if err := json.Unmarshal(doc, &def); err != nil {
			s.err = fmt.Errorf("decode schema %s: %w", s.Name, err)
			return
		}
		url := "schema://" + s.Name + ".json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, def); err != nil {
			s.err = fmt.Errorf("add schema %s: %w", s.Name, err)
			return
		}
		if s.compiled, err = c.Compile(url); err != nil {
			s.err = fmt.Errorf("compile schema %s: %w", s.Name, err)
		}
	})
	return s.compiled, s.err
}
