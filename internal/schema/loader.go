// =============================================================================
// zx12 - Schema Loader
// =============================================================================
//
// Loads schema documents from JSON. A schema is parsed once and then shared
// read-only: load it at startup, hand the same *TransactionSchema to every
// transaction interpretation. Structural validation beyond JSON shape lives
// in internal/validation so the CLI can report findings without aborting on
// the first one.
//
// =============================================================================

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// DefaultCompositeSeparator is assumed when a schema does not declare one.
// Interpretation normally overrides it with the separator the tokenizer
// detected from ISA16.
const DefaultCompositeSeparator = ":"

// Load reads and parses a schema document from disk.
func Load(path string) (*TransactionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a schema document. Unknown fields are rejected: a typo in a
// schema silently changing interpretation semantics is exactly the failure
// mode eager loading exists to catch.
func Parse(data []byte) (*TransactionSchema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var s TransactionSchema
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding schema document: %w", err)
	}
	s.applyDefaults()
	return &s, nil
}

// applyDefaults fills derived and defaulted fields after decode.
func (s *TransactionSchema) applyDefaults() {
	if s.CompositeSeparator == "" {
		s.CompositeSeparator = DefaultCompositeSeparator
	}
	// Level codes live in the map keys; copy them into the definitions so
	// a definition is self-describing once handed to the engine.
	for code, level := range s.HierarchicalStructure {
		if level == nil {
			level = &HLLevelDefinition{}
			s.HierarchicalStructure[code] = level
		}
		level.LevelCode = code
	}
}
