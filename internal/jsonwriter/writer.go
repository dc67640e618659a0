// =============================================================================
// zx12 - JSON Writer Module
// =============================================================================
//
// Renders interpreted output documents as JSON. The writer knows nothing about
// X12 or schemas; it takes the document tree the engine assembled (maps,
// slices, strings) and controls only presentation: indentation, HTML escaping,
// trailing newline.
//
// OUTPUT STRUCTURE:
//   The converter hands this module an envelope-shaped document:
//
//   {
//     "source_file": "claims.edi",
//     "interchanges": [
//       {
//         "sender": "SUBMITTERID",
//         "functional_groups": [
//           {
//             "functional_code": "HC",
//             "transactions": [
//               { "set_id": "837", "billing_providers": [ ... ] }
//             ]
//           }
//         ]
//       }
//     ]
//   }
//
// =============================================================================

package jsonwriter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for JSON generation.
type GenerateOptions struct {
	// Pretty enables indented output.
	// Default: true
	Pretty bool

	// Indent is the string used for one indentation level when Pretty is
	// set.
	// Default: "  " (two spaces)
	Indent string

	// EscapeHTML escapes <, > and & to their \uXXXX forms. Claim data is
	// not destined for HTML, so the default keeps values readable.
	// Default: false
	EscapeHTML bool

	// TrailingNewline terminates the document with "\n".
	// Default: true
	TrailingNewline bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Pretty:          true,
		Indent:          "  ",
		EscapeHTML:      false,
		TrailingNewline: true,
	}
}

// =============================================================================
// GENERATION FUNCTIONS
// =============================================================================

// Generate renders the document with the default options.
func Generate(doc any) ([]byte, error) {
	return GenerateWithOptions(doc, DefaultGenerateOptions())
}

// GenerateWithOptions renders the document with custom options.
func GenerateWithOptions(doc any, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	enc := json.NewEncoder(&buffer)
	enc.SetEscapeHTML(options.EscapeHTML)
	if options.Pretty {
		indent := options.Indent
		if indent == "" {
			indent = "  "
		}
		enc.SetIndent("", indent)
	}

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal output document: %w", err)
	}

	out := buffer.Bytes()
	// Encode always appends a newline; honor the option instead.
	if !options.TrailingNewline {
		out = bytes.TrimRight(out, "\n")
	}
	return out, nil
}

// WriteFile renders the document and writes it to path.
func WriteFile(path string, doc any, options GenerateOptions) error {
	data, err := GenerateWithOptions(doc, options)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}
