// =============================================================================
// zx12 - X12 Tokenizer
// =============================================================================
//
// This package reads raw X12 interchange text and produces the normalized
// segment stream consumed by the interpretation engine. Responsibilities:
//   1. Detect and validate the fixed-width ISA header
//   2. Extract the four delimiter characters from their fixed ISA offsets
//   3. Split the document into segments and elements
//   4. Group segments into envelope structures (see envelope.go)
//
// The tokenizer is deliberately format-only: it knows nothing about schemas,
// loops, or hierarchy. Everything downstream works on types.Segment values.
//
// =============================================================================

package x12

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/LibrePPS/zx12-go/internal/types"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// The ISA segment is the one fixed-width record in X12: always exactly 106
// bytes including its terminator, which is what makes delimiter detection
// possible before any splitting has happened.
const (
	// isaByteCount is the length of a valid ISA segment including the
	// segment terminator.
	isaByteCount = 106

	// isaSegmentID is the interchange header tag.
	isaSegmentID = "ISA"

	// isaElementSeparatorOffset is the byte position of the element
	// separator (the byte immediately after "ISA").
	isaElementSeparatorOffset = 3

	// isaFirstElementEndOffset is the byte position of the separator that
	// closes ISA01. ISA01 is always two characters, so a well-formed header
	// repeats the element separator here.
	isaFirstElementEndOffset = 6

	// isaRepetitionSeparatorOffset is the byte position of ISA11, the
	// repetition separator.
	isaRepetitionSeparatorOffset = 82

	// isaComponentSeparatorOffset is the byte position of ISA16, the
	// component (composite) separator.
	isaComponentSeparatorOffset = 104

	// isaSegmentTerminatorOffset is the byte position of the segment
	// terminator that ends the ISA segment and every segment after it.
	isaSegmentTerminatorOffset = 105
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidISA indicates the input does not begin with a well-formed
// 106-byte ISA header, so delimiters cannot be detected.
var ErrInvalidISA = errors.New("invalid or truncated ISA header")

// ErrNoSegments indicates the input contained no segments after the ISA
// header was consumed.
var ErrNoSegments = errors.New("document contains no segments")

// =============================================================================
// TOKENIZATION
// =============================================================================

// Tokenize splits a raw X12 document into its segment stream and reports the
// delimiters declared by the ISA header. The ISA segment itself is included
// in the returned stream as segment 0.
//
// Leading whitespace and a UTF-8 BOM are tolerated; anything else before
// "ISA" is an error.
func Tokenize(data []byte) ([]types.Segment, types.Delimiters, error) {
	var delims types.Delimiters

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	data = bytes.TrimLeft(data, " \t\r\n")

	if len(data) < isaByteCount || !bytes.HasPrefix(data, []byte(isaSegmentID)) {
		return nil, delims, fmt.Errorf("%w: document shorter than %d bytes or missing %q prefix",
			ErrInvalidISA, isaByteCount, isaSegmentID)
	}

	delims = types.Delimiters{
		Element:    data[isaElementSeparatorOffset],
		Repetition: data[isaRepetitionSeparatorOffset],
		Component:  data[isaComponentSeparatorOffset],
		Segment:    data[isaSegmentTerminatorOffset],
	}

	// A well-formed header repeats the element separator after the two
	// character ISA01. If it does not, offset 3 held data, not a separator.
	if data[isaFirstElementEndOffset] != delims.Element {
		return nil, delims, fmt.Errorf("%w: element separator %q not found at ISA01 boundary",
			ErrInvalidISA, delims.Element)
	}
	if delims.Element == delims.Segment || delims.Element == delims.Component {
		return nil, delims, fmt.Errorf("%w: delimiter characters collide", ErrInvalidISA)
	}

	segments := splitSegments(string(data), delims)
	if len(segments) == 0 {
		return nil, delims, ErrNoSegments
	}
	return segments, delims, nil
}

// splitSegments cuts the document on the segment terminator and each segment
// on the element separator. Line breaks after a terminator are cosmetic in
// most real-world files and are stripped.
func splitSegments(data string, delims types.Delimiters) []types.Segment {
	raw := strings.Split(data, string(delims.Segment))
	segments := make([]types.Segment, 0, len(raw))
	for _, chunk := range raw {
		chunk = strings.Trim(chunk, " \t\r\n")
		if chunk == "" {
			continue
		}
		elements := strings.Split(chunk, string(delims.Element))
		segments = append(segments, types.Segment{Elements: elements})
	}
	return segments
}
