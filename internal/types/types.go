// =============================================================================
// zx12 - Shared Types
// =============================================================================
//
// This package contains shared leaf types used across multiple modules to
// avoid import cycles. Types defined here are used by:
//   - x12 (tokenizer/envelope)
//   - engine
//   - converter
//
// =============================================================================

package types

// =============================================================================
// SEGMENT TYPES
// =============================================================================

// Segment is one record of an X12 transaction: an ordered sequence of
// element strings with the segment identifier at index 0. Segments are
// immutable once produced by the tokenizer.
type Segment struct {
	// Elements holds the segment id at index 0 followed by the data
	// elements in document order.
	Elements []string
}

// NewSegment builds a segment from its id and data elements.
func NewSegment(id string, elements ...string) Segment {
	all := make([]string, 0, len(elements)+1)
	all = append(all, id)
	all = append(all, elements...)
	return Segment{Elements: all}
}

// ID returns the segment identifier (element 0), or "" for an empty segment.
func (s Segment) ID() string {
	if len(s.Elements) == 0 {
		return ""
	}
	return s.Elements[0]
}

// Element returns the data element at the schema-facing position pos.
// Position 0 is the first data element, stored at Elements[pos+1]; the
// segment id is never addressable through this method. The second return
// is false when the segment is too short to contain the position.
func (s Segment) Element(pos int) (string, bool) {
	idx := pos + 1
	if pos < 0 || idx >= len(s.Elements) {
		return "", false
	}
	return s.Elements[idx], true
}

// ElementCount returns the number of data elements (excluding the id).
func (s Segment) ElementCount() int {
	if len(s.Elements) == 0 {
		return 0
	}
	return len(s.Elements) - 1
}

// =============================================================================
// DELIMITER TYPES
// =============================================================================

// Delimiters holds the separator characters detected from an interchange's
// ISA header. All four are single bytes in X12.
type Delimiters struct {
	// Element separates elements within a segment (ISA byte 3, commonly '*').
	Element byte

	// Component separates sub-values inside a composite element
	// (ISA16, commonly ':').
	Component byte

	// Repetition separates repeated occurrences within one element
	// (ISA11, commonly '^').
	Repetition byte

	// Segment terminates a segment (the byte after ISA16, commonly '~').
	Segment byte
}

// ComponentString returns the component separator as a string, for use by
// composite and repeating-element splitting.
func (d Delimiters) ComponentString() string {
	return string(d.Component)
}
