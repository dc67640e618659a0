// =============================================================================
// zx12 - Interpretation Diagnostics
// =============================================================================
//
// Non-fatal findings accumulated while interpreting one transaction. The
// engine favors best-effort structured output over hard failure: a missing
// element or a failed expect check is recorded and interpretation moves on.
// Only a structural HL problem (cycle, unresolved parent) aborts, and that
// aborts the one transaction, not the batch.
//
// =============================================================================

package engine

import "fmt"

// =============================================================================
// DIAGNOSTIC TYPES
// =============================================================================

// DiagnosticKind classifies a non-fatal finding.
type DiagnosticKind string

const (
	// DiagMissingElement records a required element (or required segment)
	// the document did not contain.
	DiagMissingElement DiagnosticKind = "missing_element"

	// DiagValueMismatch records an element whose value failed an expect
	// check. The actual value is still mapped.
	DiagValueMismatch DiagnosticKind = "value_mismatch"

	// DiagSchemaConfig records a schema problem the validator could not
	// catch statically, surfaced per occurrence (an output path colliding
	// with an earlier value, a repeating qualifier no pattern claims).
	DiagSchemaConfig DiagnosticKind = "schema_config"
)

// Diagnostic is one recorded finding.
type Diagnostic struct {
	// Kind classifies the finding.
	Kind DiagnosticKind

	// SegmentID is the id of the segment being mapped, "" when the
	// finding is not tied to a concrete segment occurrence.
	SegmentID string

	// SegmentIndex is the segment's position in the transaction stream,
	// -1 when not tied to an occurrence.
	SegmentIndex int

	// ElementPos is the 0-based data element position involved, -1 when
	// the finding covers the whole segment.
	ElementPos int

	// Message describes the finding.
	Message string
}

// String renders the diagnostic for logs and reports.
func (d Diagnostic) String() string {
	switch {
	case d.SegmentIndex < 0:
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	case d.ElementPos < 0:
		return fmt.Sprintf("[%s] %s (segment %d): %s", d.Kind, d.SegmentID, d.SegmentIndex, d.Message)
	default:
		return fmt.Sprintf("[%s] %s (segment %d, element %d): %s",
			d.Kind, d.SegmentID, d.SegmentIndex, d.ElementPos, d.Message)
	}
}

// Diagnostics is the ordered accumulation for one transaction.
type Diagnostics []Diagnostic

// Filter returns the diagnostics of one kind, in order.
func (ds Diagnostics) Filter(kind DiagnosticKind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// HasKind reports whether any diagnostic of the kind was recorded.
func (ds Diagnostics) HasKind(kind DiagnosticKind) bool {
	for _, d := range ds {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// STRUCTURAL ERRORS
// =============================================================================

// StructuralError is the engine's only fatal condition: the HL segments of a
// transaction do not form a forest. It aborts that transaction's
// interpretation; sibling transactions are unaffected.
type StructuralError struct {
	// Reason describes the corruption.
	Reason string

	// SegmentIndex points at the offending HL segment, -1 when the
	// problem spans several.
	SegmentIndex int
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if e.SegmentIndex < 0 {
		return "structural error: " + e.Reason
	}
	return fmt.Sprintf("structural error at segment %d: %s", e.SegmentIndex, e.Reason)
}
