// =============================================================================
// zx12 - Schema Interpretation Engine
// =============================================================================
//
// The Transaction Driver. One Interpret call walks one transaction's segment
// stream against the schema in a fixed order:
//
//   1. transaction_header    flat individual pass over the leading window
//   2. sequential_sections   in declared order, each over its trigger window
//   3. hierarchical_structure the HL engine over the middle window
//   4. transaction_trailer   flat individual pass over the trailing window
//
// Segments no pass claims are silently ignored; schemas may be partial.
// All state for a call lives in the run value; an Interpreter is immutable
// after New and safe to share across goroutines interpreting independent
// transactions.
//
// =============================================================================

package engine

import (
	"fmt"

	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/types"
)

// =============================================================================
// PUBLIC API
// =============================================================================

// Options adjust interpretation behavior.
type Options struct {
	// CompositeSeparator overrides the schema's composite separator,
	// normally with the ISA16 value the tokenizer detected.
	CompositeSeparator string

	// StrictExpect escalates accumulated value mismatches to an error
	// after interpretation completes.
	StrictExpect bool
}

// Interpreter interprets transactions against one loaded schema.
type Interpreter struct {
	schema       *schema.TransactionSchema
	opts         Options
	compositeSep string
}

// New builds an interpreter for a schema. The schema must already be
// validated; it is shared read-only from here on.
func New(s *schema.TransactionSchema, opts Options) *Interpreter {
	sep := opts.CompositeSeparator
	if sep == "" {
		sep = s.CompositeSeparator
	}
	if sep == "" {
		sep = schema.DefaultCompositeSeparator
	}
	return &Interpreter{schema: s, opts: opts, compositeSep: sep}
}

// Result is one transaction's interpretation output.
type Result struct {
	// Document is the assembled output tree.
	Document map[string]any

	// Diagnostics are the non-fatal findings, in discovery order.
	Diagnostics Diagnostics

	// SegmentsProcessed counts the segment indices some pass claimed.
	SegmentsProcessed int
}

// run is the per-transaction interpretation state, threaded through every
// pass. Created per Interpret call; never shared.
type run struct {
	schema       *schema.TransactionSchema
	segs         []types.Segment
	processed    *processedSet
	diags        Diagnostics
	compositeSep string
}

// =============================================================================
// TRANSACTION DRIVER
// =============================================================================

// Interpret walks one transaction's segment stream and assembles its output
// document. The only error condition is a structural HL problem, which
// aborts this transaction; with StrictExpect set, accumulated value
// mismatches also return an error, alongside the partial result.
func (it *Interpreter) Interpret(segments []types.Segment) (*Result, error) {
	n := len(segments)
	r := &run{
		schema:       it.schema,
		segs:         segments,
		processed:    newProcessedSet(n),
		compositeSep: it.compositeSep,
	}
	doc := map[string]any{}

	hierStart := findHierarchyStart(segments)
	trailerStart := findTrailerStart(segments, it.schema.TransactionTrailer)
	middleEnd := hierStart
	if trailerStart < middleEnd {
		middleEnd = trailerStart
	}

	windows := sectionWindows(it.schema.SequentialSections, segments, middleEnd)

	headerEnd := middleEnd
	if len(windows) > 0 {
		headerEnd = windows[0].lo
	}
	r.applyIndividualDefs(it.schema.TransactionHeader, 0, headerEnd, doc)

	for _, w := range windows {
		target := doc
		if w.sec.OutputPath != "" {
			obj, err := ensurePath(doc, w.sec.OutputPath)
			if err != nil {
				r.diags = append(r.diags, Diagnostic{
					Kind:         DiagSchemaConfig,
					SegmentIndex: -1,
					ElementPos:   -1,
					Message:      fmt.Sprintf("section %q: %s", w.sec.Name, err),
				})
				continue
			}
			target = obj
		}
		r.applyDefs(w.sec.SegmentDefs, w.lo, w.hi, target)
		for i := range w.sec.Loops {
			r.attachLoop(&w.sec.Loops[i], w.lo, w.hi, target)
		}
	}

	if err := r.runHierarchy(hierStart, trailerStart, doc); err != nil {
		return nil, err
	}

	r.applyIndividualDefs(it.schema.TransactionTrailer, trailerStart, n, doc)

	res := &Result{
		Document:          doc,
		Diagnostics:       r.diags,
		SegmentsProcessed: r.processed.Count(),
	}
	if it.opts.StrictExpect {
		if mismatches := r.diags.Filter(DiagValueMismatch); len(mismatches) > 0 {
			return res, fmt.Errorf("strict expect: %d value mismatch(es), first: %s",
				len(mismatches), mismatches[0])
		}
	}
	return res, nil
}

// =============================================================================
// WINDOW COMPUTATION
// =============================================================================

// findHierarchyStart returns the index of the first HL segment, or the
// stream length when the transaction has no hierarchy.
func findHierarchyStart(segments []types.Segment) int {
	for i := range segments {
		if segments[i].ID() == hlSegmentID {
			return i
		}
	}
	return len(segments)
}

// findTrailerStart walks backward from the stream end while segment ids
// belong to the trailer definitions, returning where the trailing window
// begins. With no trailer definitions the trailing window is empty.
func findTrailerStart(segments []types.Segment, trailer []schema.SegmentDefinition) int {
	if len(trailer) == 0 {
		return len(segments)
	}
	ids := make(map[string]bool, len(trailer))
	for i := range trailer {
		ids[trailer[i].ID] = true
	}
	ts := len(segments)
	for ts > 0 && ids[segments[ts-1].ID()] {
		ts--
	}
	return ts
}

// sectionWindow pairs a section definition with its computed scan window.
type sectionWindow struct {
	sec    *schema.SectionDefinition
	lo, hi int
}

// sectionWindows locates each section's trigger in declared order within
// [0, hi). A section's window runs from its trigger to the next section's
// trigger, or to hi for the last; a section whose trigger never occurs is
// skipped.
func sectionWindows(sections []schema.SectionDefinition, segments []types.Segment, hi int) []sectionWindow {
	var windows []sectionWindow
	searchLo := 0
	for i := range sections {
		sec := &sections[i]
		trigger := -1
		for j := searchLo; j < hi; j++ {
			if segments[j].ID() == sec.Trigger.ID && matchesQualifier(sec.Trigger.Qualifier, segments[j]) {
				trigger = j
				break
			}
		}
		if trigger < 0 {
			continue
		}
		if len(windows) > 0 {
			windows[len(windows)-1].hi = trigger
		}
		windows = append(windows, sectionWindow{sec: sec, lo: trigger, hi: hi})
		searchLo = trigger + 1
	}
	return windows
}
