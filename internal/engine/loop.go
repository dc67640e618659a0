// =============================================================================
// zx12 - Loop Boundary Engine
// =============================================================================
//
// Trigger-based repeating loops. Every unprocessed occurrence of the trigger
// id inside the scan window opens one instance; an instance runs until the
// next occurrence of the SAME trigger or the end of the enclosing window.
// Nested loop triggers never terminate the parent instance; the only thing
// that closes instance k is trigger occurrence k+1 or the window end.
//
// Within an instance the pass order is fixed: groups, then individual
// definitions, then nested loops. Running the individual pass before
// recursing is what lets a parent definition claim its own segments anywhere
// in the instance window, including after segments a nested loop will claim.
//
// =============================================================================

package engine

import (
	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/types"
)

// =============================================================================
// SHARED PASSES
// =============================================================================

// applyDefs runs the Group Pass then the Individual Pass for a definition
// list over [lo, hi), accumulating output into target.
func (r *run) applyDefs(defs []schema.SegmentDefinition, lo, hi int, target map[string]any) {
	for i := range defs {
		if defs[i].Grouped() {
			r.applyGroupDef(&defs[i], lo, hi, target)
		}
	}
	for i := range defs {
		if !defs[i].Grouped() {
			r.applyIndividualDef(&defs[i], lo, hi, target)
		}
	}
}

// applyGroupDef claims the definition's first matching occurrence in the
// window as a contiguous group; when the group does not appear contiguously
// and in declared order, the lead segment alone is claimed and mapped
// ungrouped (the fallback is not an error).
func (r *run) applyGroupDef(def *schema.SegmentDefinition, lo, hi int, target map[string]any) {
	start := r.findFirstMatch(def, lo, hi)
	if start < 0 {
		r.noteAbsence(def)
		return
	}

	if claim, ok := r.tryClaimGroup(def, start, hi); ok {
		r.mapAndPlace(def, claim.leadIndex, claim.members, target)
		return
	}

	r.processed.Claim(start)
	r.mapAndPlace(def, start, nil, target)
}

// applyIndividualDef claims and maps the first unprocessed match in the
// window, or every unprocessed match when the definition is Multiple.
func (r *run) applyIndividualDef(def *schema.SegmentDefinition, lo, hi int, target map[string]any) {
	found := false
	for i := lo; i < hi; i++ {
		if r.processed.Claimed(i) || !matches(def, r.segs[i]) {
			continue
		}
		r.processed.Claim(i)
		r.mapAndPlace(def, i, nil, target)
		found = true
		if !def.Multiple {
			break
		}
	}
	if !found {
		r.noteAbsence(def)
	}
}

// applyIndividualDefs is the flat pass used for transaction headers and
// trailers: individual matching only, no group claiming.
func (r *run) applyIndividualDefs(defs []schema.SegmentDefinition, lo, hi int, target map[string]any) {
	for i := range defs {
		r.applyIndividualDef(&defs[i], lo, hi, target)
	}
}

// noteAbsence records a required definition that matched nothing in its
// window. Optional definitions stay silent.
func (r *run) noteAbsence(def *schema.SegmentDefinition) {
	if def.Optional {
		return
	}
	r.diags = append(r.diags, Diagnostic{
		Kind:         DiagMissingElement,
		SegmentID:    def.ID,
		SegmentIndex: -1,
		ElementPos:   -1,
		Message:      "required segment not found in window",
	})
}

// mapAndPlace maps one claimed occurrence and hands the partial object to
// the assembler: appended to the definition's output array, or merged into
// the containing object when no array is named.
func (r *run) mapAndPlace(def *schema.SegmentDefinition, segIndex int, members map[string]types.Segment, target map[string]any) {
	partial, diags := mapElements(r.segs[segIndex], segIndex, def.ElementMappings, members, r.compositeSep)
	r.diags = append(r.diags, diags...)

	if def.RepeatingElements != nil {
		rep, repDiags := mapRepeating(r.segs[segIndex], segIndex, def.RepeatingElements, r.compositeSep)
		r.diags = append(r.diags, repDiags...)
		mergeObject(partial, rep)
	}

	if len(partial) == 0 {
		return
	}
	if def.OutputArray != "" {
		if err := appendToArray(target, def.OutputArray, partial); err != nil {
			r.diags = append(r.diags, Diagnostic{
				Kind:         DiagSchemaConfig,
				SegmentID:    def.ID,
				SegmentIndex: segIndex,
				ElementPos:   -1,
				Message:      err.Error(),
			})
		}
		return
	}
	mergeObject(target, partial)
}

// =============================================================================
// LOOP EXECUTION
// =============================================================================

// runLoop computes the loop's instance boundaries inside [lo, hi) and
// interprets each instance. Instance k's window is [t_k, t_k+1) for all but
// the last, and [t_n, hi) for the last. The windows partition the
// trigger-following remainder of the scan window with no gaps or overlaps.
func (r *run) runLoop(def *schema.LoopDefinition, lo, hi int) []map[string]any {
	var triggers []int
	for i := lo; i < hi; i++ {
		if !r.processed.Claimed(i) && r.segs[i].ID() == def.TriggerSegmentID {
			triggers = append(triggers, i)
		}
	}

	instances := make([]map[string]any, 0, len(triggers))
	for k, t := range triggers {
		end := hi
		if k+1 < len(triggers) {
			end = triggers[k+1]
		}
		instances = append(instances, r.runLoopInstance(def, t, end))
	}
	return instances
}

// runLoopInstance interprets one instance window.
func (r *run) runLoopInstance(def *schema.LoopDefinition, lo, hi int) map[string]any {
	instance := map[string]any{}
	r.applyDefs(def.SegmentDefs, lo, hi, instance)

	// Nested loops see the full instance window; anything the parent's own
	// definitions needed has already been claimed above.
	for i := range def.NestedLoops {
		r.attachLoop(&def.NestedLoops[i], lo, hi, instance)
	}
	return instance
}

// attachLoop runs a loop and attaches its instances to the parent object:
// appended to the loop's output array, or (for a singleton loop with no
// array name) merged straight into the parent.
func (r *run) attachLoop(def *schema.LoopDefinition, lo, hi int, parent map[string]any) {
	instances := r.runLoop(def, lo, hi)
	if len(instances) == 0 {
		return
	}

	if def.OutputArray == "" {
		for _, instance := range instances {
			mergeObject(parent, instance)
		}
		return
	}
	for _, instance := range instances {
		if err := appendToArray(parent, def.OutputArray, instance); err != nil {
			r.diags = append(r.diags, Diagnostic{
				Kind:         DiagSchemaConfig,
				SegmentID:    def.TriggerSegmentID,
				SegmentIndex: -1,
				ElementPos:   -1,
				Message:      err.Error(),
			})
			return
		}
	}
}
