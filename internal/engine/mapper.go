// =============================================================================
// zx12 - Element Mapper
// =============================================================================
//
// Extracts a segment's data elements into a partial output object under the
// control of an element-mapping list: composite splitting, transforms,
// expect checks, value maps, dot-path placement, and qualifier-driven
// flattening. The mapper is stateless between calls: the same segment and
// mapping list always produce the same partial object.
//
// =============================================================================

package engine

import (
	"fmt"
	"strings"

	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/types"
)

// =============================================================================
// ELEMENT MAPPING
// =============================================================================

// mapElements runs one mapping list over a segment (and its group members,
// when the list carries seg-qualified mappings). members may be nil: that is
// the ungrouped fallback, and mappings naming other group members are
// skipped silently; their absence is exactly what the fallback means.
func mapElements(seg types.Segment, segIndex int, mappings []schema.ElementMapping,
	members map[string]types.Segment, compositeSep string) (map[string]any, Diagnostics) {

	partial := map[string]any{}
	var diags Diagnostics

	// pendingKey carries the most recent mapped value of a non-flatten
	// mapping; an empty-output mapping emits {pendingKey: value}. The first
	// mapping of a list may itself have an empty output: it produces the
	// key and emits nothing.
	pendingKey := ""
	havePending := false

	for i := range mappings {
		m := &mappings[i]

		src := seg
		if m.Seg != "" && m.Seg != seg.ID() {
			member, ok := members[m.Seg]
			if !ok {
				continue
			}
			src = member
		}

		raw, ok := src.Element(m.SegPos)
		if !ok {
			if !m.Optional {
				diags = append(diags, Diagnostic{
					Kind:         DiagMissingElement,
					SegmentID:    src.ID(),
					SegmentIndex: segIndex,
					ElementPos:   m.SegPos,
					Message:      fmt.Sprintf("segment has %d elements", src.ElementCount()),
				})
			}
			continue
		}

		value := raw
		if len(m.Composite) > 0 {
			parts := strings.Split(raw, compositeSep)
			idx := m.Composite[0]
			if idx >= len(parts) {
				if !m.Optional {
					diags = append(diags, Diagnostic{
						Kind:         DiagMissingElement,
						SegmentID:    src.ID(),
						SegmentIndex: segIndex,
						ElementPos:   m.SegPos,
						Message:      fmt.Sprintf("composite component %d out of range (%d components)", idx, len(parts)),
					})
				}
				continue
			}
			value = parts[idx]
		}

		value = applyTransforms(value, m.Transforms)

		if m.Expect != "" && value != m.Expect {
			diags = append(diags, Diagnostic{
				Kind:         DiagValueMismatch,
				SegmentID:    src.ID(),
				SegmentIndex: segIndex,
				ElementPos:   m.SegPos,
				Message:      fmt.Sprintf("expected %q, found %q", m.Expect, value),
			})
		}

		if m.ValueMap != nil {
			// Unmapped codes pass through unchanged: value maps may be
			// partial enumerations.
			if mapped, ok := m.ValueMap[value]; ok {
				value = mapped
			}
		}

		if m.OutputPath != "" {
			if err := setPath(partial, m.OutputPath, value); err != nil {
				diags = append(diags, Diagnostic{
					Kind:         DiagSchemaConfig,
					SegmentID:    src.ID(),
					SegmentIndex: segIndex,
					ElementPos:   m.SegPos,
					Message:      err.Error(),
				})
				continue
			}
			pendingKey = value
			havePending = true
			continue
		}

		if !havePending {
			pendingKey = value
			havePending = true
			continue
		}
		if pendingKey != "" {
			partial[pendingKey] = value
		}
	}

	return partial, diags
}

// =============================================================================
// TRANSFORMS
// =============================================================================

// applyTransforms applies the named transforms in declared order.
func applyTransforms(value string, transforms []string) string {
	for _, name := range transforms {
		value = applyTransform(value, name)
	}
	return value
}

// applyTransform applies a single named transform. Unknown names pass the
// value through; the schema validator rejects them at load time.
func applyTransform(value, name string) string {
	switch name {
	case "trim":
		return strings.TrimSpace(value)

	case "uppercase":
		return strings.ToUpper(value)

	case "lowercase":
		return strings.ToLower(value)

	case "date":
		// CCYYMMDD -> CCYY-MM-DD. Anything that is not an 8-digit date
		// passes through untouched.
		if len(value) != 8 || !allDigits(value) {
			return value
		}
		return value[:4] + "-" + value[4:6] + "-" + value[6:8]

	default:
		return value
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// =============================================================================
// REPEATING ELEMENTS
// =============================================================================

// mapRepeating handles segments whose data elements repeat a composite
// pattern, like the HI diagnosis segment where every element packs
// qualifier:code pairs. Each occurrence is split, matched to a pattern by
// its component-0 qualifier, and appended to the pattern's output array.
func mapRepeating(seg types.Segment, segIndex int, spec *schema.RepeatingSpec,
	compositeSep string) (map[string]any, Diagnostics) {

	partial := map[string]any{}
	var diags Diagnostics

	sep := spec.Separator
	if sep == "" {
		sep = compositeSep
	}

	limit := seg.ElementCount()
	if !spec.ScanAll && limit > 1 {
		limit = 1
	}

	for pos := 0; pos < limit; pos++ {
		raw, _ := seg.Element(pos)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, sep)
		qualifier := parts[0]

		pattern := findPattern(spec.Patterns, qualifier)
		if pattern == nil {
			diags = append(diags, Diagnostic{
				Kind:         DiagSchemaConfig,
				SegmentID:    seg.ID(),
				SegmentIndex: segIndex,
				ElementPos:   pos,
				Message:      fmt.Sprintf("repeating qualifier %q matches no pattern", qualifier),
			})
			continue
		}

		item := map[string]any{}
		for _, field := range pattern.Fields {
			if field.Component >= len(parts) {
				diags = append(diags, Diagnostic{
					Kind:         DiagMissingElement,
					SegmentID:    seg.ID(),
					SegmentIndex: segIndex,
					ElementPos:   pos,
					Message:      fmt.Sprintf("component %d for field %q out of range (%d components)", field.Component, field.Name, len(parts)),
				})
				continue
			}
			item[field.Name] = parts[field.Component]
		}
		if len(item) == 0 {
			continue
		}
		if err := appendToArray(partial, pattern.OutputArray, item); err != nil {
			diags = append(diags, Diagnostic{
				Kind:         DiagSchemaConfig,
				SegmentID:    seg.ID(),
				SegmentIndex: segIndex,
				ElementPos:   pos,
				Message:      err.Error(),
			})
		}
	}

	return partial, diags
}

func findPattern(patterns []schema.RepeatingPattern, qualifier string) *schema.RepeatingPattern {
	for i := range patterns {
		if patterns[i].HasQualifier(qualifier) {
			return &patterns[i]
		}
	}
	return nil
}
