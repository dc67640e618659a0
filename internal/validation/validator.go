// =============================================================================
// zx12 - Schema Validation
// =============================================================================
//
// Load-time structural checks over a parsed schema. The interpretation engine
// assumes a well-formed schema; everything that would otherwise surface as a
// confusing per-segment diagnostic at runtime (flatten with nothing to key
// on, a group that cannot match, an unknown transform) is caught here once,
// when the schema is loaded.
//
// Findings carry a severity: "error" findings make the schema unusable,
// "warning" findings are advisory (undeclared child levels still parse; the
// engine accepts what the document actually contains).
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/LibrePPS/zx12-go/internal/schema"
)

// =============================================================================
// FINDING TYPES
// =============================================================================

// Severity classifies a schema finding.
type Severity string

const (
	// SeverityError marks findings that make the schema unusable.
	SeverityError Severity = "error"

	// SeverityWarning marks advisory findings.
	SeverityWarning Severity = "warning"
)

// SchemaError is one validation finding, located by a dotted path into the
// schema document ("hierarchical_structure.22.segments[1].elements[3]").
type SchemaError struct {
	// Severity is error or warning.
	Severity Severity

	// Path locates the finding inside the schema document.
	Path string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e SchemaError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Path, e.Message)
}

// Result collects the findings of one validation run.
type Result struct {
	// Findings holds every finding in document order.
	Findings []SchemaError
}

// Valid reports whether the schema produced no error-severity findings.
func (r *Result) Valid() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the error-severity findings.
func (r *Result) Errors() []SchemaError {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity findings.
func (r *Result) Warnings() []SchemaError {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(s Severity) []SchemaError {
	var out []SchemaError
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// FormatFindings renders findings one per line for CLI output.
func FormatFindings(findings []SchemaError) string {
	if len(findings) == 0 {
		return "no findings"
	}
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, f.Error())
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// VALIDATOR
// =============================================================================

// knownTransforms are the transform names the element mapper implements.
var knownTransforms = map[string]bool{
	"trim":      true,
	"uppercase": true,
	"lowercase": true,
	"date":      true,
}

// ValidateSchema runs every structural check over a parsed schema.
func ValidateSchema(s *schema.TransactionSchema) *Result {
	v := &validator{}

	if s.TransactionSet == "" {
		v.errorf("transaction_set", "transaction set id is required")
	}

	v.segmentDefs("transaction_header", s.TransactionHeader)
	for i := range s.SequentialSections {
		v.section(fmt.Sprintf("sequential_sections[%d]", i), &s.SequentialSections[i])
	}
	v.hierarchy(s)
	v.segmentDefs("transaction_trailer", s.TransactionTrailer)

	return &Result{Findings: v.findings}
}

type validator struct {
	findings []SchemaError
}

func (v *validator) errorf(path, format string, args ...any) {
	v.findings = append(v.findings, SchemaError{
		Severity: SeverityError,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (v *validator) warnf(path, format string, args ...any) {
	v.findings = append(v.findings, SchemaError{
		Severity: SeverityWarning,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

// =============================================================================
// PER-NODE CHECKS
// =============================================================================

func (v *validator) section(path string, sec *schema.SectionDefinition) {
	if sec.Trigger.ID == "" {
		v.errorf(path+".trigger", "section %q has no trigger segment id", sec.Name)
	}
	if q := sec.Trigger.Qualifier; q != nil && q.SegPos < 0 {
		v.errorf(path+".trigger.qualifier", "negative element position")
	}
	v.segmentDefs(path+".segments", sec.SegmentDefs)
	for i := range sec.Loops {
		v.loop(fmt.Sprintf("%s.loops[%d]", path, i), &sec.Loops[i])
	}
}

func (v *validator) loop(path string, loop *schema.LoopDefinition) {
	if loop.TriggerSegmentID == "" {
		v.errorf(path+".trigger", "loop %q has no trigger segment id", loop.Name)
	}
	v.segmentDefs(path+".segments", loop.SegmentDefs)
	for i := range loop.NestedLoops {
		v.loop(fmt.Sprintf("%s.loops[%d]", path, i), &loop.NestedLoops[i])
	}
}

func (v *validator) segmentDefs(path string, defs []schema.SegmentDefinition) {
	for i := range defs {
		v.segmentDef(fmt.Sprintf("%s[%d]", path, i), &defs[i])
	}
}

func (v *validator) segmentDef(path string, def *schema.SegmentDefinition) {
	if def.ID == "" {
		v.errorf(path, "segment definition has no id")
	}
	if q := def.Qualifier; q != nil && q.SegPos < 0 {
		v.errorf(path+".qualifier", "negative element position")
	}

	if def.Grouped() {
		if def.Group[0] != def.ID {
			v.errorf(path+".group", "group must start with the definition's own id %q, got %q",
				def.ID, def.Group[0])
		}
		seen := map[string]bool{}
		for _, member := range def.Group {
			if seen[member] {
				v.errorf(path+".group", "duplicate group member %q", member)
			}
			seen[member] = true
		}
		for i := range def.ElementMappings {
			m := &def.ElementMappings[i]
			if m.Seg != "" && !seen[m.Seg] {
				v.errorf(fmt.Sprintf("%s.elements[%d]", path, i),
					"mapping references segment %q outside the group", m.Seg)
			}
		}
	} else {
		for i := range def.ElementMappings {
			if m := &def.ElementMappings[i]; m.Seg != "" && m.Seg != def.ID {
				v.errorf(fmt.Sprintf("%s.elements[%d]", path, i),
					"mapping references segment %q but definition is not grouped", m.Seg)
			}
		}
	}

	v.elementMappings(path+".elements", def.ElementMappings)

	if r := def.RepeatingElements; r != nil {
		for i := range r.Patterns {
			p := &r.Patterns[i]
			ppath := fmt.Sprintf("%s.repeating.patterns[%d]", path, i)
			if len(p.WhenQualifier) == 0 {
				v.errorf(ppath, "pattern has no qualifiers")
			}
			if len(p.Fields) == 0 {
				v.errorf(ppath, "pattern has no fields")
			}
			if p.OutputArray == "" {
				v.errorf(ppath, "pattern has no output array")
			}
		}
	}
}

func (v *validator) elementMappings(path string, mappings []schema.ElementMapping) {
	flattenRun := 0
	for i := range mappings {
		m := &mappings[i]
		mpath := fmt.Sprintf("%s[%d]", path, i)

		if m.SegPos < 0 {
			v.errorf(mpath, "negative element position")
		}
		for _, tr := range m.Transforms {
			if !knownTransforms[tr] {
				v.errorf(mpath, "unknown transform %q", tr)
			}
		}
		for _, c := range m.Composite {
			if c < 0 {
				v.errorf(mpath, "negative composite component index")
			}
		}

		if m.OutputPath == "" {
			flattenRun++
			if i == 0 && len(mappings) == 1 {
				v.errorf(mpath, "flatten mapping requires a preceding keyed mapping")
			}
			if flattenRun > 2 {
				v.warnf(mpath, "consecutive flatten mappings reuse the same key")
			}
		} else {
			flattenRun = 0
		}
	}
}

// =============================================================================
// HIERARCHY CHECKS
// =============================================================================

func (v *validator) hierarchy(s *schema.TransactionSchema) {
	levels := s.HierarchicalStructure
	if len(levels) == 0 {
		return
	}

	for code, level := range levels {
		path := "hierarchical_structure." + code
		v.segmentDefs(path+".segments", level.SegmentDefs)
		for i := range level.NonHierarchicalLoops {
			v.loop(fmt.Sprintf("%s.loops[%d]", path, i), &level.NonHierarchicalLoops[i])
		}
		for _, child := range level.ChildLevelCodes {
			if _, ok := levels[child]; !ok {
				v.warnf(path+".child_levels", "child level %q is not declared", child)
			}
		}
	}

	// A level referenced by nobody is a root; anything unreachable from a
	// root only applies when the document disagrees with the schema
	// author's tree. Advisory, like child_levels itself.
	referenced := map[string]bool{}
	for _, level := range levels {
		for _, child := range level.ChildLevelCodes {
			referenced[child] = true
		}
	}
	reachable := map[string]bool{}
	var visit func(code string)
	visit = func(code string) {
		if reachable[code] {
			return
		}
		reachable[code] = true
		if level, ok := levels[code]; ok {
			for _, child := range level.ChildLevelCodes {
				if _, declared := levels[child]; declared {
					visit(child)
				}
			}
		}
	}
	for code := range levels {
		if !referenced[code] {
			visit(code)
		}
	}
	for code := range levels {
		if !reachable[code] {
			v.warnf("hierarchical_structure."+code, "level is unreachable from any root level")
		}
	}
}
