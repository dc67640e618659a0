// =============================================================================
// zx12 - Schema Model
// =============================================================================
//
// Typed representation of a transaction schema document. A schema describes
// how one transaction set (837 professional, 837 institutional, ...) maps
// from its flat segment stream into a nested output document:
//
//   TransactionSchema
//   ├── transaction_header    flat segment definitions (ST, BHT)
//   ├── sequential_sections   singleton trigger-delimited sections (1000A/B)
//   ├── hierarchical_structure HL level definitions keyed by level code
//   │     └── loops           trigger-based repeating loops, nested freely
//   └── transaction_trailer   flat segment definitions (SE)
//
// Schemas are parsed once (see loader.go), validated by internal/validation,
// and then shared read-only across goroutines; nothing in this package
// mutates a schema after Parse returns.
//
// =============================================================================

package schema

// =============================================================================
// ELEMENT-LEVEL DEFINITIONS
// =============================================================================

// Qualifier pins a data element position to an expected value. Used both to
// disambiguate which definition a segment occurrence belongs to and as a
// section trigger condition.
type Qualifier struct {
	// SegPos is the 0-based data element position. Position k reads the
	// segment's element k+1; the segment id is never addressed.
	SegPos int `json:"position"`

	// Expected is the value that must appear at SegPos.
	Expected string `json:"value"`
}

// ElementMapping extracts one data element into the output document.
type ElementMapping struct {
	// SegPos is the 0-based data element position to read.
	SegPos int `json:"position"`

	// OutputPath is the dot-separated destination path inside the current
	// output object. Empty means flatten: the value of the preceding
	// mapping becomes the key and this mapping's value becomes the value.
	OutputPath string `json:"output"`

	// Seg names a group member segment id to read from instead of the
	// definition's own segment. Only meaningful inside a grouped definition.
	Seg string `json:"segment"`

	// Expect asserts the element's post-transform value. A mismatch is
	// recorded as a diagnostic; mapping continues either way.
	Expect string `json:"expect"`

	// ValueMap translates the raw code into a friendlier value. Codes not
	// present in the map pass through unchanged.
	ValueMap map[string]string `json:"map"`

	// Transforms are applied in order before Expect/ValueMap. Known names:
	// trim, uppercase, lowercase, date.
	Transforms []string `json:"transforms"`

	// Composite selects a component of a composite element. The raw value
	// is split on the composite separator and the first listed index is
	// used as the mapped value.
	Composite []int `json:"composite"`

	// Optional suppresses the MissingElement diagnostic when the segment
	// is too short to contain SegPos.
	Optional bool `json:"optional"`
}

// =============================================================================
// REPEATING-ELEMENT DEFINITIONS
// =============================================================================

// PatternField extracts one component of a repeating composite occurrence.
type PatternField struct {
	// Component is the 0-based component index within the split value.
	Component int `json:"component"`

	// Name is the key the component is stored under.
	Name string `json:"name"`
}

// RepeatingPattern describes one shape a repeating composite can take,
// selected by its leading qualifier component.
type RepeatingPattern struct {
	// WhenQualifier lists the component-0 codes this pattern claims.
	WhenQualifier []string `json:"qualifiers"`

	// OutputArray is the array the built objects append to.
	OutputArray string `json:"output"`

	// Fields are the components to extract for each occurrence.
	Fields []PatternField `json:"fields"`
}

// HasQualifier reports whether the pattern claims the given code.
func (p *RepeatingPattern) HasQualifier(code string) bool {
	for _, q := range p.WhenQualifier {
		if q == code {
			return true
		}
	}
	return false
}

// RepeatingSpec describes a segment whose data elements repeat a composite
// pattern, such as the HI diagnosis code segment where every element packs
// qualifier:code pairs.
type RepeatingSpec struct {
	// ScanAll scans every data element of the segment. When false only the
	// first data element is considered.
	ScanAll bool `json:"scan_all"`

	// Separator overrides the composite separator for splitting. Empty
	// falls back to the transaction's composite separator.
	Separator string `json:"separator"`

	// Patterns are tried in order against each occurrence's qualifier.
	Patterns []RepeatingPattern `json:"patterns"`
}

// =============================================================================
// SEGMENT AND LOOP DEFINITIONS
// =============================================================================

// SegmentDefinition describes how occurrences of one segment id (optionally
// narrowed by a qualifier) map into the output document.
type SegmentDefinition struct {
	// ID is the segment identifier this definition claims, e.g. "NM1".
	ID string `json:"id"`

	// Qualifier narrows matching to occurrences carrying the expected
	// value, e.g. NM1 with "85" at position 0.
	Qualifier *Qualifier `json:"qualifier"`

	// Group lists segment ids that form a contiguous unit with this one.
	// Non-empty means grouped; the first entry must repeat ID. The whole
	// group claims atomically or not at all.
	Group []string `json:"group"`

	// Multiple maps every unprocessed matching occurrence in the window
	// instead of only the first.
	Multiple bool `json:"multiple"`

	// OutputArray appends each mapped occurrence to the named array.
	// Empty merges the mapped object into the containing output object.
	OutputArray string `json:"output"`

	// Optional marks the definition as expected-to-be-absent; no
	// diagnostic is recorded when nothing matches.
	Optional bool `json:"optional"`

	// ElementMappings extract this segment's (or group's) data elements.
	ElementMappings []ElementMapping `json:"elements"`

	// RepeatingElements handles repeating composite segments (HI, ...).
	RepeatingElements *RepeatingSpec `json:"repeating"`
}

// Grouped reports whether the definition claims a contiguous segment group.
func (d *SegmentDefinition) Grouped() bool {
	return len(d.Group) > 0
}

// LoopDefinition is a trigger-delimited repeating region. Every occurrence
// of the trigger id opens one instance running until the next occurrence of
// the same trigger or the end of the enclosing window; nested loop triggers
// never terminate the parent instance.
type LoopDefinition struct {
	// Name identifies the loop in diagnostics, e.g. "claims".
	Name string `json:"name"`

	// TriggerSegmentID is the segment id whose occurrences open instances.
	TriggerSegmentID string `json:"trigger"`

	// OutputArray is the array instances append to. Empty means the loop
	// is a singleton whose one instance merges into the parent object.
	OutputArray string `json:"output"`

	// SegmentDefs are the definitions applied inside each instance window.
	SegmentDefs []SegmentDefinition `json:"segments"`

	// NestedLoops run inside each instance window after SegmentDefs.
	NestedLoops []LoopDefinition `json:"loops"`
}

// =============================================================================
// SECTION AND HIERARCHY DEFINITIONS
// =============================================================================

// SectionTrigger is the (segment id, qualifier) pair that opens a section.
type SectionTrigger struct {
	ID        string     `json:"id"`
	Qualifier *Qualifier `json:"qualifier"`
}

// SectionDefinition is a singleton region between the transaction header and
// the hierarchical structure, such as the 837 submitter/receiver sections.
// Its window runs from its trigger occurrence to the next section's trigger
// or the first HL segment.
type SectionDefinition struct {
	// Name identifies the section in diagnostics.
	Name string `json:"name"`

	// Trigger opens the section's window.
	Trigger SectionTrigger `json:"trigger"`

	// OutputPath is the object the section's output nests under. Empty
	// merges into the document root.
	OutputPath string `json:"output"`

	// SegmentDefs are applied inside the section window.
	SegmentDefs []SegmentDefinition `json:"segments"`

	// Loops run inside the section window after SegmentDefs.
	Loops []LoopDefinition `json:"loops"`
}

// HLLevelDefinition describes one level code of the HL hierarchy. The level
// definitions form a grammar; the document's HL segments instantiate it.
type HLLevelDefinition struct {
	// LevelCode is the HL03 code this definition applies to. Filled from
	// the hierarchical_structure map key at load time.
	LevelCode string `json:"-"`

	// Name identifies the level in diagnostics, e.g. "billing_provider".
	Name string `json:"name"`

	// OutputArray is the array a node instance appends to in its parent's
	// object (or the document root for root nodes). Empty merges instead.
	OutputArray string `json:"output"`

	// SegmentDefs are applied inside each node's window.
	SegmentDefs []SegmentDefinition `json:"segments"`

	// ChildLevelCodes declares which level codes may appear as children.
	// Advisory: the validator warns on undeclared pairs, the engine
	// accepts them.
	ChildLevelCodes []string `json:"child_levels"`

	// NonHierarchicalLoops run inside the node window after SegmentDefs,
	// before descending into child nodes.
	NonHierarchicalLoops []LoopDefinition `json:"loops"`
}

// AllowsChild reports whether the level declares the given child level code.
func (d *HLLevelDefinition) AllowsChild(code string) bool {
	for _, c := range d.ChildLevelCodes {
		if c == code {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSACTION SCHEMA
// =============================================================================

// TransactionSchema is the root of one schema document.
type TransactionSchema struct {
	// TransactionSet is the set id this schema interprets, e.g. "837".
	TransactionSet string `json:"transaction_set"`

	// Implementation is the implementation convention reference the schema
	// was authored against, e.g. "005010X222A1".
	Implementation string `json:"implementation"`

	// Name is a human-readable schema title.
	Name string `json:"name"`

	// CompositeSeparator splits composite elements. Defaults to ":" but is
	// normally overridden per transaction by the ISA16 value the tokenizer
	// detected.
	CompositeSeparator string `json:"composite_separator"`

	// TransactionHeader definitions run as one flat pass over the stream's
	// leading window.
	TransactionHeader []SegmentDefinition `json:"transaction_header"`

	// SequentialSections run in declared order between header and
	// hierarchy.
	SequentialSections []SectionDefinition `json:"sequential_sections"`

	// HierarchicalStructure maps HL level codes to their definitions.
	HierarchicalStructure map[string]*HLLevelDefinition `json:"hierarchical_structure"`

	// TransactionTrailer definitions run as one flat pass over the
	// stream's trailing window.
	TransactionTrailer []SegmentDefinition `json:"transaction_trailer"`
}

// Level returns the definition for an HL level code, or nil when the schema
// does not describe that level.
func (s *TransactionSchema) Level(code string) *HLLevelDefinition {
	if s.HierarchicalStructure == nil {
		return nil
	}
	return s.HierarchicalStructure[code]
}
