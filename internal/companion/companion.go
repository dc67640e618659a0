// =============================================================================
// zx12 - Companion Guide Parser
// =============================================================================
//
// Payers publish companion guides as spreadsheets: per-segment code tables
// that assign human-readable meanings to the codes a transaction carries
// (claim frequency "1" -> "original", place of service "11" -> "office").
// This module reads such a workbook and folds its code tables into a parsed
// transaction schema, so the interpreted output carries the guide's wording
// without the schema author re-typing every payer's tables.
//
// WORKBOOK STRUCTURE (Expected Columns):
//   One sheet per segment id. Each row assigns one code's value for one
//   element position. Column positions are configurable via GuideColumns.
//
//   Sheet "CLM":
//   | Column A | Column B | Column C              |
//   |----------|----------|-----------------------|
//   | Position | Code     | Value                 |
//   | 4        | 11       | office                |
//   | 4        | 21       | inpatient_hospital    |
//   | 5        | 1        | original              |
//   | 5        | 7        | replacement           |
//
//   Sheets whose names start with "_" are notes/scratch sheets and are
//   skipped.
//
// =============================================================================

package companion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/LibrePPS/zx12-go/internal/schema"
)

// =============================================================================
// GUIDE STRUCTURE
// =============================================================================

// Guide represents a parsed companion guide workbook.
type Guide struct {
	// SourceFile is the path to the workbook the guide was read from.
	SourceFile string

	// Segments contains one code table per segment id (sheet name).
	Segments map[string]*SegmentCodes
}

// SegmentCodes is the code table for one segment id.
type SegmentCodes struct {
	// SegmentID is the segment the table applies to, e.g. "CLM".
	SegmentID string

	// Codes maps element position -> code -> guide value.
	Codes map[int]map[string]string
}

// =============================================================================
// GUIDE COLUMN CONFIGURATION
// =============================================================================

// GuideColumns defines which workbook columns contain which data. Column
// indices are 0-based (A=0, B=1, C=2).
type GuideColumns struct {
	// PositionColumn is the column containing the 0-based element position.
	// Default: 0 (Column A)
	PositionColumn int

	// CodeColumn is the column containing the raw code.
	// Default: 1 (Column B)
	CodeColumn int

	// ValueColumn is the column containing the guide's value for the code.
	// Default: 2 (Column C)
	ValueColumn int

	// DataStartRow is the row where data begins (0-based), allowing for a
	// header row.
	// Default: 1 (Row 2)
	DataStartRow int
}

// DefaultGuideColumns returns the default column configuration.
func DefaultGuideColumns() GuideColumns {
	return GuideColumns{
		PositionColumn: 0, // Column A
		CodeColumn:     1, // Column B
		ValueColumn:    2, // Column C
		DataStartRow:   1, // Row 2
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a companion guide workbook with the default column layout.
func Parse(path string) (*Guide, error) {
	return ParseWithConfig(path, DefaultGuideColumns())
}

// ParseWithConfig reads a companion guide workbook using a custom column
// configuration.
func ParseWithConfig(path string, columns GuideColumns) (*Guide, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open companion guide: %w", err)
	}
	defer f.Close()

	guide := &Guide{
		SourceFile: path,
		Segments:   make(map[string]*SegmentCodes),
	}

	for _, sheetName := range f.GetSheetList() {
		// Underscore-prefixed sheets hold notes, not code tables.
		if strings.HasPrefix(sheetName, "_") {
			continue
		}

		codes, err := parseSheet(f, sheetName, columns)
		if err != nil {
			return nil, fmt.Errorf("error parsing sheet '%s': %w", sheetName, err)
		}
		if len(codes.Codes) == 0 {
			continue
		}
		guide.Segments[codes.SegmentID] = codes
	}

	return guide, nil
}

// parseSheet reads one segment's code table.
func parseSheet(f *excelize.File, sheetName string, columns GuideColumns) (*SegmentCodes, error) {
	codes := &SegmentCodes{
		SegmentID: strings.ToUpper(strings.TrimSpace(sheetName)),
		Codes:     make(map[int]map[string]string),
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	getCell := func(row []string, index int) string {
		if index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}

	for i := columns.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}

		posStr := getCell(row, columns.PositionColumn)
		code := getCell(row, columns.CodeColumn)
		value := getCell(row, columns.ValueColumn)
		if posStr == "" || code == "" || value == "" {
			continue
		}

		pos, err := strconv.Atoi(posStr)
		if err != nil || pos < 0 {
			return nil, fmt.Errorf("row %d: element position %q is not a non-negative integer", i+1, posStr)
		}

		if codes.Codes[pos] == nil {
			codes.Codes[pos] = make(map[string]string)
		}
		codes.Codes[pos][code] = value
	}

	return codes, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// GUIDE METHODS
// =============================================================================

// Lookup returns the guide's value for a (segment, position, code) triple.
func (g *Guide) Lookup(segmentID string, pos int, code string) (string, bool) {
	seg, ok := g.Segments[segmentID]
	if !ok {
		return "", false
	}
	byCode, ok := seg.Codes[pos]
	if !ok {
		return "", false
	}
	value, ok := byCode[code]
	return value, ok
}

// Apply folds the guide's code tables into the schema's element mappings.
// For every element mapping whose (segment id, position) the guide describes,
// the guide's entries are merged into the mapping's value map; on conflict
// the guide wins, since the companion guide is the payer-specific refinement.
// A mapping that targets another group member reads that member's table.
// Returns the number of code entries applied.
func (g *Guide) Apply(s *schema.TransactionSchema) int {
	applied := 0
	forEachSegmentDef(s, func(def *schema.SegmentDefinition) {
		for i := range def.ElementMappings {
			m := &def.ElementMappings[i]
			segID := def.ID
			if m.Seg != "" {
				segID = m.Seg
			}
			seg, ok := g.Segments[segID]
			if !ok {
				continue
			}
			byCode, ok := seg.Codes[m.SegPos]
			if !ok {
				continue
			}
			if m.ValueMap == nil {
				m.ValueMap = make(map[string]string, len(byCode))
			}
			for code, value := range byCode {
				m.ValueMap[code] = value
				applied++
			}
		}
	})
	return applied
}

// =============================================================================
// SCHEMA TRAVERSAL
// =============================================================================

// forEachSegmentDef visits every segment definition the schema contains:
// header, sections, loops at any nesting depth, hierarchy levels, trailer.
func forEachSegmentDef(s *schema.TransactionSchema, visit func(*schema.SegmentDefinition)) {
	visitDefs := func(defs []schema.SegmentDefinition) {
		for i := range defs {
			visit(&defs[i])
		}
	}

	var visitLoops func(loops []schema.LoopDefinition)
	visitLoops = func(loops []schema.LoopDefinition) {
		for i := range loops {
			visitDefs(loops[i].SegmentDefs)
			visitLoops(loops[i].NestedLoops)
		}
	}

	visitDefs(s.TransactionHeader)
	for i := range s.SequentialSections {
		visitDefs(s.SequentialSections[i].SegmentDefs)
		visitLoops(s.SequentialSections[i].Loops)
	}
	for _, level := range s.HierarchicalStructure {
		visitDefs(level.SegmentDefs)
		visitLoops(level.NonHierarchicalLoops)
	}
	visitDefs(s.TransactionTrailer)
}
