package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/types"
)

func seg(id string, elements ...string) types.Segment {
	return types.NewSegment(id, elements...)
}

func TestMapElements_SubscriberName(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, OutputPath: "qualifier", Expect: "IL"},
		{SegPos: 1, OutputPath: "type", ValueMap: map[string]string{"1": "Person", "2": "Non-Person"}},
		{SegPos: 2, OutputPath: "last"},
		{SegPos: 3, OutputPath: "first"},
	}

	partial, diags := mapElements(seg("NM1", "IL", "1", "DOE", "JANE"), 0, mappings, nil, ":")

	assert.Empty(t, diags)
	assert.Equal(t, map[string]any{
		"qualifier": "IL",
		"type":      "Person",
		"last":      "DOE",
		"first":     "JANE",
	}, partial)
}

func TestMapElements_FlattenKeyProducer(t *testing.T) {
	// The first mapping has no output path: its mapped value becomes the
	// key, the second mapping's value becomes the value.
	mappings := []schema.ElementMapping{
		{SegPos: 0, ValueMap: map[string]string{"EI": "employer_id", "SY": "ssn"}},
		{SegPos: 1, OutputPath: ""},
	}

	first, diags := mapElements(seg("REF", "EI", "123456789"), 0, mappings, nil, ":")
	require.Empty(t, diags)
	assert.Equal(t, map[string]any{"employer_id": "123456789"}, first)

	second, diags := mapElements(seg("REF", "SY", "987654321"), 1, mappings, nil, ":")
	require.Empty(t, diags)
	assert.Equal(t, map[string]any{"ssn": "987654321"}, second)
}

func TestMapElements_FlattenUsesMappedValueOfKeyedSibling(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, OutputPath: "qualifier_name", ValueMap: map[string]string{"EI": "employer_id"}},
		{SegPos: 1, OutputPath: ""},
	}

	partial, diags := mapElements(seg("REF", "EI", "123456789"), 0, mappings, nil, ":")
	require.Empty(t, diags)
	assert.Equal(t, map[string]any{
		"qualifier_name": "employer_id",
		"employer_id":    "123456789",
	}, partial)
}

func TestMapElements_FlattenWithEmptyKeySkipsEmission(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, Optional: true},
		{SegPos: 1, OutputPath: "", Optional: true},
	}

	// Position 0 exists but is empty: the pending key is "", so the
	// flatten emits nothing and nothing crashes.
	partial, diags := mapElements(seg("REF", "", "123456789"), 0, mappings, nil, ":")
	assert.Empty(t, diags)
	assert.Empty(t, partial)
}

func TestMapElements_CompositeRoundTrip(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, OutputPath: "procedure_code", Composite: []int{1}},
	}

	partial, diags := mapElements(seg("SV2", "HC:87654:1:2"), 0, mappings, nil, ":")
	require.Empty(t, diags)
	assert.Equal(t, map[string]any{"procedure_code": "87654"}, partial)

	outOfRange := []schema.ElementMapping{
		{SegPos: 0, OutputPath: "nope", Composite: []int{9}},
	}
	partial, diags = mapElements(seg("SV2", "HC:87654:1:2"), 0, outOfRange, nil, ":")
	assert.Empty(t, partial)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagMissingElement, diags[0].Kind)
}

func TestMapElements_MissingElement(t *testing.T) {
	short := seg("NM1", "IL")

	required := []schema.ElementMapping{{SegPos: 5, OutputPath: "suffix"}}
	partial, diags := mapElements(short, 3, required, nil, ":")
	assert.Empty(t, partial)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagMissingElement, diags[0].Kind)
	assert.Equal(t, "NM1", diags[0].SegmentID)
	assert.Equal(t, 3, diags[0].SegmentIndex)
	assert.Equal(t, 5, diags[0].ElementPos)

	optional := []schema.ElementMapping{{SegPos: 5, OutputPath: "suffix", Optional: true}}
	partial, diags = mapElements(short, 3, optional, nil, ":")
	assert.Empty(t, partial)
	assert.Empty(t, diags)
}

func TestMapElements_PositionConvention(t *testing.T) {
	// Position 0 reads the first data element, never the segment id.
	mappings := []schema.ElementMapping{{SegPos: 0, OutputPath: "value"}}
	partial, _ := mapElements(seg("REF", "EI"), 0, mappings, nil, ":")
	assert.Equal(t, map[string]any{"value": "EI"}, partial)
}

func TestMapElements_ExpectMismatchIsRecordedNotFatal(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, OutputPath: "qualifier", Expect: "IL"},
		{SegPos: 1, OutputPath: "type"},
	}

	partial, diags := mapElements(seg("NM1", "QC", "1"), 0, mappings, nil, ":")

	require.Len(t, diags, 1)
	assert.Equal(t, DiagValueMismatch, diags[0].Kind)
	assert.Contains(t, diags[0].Message, `expected "IL"`)
	// The actual value is still placed and siblings still map.
	assert.Equal(t, map[string]any{"qualifier": "QC", "type": "1"}, partial)
}

func TestMapElements_ValueMapPassThrough(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, OutputPath: "type", ValueMap: map[string]string{"1": "Person"}},
	}
	partial, diags := mapElements(seg("NM1", "2"), 0, mappings, nil, ":")
	assert.Empty(t, diags)
	assert.Equal(t, map[string]any{"type": "2"}, partial)
}

func TestMapElements_TransformOrder(t *testing.T) {
	tests := []struct {
		name       string
		transforms []string
		in         string
		want       string
	}{
		{name: "trim", transforms: []string{"trim"}, in: "  DOE  ", want: "DOE"},
		{name: "uppercase", transforms: []string{"uppercase"}, in: "doe", want: "DOE"},
		{name: "lowercase", transforms: []string{"lowercase"}, in: "DOE", want: "doe"},
		{name: "date", transforms: []string{"date"}, in: "20240115", want: "2024-01-15"},
		{name: "date passes through short values", transforms: []string{"date"}, in: "2024", want: "2024"},
		{name: "date passes through non-digits", transforms: []string{"date"}, in: "2024011X", want: "2024011X"},
		{name: "declared order", transforms: []string{"trim", "lowercase"}, in: " DOE ", want: "doe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mappings := []schema.ElementMapping{
				{SegPos: 0, OutputPath: "v", Transforms: tt.transforms},
			}
			partial, diags := mapElements(seg("REF", tt.in), 0, mappings, nil, ":")
			require.Empty(t, diags)
			assert.Equal(t, tt.want, partial["v"])
		})
	}
}

func TestMapElements_ExpectChecksPostTransformPreMapValue(t *testing.T) {
	mappings := []schema.ElementMapping{
		{
			SegPos:     0,
			OutputPath: "q",
			Transforms: []string{"trim"},
			Expect:     "IL",
			ValueMap:   map[string]string{"IL": "insured"},
		},
	}
	partial, diags := mapElements(seg("NM1", " IL "), 0, mappings, nil, ":")
	assert.Empty(t, diags, "expect must compare the trimmed value, before the value map")
	assert.Equal(t, map[string]any{"q": "insured"}, partial)
}

func TestMapElements_GroupMembers(t *testing.T) {
	members := map[string]types.Segment{
		"NM1": seg("NM1", "85", "2", "ACME CLINIC"),
		"N3":  seg("N3", "123 MAIN ST"),
		"N4":  seg("N4", "SPRINGFIELD", "IL", "62704"),
	}
	mappings := []schema.ElementMapping{
		{SegPos: 2, OutputPath: "name"},
		{SegPos: 0, Seg: "N3", OutputPath: "address.line1"},
		{SegPos: 0, Seg: "N4", OutputPath: "address.city"},
		{SegPos: 1, Seg: "N4", OutputPath: "address.state"},
	}

	partial, diags := mapElements(members["NM1"], 0, mappings, members, ":")
	require.Empty(t, diags)
	assert.Equal(t, map[string]any{
		"name": "ACME CLINIC",
		"address": map[string]any{
			"line1": "123 MAIN ST",
			"city":  "SPRINGFIELD",
			"state": "IL",
		},
	}, partial)
}

func TestMapElements_GroupFallbackSkipsMemberMappings(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 2, OutputPath: "name"},
		{SegPos: 0, Seg: "N3", OutputPath: "address.line1"},
	}

	// nil members is the ungrouped fallback: member mappings skip
	// silently, without MissingElement noise.
	partial, diags := mapElements(seg("NM1", "85", "2", "ACME CLINIC"), 0, mappings, nil, ":")
	assert.Empty(t, diags)
	assert.Equal(t, map[string]any{"name": "ACME CLINIC"}, partial)
}

func TestMapElements_Idempotent(t *testing.T) {
	mappings := []schema.ElementMapping{
		{SegPos: 0, ValueMap: map[string]string{"EI": "employer_id"}},
		{SegPos: 1, OutputPath: ""},
	}
	s := seg("REF", "EI", "123456789")

	first, diags1 := mapElements(s, 0, mappings, nil, ":")
	second, diags2 := mapElements(s, 0, mappings, nil, ":")

	assert.Equal(t, first, second)
	assert.Equal(t, diags1, diags2)
}

// =============================================================================
// REPEATING ELEMENTS
// =============================================================================

func diagnosisSpec() *schema.RepeatingSpec {
	return &schema.RepeatingSpec{
		ScanAll: true,
		Patterns: []schema.RepeatingPattern{
			{
				WhenQualifier: []string{"ABK", "BK"},
				OutputArray:   "principal_diagnoses",
				Fields:        []schema.PatternField{{Component: 1, Name: "code"}},
			},
			{
				WhenQualifier: []string{"ABF", "BF"},
				OutputArray:   "other_diagnoses",
				Fields:        []schema.PatternField{{Component: 1, Name: "code"}},
			},
		},
	}
}

func TestMapRepeating_DiagnosisCodes(t *testing.T) {
	hi := seg("HI", "ABK:I10", "ABF:J189", "ABF:E119")

	partial, diags := mapRepeating(hi, 0, diagnosisSpec(), ":")
	require.Empty(t, diags)

	principal, ok := partial["principal_diagnoses"].([]any)
	require.True(t, ok)
	require.Len(t, principal, 1)
	assert.Equal(t, map[string]any{"code": "I10"}, principal[0])

	other, ok := partial["other_diagnoses"].([]any)
	require.True(t, ok)
	require.Len(t, other, 2)
	assert.Equal(t, map[string]any{"code": "J189"}, other[0])
	assert.Equal(t, map[string]any{"code": "E119"}, other[1])
}

func TestMapRepeating_UnknownQualifier(t *testing.T) {
	hi := seg("HI", "ZZ:X999")

	partial, diags := mapRepeating(hi, 4, diagnosisSpec(), ":")
	assert.Empty(t, partial)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagSchemaConfig, diags[0].Kind)
	assert.Contains(t, diags[0].Message, `"ZZ"`)
}

func TestMapRepeating_MissingComponent(t *testing.T) {
	hi := seg("HI", "ABK")

	partial, diags := mapRepeating(hi, 0, diagnosisSpec(), ":")
	assert.Empty(t, partial)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagMissingElement, diags[0].Kind)
}

func TestMapRepeating_ScanAllFalse(t *testing.T) {
	spec := diagnosisSpec()
	spec.ScanAll = false
	hi := seg("HI", "ABK:I10", "ABF:J189")

	partial, diags := mapRepeating(hi, 0, spec, ":")
	require.Empty(t, diags)
	assert.Contains(t, partial, "principal_diagnoses")
	assert.NotContains(t, partial, "other_diagnoses")
}

func TestMapRepeating_SeparatorOverride(t *testing.T) {
	spec := diagnosisSpec()
	spec.Separator = "^"
	hi := seg("HI", "ABK^I10")

	partial, diags := mapRepeating(hi, 0, spec, ":")
	require.Empty(t, diags)
	principal := partial["principal_diagnoses"].([]any)
	assert.Equal(t, map[string]any{"code": "I10"}, principal[0])
}
