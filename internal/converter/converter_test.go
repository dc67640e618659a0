package converter_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LibrePPS/zx12-go/internal/config"
	"github.com/LibrePPS/zx12-go/internal/converter"
)

// professionalSchema is a header/trailer-only 837 schema, enough to route a
// transaction through the full pipeline.
const professionalSchema = `{
  "transaction_set": "837",
  "implementation": "005010X222A1",
  "name": "professional claim (test)",
  "transaction_header": [
    {
      "id": "ST",
      "elements": [
        {"position": 0, "output": "set_identifier"},
        {"position": 1, "output": "header_control_number"}
      ]
    },
    {
      "id": "BHT",
      "elements": [
        {"position": 2, "output": "reference"},
        {"position": 5, "output": "claim_type", "map": {"CH": "chargeable"}}
      ]
    }
  ],
  "transaction_trailer": [
    {
      "id": "SE",
      "elements": [
        {"position": 1, "output": "trailer_control_number"}
      ]
    }
  ]
}`

// newTestConfig lays out input/output/archive/schemas dirs in a temp root and
// installs the professional schema under the 837 mapping rule.
func newTestConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	root := t.TempDir()

	cfg := &config.MainConfig{
		InputDir:        filepath.Join(root, "input"),
		OutputDir:       filepath.Join(root, "output"),
		InputArchiveDir: filepath.Join(root, "archive"),
		SchemasDir:      filepath.Join(root, "schemas"),
		FilePatterns:    []string{"*.edi"},
		LogLevel:        "error",
		MaxConcurrency:  2,
		SchemaMapping: []config.SchemaRule{
			{TransactionSet: "837", UseSchema: "837p.json"},
		},
	}
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.SchemasDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	writeSchema(t, cfg, "837p.json", professionalSchema)
	return cfg
}

func writeSchema(t *testing.T, cfg *config.MainConfig, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SchemasDir, name), []byte(body), 0644))
}

// envelope wraps the given ST...SE strings in a single ISA/GS envelope.
func envelope(txns ...string) string {
	var b strings.Builder
	b.WriteString("ISA*00*          *00*          *ZZ*SUBMITTERID    *ZZ*RECEIVERID     *240115*1230*^*00501*000000001*0*P*:~")
	b.WriteString("GS*HC*SENDER*RECEIVER*20240115*1230*1*X*005010X222A1~")
	for _, txn := range txns {
		b.WriteString(txn)
	}
	b.WriteString(fmt.Sprintf("GE*%d*1~", len(txns)))
	b.WriteString("IEA*1*000000001~")
	return b.String()
}

func claimTxn(ctrl string) string {
	return fmt.Sprintf("ST*837*%s*005010X222A1~BHT*0019*00*REF123*20240115*1230*CH~SE*3*%s~", ctrl, ctrl)
}

func obj(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected object, got %T", v)
	return m
}

func arr(t *testing.T, v any) []any {
	t.Helper()
	a, ok := v.([]any)
	require.True(t, ok, "expected array, got %T", v)
	return a
}

// firstTransaction digs the first transaction entry out of an output document.
func firstTransaction(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	ic := obj(t, arr(t, doc["interchanges"])[0])
	fg := obj(t, arr(t, ic["functional_groups"])[0])
	return obj(t, arr(t, fg["transactions"])[0])
}

func TestProcessFile_EndToEnd(t *testing.T) {
	cfg := newTestConfig(t)
	conv := converter.New(cfg)

	inputPath := filepath.Join(cfg.InputDir, "claims.edi")
	require.NoError(t, os.WriteFile(inputPath, []byte(envelope(claimTxn("0001"), claimTxn("0002"))), 0644))

	result := conv.ProcessFile(inputPath)
	require.NoError(t, result.Error)
	require.True(t, result.Success)

	assert.Equal(t, 1, result.Stats.Interchanges)
	assert.Equal(t, 2, result.Stats.Transactions)
	assert.Zero(t, result.Stats.TransactionsFailed)
	assert.Equal(t, 6, result.Stats.SegmentsProcessed, "ST, BHT and SE claimed per transaction")
	assert.Zero(t, result.Stats.Diagnostics)
	assert.Zero(t, result.Stats.EnvelopeWarnings)
	assert.Positive(t, result.Stats.ProcessingTime)

	// Output lands in the output dir under a uuid-suffixed name.
	base := filepath.Base(result.OutputFile)
	assert.Equal(t, cfg.OutputDir, filepath.Dir(result.OutputFile))
	assert.True(t, strings.HasPrefix(base, "claims_"), base)
	assert.True(t, strings.HasSuffix(base, ".json"), base)

	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "claims.edi", doc["source_file"])

	ic := obj(t, arr(t, doc["interchanges"])[0])
	assert.Equal(t, "000000001", ic["control_number"])
	assert.Equal(t, "SUBMITTERID", ic["sender"])
	assert.Equal(t, "P", ic["usage"])
	assert.NotContains(t, ic, "warnings")

	fg := obj(t, arr(t, ic["functional_groups"])[0])
	assert.Equal(t, "HC", fg["functional_code"])
	assert.Equal(t, "005010X222A1", fg["version"])

	txns := arr(t, fg["transactions"])
	require.Len(t, txns, 2)
	for i, ctrl := range []string{"0001", "0002"} {
		entry := obj(t, txns[i])
		assert.Equal(t, "837", entry["set_id"])
		assert.Equal(t, ctrl, entry["control_number"])
		assert.NotContains(t, entry, "error")
		assert.NotContains(t, entry, "diagnostics")

		document := obj(t, entry["document"])
		assert.Equal(t, "REF123", document["reference"])
		assert.Equal(t, "chargeable", document["claim_type"])
		assert.Equal(t, ctrl, document["header_control_number"])
	}

	// The input was archived out of the input dir.
	assert.Equal(t, filepath.Join(cfg.InputArchiveDir, "claims.edi"), result.ArchivedTo)
	assert.NoFileExists(t, inputPath)
	assert.FileExists(t, result.ArchivedTo)
}

func TestProcessFile_MissingInput(t *testing.T) {
	conv := converter.New(newTestConfig(t))

	result := conv.ProcessFile(filepath.Join(t.TempDir(), "nope.edi"))
	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "failed to read input file")
	assert.Empty(t, result.OutputFile)
}

func TestProcessFile_CompactOutput(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CompactOutput = true
	conv := converter.New(cfg)

	inputPath := filepath.Join(cfg.InputDir, "claims.edi")
	require.NoError(t, os.WriteFile(inputPath, []byte(envelope(claimTxn("0001"))), 0644))

	result := conv.ProcessFile(inputPath)
	require.NoError(t, result.Error)

	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "single line plus trailing newline")
	assert.NotContains(t, string(data), "\n  ")
}

func TestProcessBytes_TokenizeError(t *testing.T) {
	conv := converter.New(newTestConfig(t))

	_, _, err := conv.ProcessBytes("garbage.edi", []byte("this is not an interchange"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to tokenize")
	assert.Contains(t, err.Error(), "garbage.edi")
}

func TestProcessBytes_NoSchemaRule(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.SchemaMapping = nil
	conv := converter.New(cfg)

	data := []byte(envelope(claimTxn("0001")))

	doc, stats, err := conv.ProcessBytes("claims.edi", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 transaction(s) failed")
	assert.Equal(t, 1, stats.TransactionsFailed)

	// The document still carries the error entry.
	entry := firstTransaction(t, doc)
	assert.Contains(t, entry["error"], "no schema mapping for transaction set 837")
	assert.NotContains(t, entry, "document")

	// With continue_on_error the same outcome is not fatal.
	cfg.ContinueOnError = true
	doc, stats, err = conv.ProcessBytes("claims.edi", data)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransactionsFailed)
	assert.Contains(t, firstTransaction(t, doc)["error"], "no schema mapping")
}

func TestProcessBytes_SchemaOverride(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.SchemaMapping = nil
	conv := converter.New(cfg)
	conv.SetSchemaOverride(filepath.Join(cfg.SchemasDir, "837p.json"))

	doc, stats, err := conv.ProcessBytes("claims.edi", []byte(envelope(claimTxn("0001"))))
	require.NoError(t, err)
	assert.Zero(t, stats.TransactionsFailed)

	document := obj(t, firstTransaction(t, doc)["document"])
	assert.Equal(t, "REF123", document["reference"])
}

func TestProcessBytes_SchemaValidationFailure(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ContinueOnError = true
	writeSchema(t, cfg, "837p.json", `{"transaction_set": ""}`)
	conv := converter.New(cfg)

	doc, stats, err := conv.ProcessBytes("claims.edi", []byte(envelope(claimTxn("0001"))))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransactionsFailed)
	assert.Contains(t, firstTransaction(t, doc)["error"], "failed validation")
}

func TestProcessBytes_StructuralError(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ContinueOnError = true
	conv := converter.New(cfg)

	// The second HL references a parent id that does not exist.
	broken := "ST*837*0001*005010X222A1~" +
		"BHT*0019*00*REF123*20240115*1230*CH~" +
		"HL*1**20*1~" +
		"HL*2*99*22*0~" +
		"SE*5*0001~"

	doc, stats, err := conv.ProcessBytes("claims.edi", []byte(envelope(broken)))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransactionsFailed)

	entry := firstTransaction(t, doc)
	assert.Contains(t, entry["error"], "unknown parent")
	assert.NotContains(t, entry, "document", "structural corruption yields nothing usable")
}

func TestProcessBytes_StrictExpect(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ContinueOnError = true
	cfg.StrictExpect = true
	strict := strings.Replace(professionalSchema,
		`{"position": 2, "output": "reference"}`,
		`{"position": 2, "output": "reference", "expect": "REF999"}`, 1)
	writeSchema(t, cfg, "837p.json", strict)
	conv := converter.New(cfg)

	doc, stats, err := conv.ProcessBytes("claims.edi", []byte(envelope(claimTxn("0001"))))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransactionsFailed)
	assert.Equal(t, 1, stats.Diagnostics)

	entry := firstTransaction(t, doc)
	assert.Contains(t, entry["error"], "strict expect")

	// The partial document rides along with the error.
	document := obj(t, entry["document"])
	assert.Equal(t, "REF123", document["reference"])

	diags, ok := entry["diagnostics"].([]string)
	require.True(t, ok, "expected string list, got %T", entry["diagnostics"])
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "value_mismatch")
}

func TestProcessBytes_EnvelopeWarnings(t *testing.T) {
	cfg := newTestConfig(t)
	conv := converter.New(cfg)

	// SE declares nine segments; the transaction has three.
	miscounted := "ST*837*0001*005010X222A1~BHT*0019*00*REF123*20240115*1230*CH~SE*9*0001~"

	doc, stats, err := conv.ProcessBytes("claims.edi", []byte(envelope(miscounted)))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EnvelopeWarnings)
	assert.Zero(t, stats.TransactionsFailed, "envelope bookkeeping does not fail the transaction")

	ic := obj(t, arr(t, doc["interchanges"])[0])
	warnings, ok := ic["warnings"].([]string)
	require.True(t, ok, "expected string list, got %T", ic["warnings"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "SE declares 9 segments")

	document := obj(t, firstTransaction(t, doc)["document"])
	assert.Equal(t, "REF123", document["reference"])
}

func TestProcessBytes_ManyTransactionsKeepOrder(t *testing.T) {
	cfg := newTestConfig(t)
	conv := converter.New(cfg)

	var txns []string
	for i := 1; i <= 5; i++ {
		txns = append(txns, claimTxn(fmt.Sprintf("%04d", i)))
	}

	doc, stats, err := conv.ProcessBytes("claims.edi", []byte(envelope(txns...)))
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Transactions)

	ic := obj(t, arr(t, doc["interchanges"])[0])
	fg := obj(t, arr(t, ic["functional_groups"])[0])
	entries := arr(t, fg["transactions"])
	require.Len(t, entries, 5)
	for i := range entries {
		assert.Equal(t, fmt.Sprintf("%04d", i+1), obj(t, entries[i])["control_number"])
	}
}

func TestLoadCompanionGuide(t *testing.T) {
	cfg := newTestConfig(t)

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "BHT"))
	rows := [][]any{
		{"Position", "Code", "Value"},
		{5, "CH", "chargeable_payer_specific"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("BHT", cell, &row))
	}
	guidePath := filepath.Join(t.TempDir(), "guide.xlsx")
	require.NoError(t, f.SaveAs(guidePath))

	cfg.CompanionGuide = guidePath
	conv := converter.New(cfg)
	require.NoError(t, conv.LoadCompanionGuide())

	doc, _, err := conv.ProcessBytes("claims.edi", []byte(envelope(claimTxn("0001"))))
	require.NoError(t, err)

	document := obj(t, firstTransaction(t, doc)["document"])
	assert.Equal(t, "chargeable_payer_specific", document["claim_type"],
		"the guide's wording replaces the schema's")
}

func TestLoadCompanionGuide_Unconfigured(t *testing.T) {
	conv := converter.New(newTestConfig(t))
	require.NoError(t, conv.LoadCompanionGuide())
}

func TestLoadCompanionGuide_MissingFile(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CompanionGuide = filepath.Join(t.TempDir(), "nope.xlsx")
	conv := converter.New(cfg)

	err := conv.LoadCompanionGuide()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open companion guide")
}
