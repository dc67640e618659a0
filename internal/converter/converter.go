// =============================================================================
// zx12 - Converter Module
// =============================================================================
//
// Core conversion pipeline for a single X12 file, from raw bytes to the JSON
// output document:
//
//   1. Read the input file
//   2. Tokenize (detect delimiters from ISA, split segments)
//   3. Split the envelope (ISA/GS/ST structure, envelope warnings)
//   4. Interpret each transaction against its schema
//   5. Assemble the envelope-shaped output document
//   6. Write the JSON output file
//   7. Archive the processed input
//
// CONCURRENCY:
//   Transactions within a file are interpreted in parallel, bounded by the
//   configured max_concurrency. Schemas are loaded once and shared read-only;
//   the interpretation engine takes no locks.
//
// =============================================================================

package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/LibrePPS/zx12-go/internal/companion"
	"github.com/LibrePPS/zx12-go/internal/config"
	"github.com/LibrePPS/zx12-go/internal/engine"
	"github.com/LibrePPS/zx12-go/internal/jsonwriter"
	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/types"
	"github.com/LibrePPS/zx12-go/internal/validation"
	"github.com/LibrePPS/zx12-go/internal/x12"
	"github.com/LibrePPS/zx12-go/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// InputFile is the path to the input file that was processed.
	InputFile string

	// OutputFile is the path to the generated JSON file.
	// This is empty if processing failed before the write step.
	OutputFile string

	// ArchivedTo is where the input was moved after success.
	ArchivedTo string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Interchanges is the number of ISA envelopes in the file.
	Interchanges int

	// Transactions is the number of transaction sets interpreted.
	Transactions int

	// TransactionsFailed is the number of transactions that produced an
	// error (no schema, structural corruption, strict-expect failure).
	TransactionsFailed int

	// SegmentsProcessed is the total number of segments claimed by
	// interpretation across all transactions.
	SegmentsProcessed int

	// Diagnostics is the total number of non-fatal findings recorded.
	Diagnostics int

	// EnvelopeWarnings is the number of envelope consistency warnings
	// (control number mismatches, wrong trailer counts).
	EnvelopeWarnings int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger is the logging interface the converter writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// logLevels orders the known level names.
var logLevels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// defaultLogger prints bracketed levels to stdout, gated by a minimum level.
type defaultLogger struct {
	min int
}

// NewLogger returns a stdout logger filtered to the given minimum level.
// Unknown level names fall back to "info".
func NewLogger(level string) Logger {
	min, ok := logLevels[level]
	if !ok {
		min = logLevels["info"]
	}
	return &defaultLogger{min: min}
}

func (l *defaultLogger) Debug(msg string, args ...any) { l.log(0, "DEBUG", msg, args...) }
func (l *defaultLogger) Info(msg string, args ...any)  { l.log(1, "INFO", msg, args...) }
func (l *defaultLogger) Warn(msg string, args ...any)  { l.log(2, "WARN", msg, args...) }
func (l *defaultLogger) Error(msg string, args ...any) { l.log(3, "ERROR", msg, args...) }

func (l *defaultLogger) log(level int, tag, msg string, args ...any) {
	if level < l.min {
		return
	}
	fmt.Printf("["+tag+"] "+msg+"\n", args...)
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter processes X12 files according to the loaded configuration.
// One Converter serves a whole run: schemas are cached across files.
type Converter struct {
	// mainConfig is the application configuration.
	mainConfig *config.MainConfig

	// guide is the optional companion guide, merged into each schema as it
	// is loaded.
	guide *companion.Guide

	// files handles discovery, output placement and archival.
	files *utils.FileManager

	// logger receives pipeline progress.
	logger Logger

	// schemaOverride, when set, interprets every transaction against this
	// schema document instead of consulting the mapping table.
	schemaOverride string

	// schemaCache holds loaded schemas keyed by file path.
	mu          sync.Mutex
	schemaCache map[string]*schema.TransactionSchema
}

// New creates a Converter over the given configuration.
func New(mainConfig *config.MainConfig) *Converter {
	return &Converter{
		mainConfig: mainConfig,
		files: utils.NewFileManager(
			mainConfig.InputDir,
			mainConfig.OutputDir,
			mainConfig.InputArchiveDir,
		),
		logger:      NewLogger(mainConfig.LogLevel),
		schemaCache: make(map[string]*schema.TransactionSchema),
	}
}

// SetLogger replaces the converter's logger.
func (c *Converter) SetLogger(logger Logger) {
	c.logger = logger
}

// SetSchemaOverride forces every transaction through the given schema
// document, bypassing the mapping table. Meant for single-file runs where
// the caller already knows the transaction type.
func (c *Converter) SetSchemaOverride(path string) {
	c.schemaOverride = path
}

// FileManager exposes the converter's file manager so the CLI can share its
// discovery and directory handling.
func (c *Converter) FileManager() *utils.FileManager {
	return c.files
}

// LoadCompanionGuide loads the configured companion guide workbook, if any.
// Must be called before the first ProcessFile to take effect.
func (c *Converter) LoadCompanionGuide() error {
	if c.mainConfig.CompanionGuide == "" {
		return nil
	}
	guide, err := companion.Parse(c.mainConfig.CompanionGuide)
	if err != nil {
		return err
	}
	c.guide = guide
	c.logger.Info("Loaded companion guide %s (%d segment tables)",
		c.mainConfig.CompanionGuide, len(guide.Segments))
	return nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// ProcessFile executes the conversion pipeline for one input file.
func (c *Converter) ProcessFile(inputPath string) Result {
	startTime := time.Now()
	result := Result{
		InputFile: inputPath,
		Success:   false,
	}

	// =========================================================================
	// STEP 1: READ INPUT
	// =========================================================================

	c.logger.Info("Processing file: %s", inputPath)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read input file: %w", err)
		return result
	}

	// =========================================================================
	// STEPS 2-5: INTERPRET
	// =========================================================================

	doc, stats, err := c.ProcessBytes(filepath.Base(inputPath), data)
	result.Stats = stats
	result.Stats.ProcessingTime = time.Since(startTime)
	if err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 6: WRITE OUTPUT FILE
	// =========================================================================

	options := jsonwriter.DefaultGenerateOptions()
	options.Pretty = !c.mainConfig.CompactOutput

	outputPath := filepath.Join(c.mainConfig.OutputDir, utils.OutputFileName(inputPath))
	if err := jsonwriter.WriteFile(outputPath, doc, options); err != nil {
		result.Error = err
		return result
	}
	result.OutputFile = outputPath
	c.logger.Info("Wrote output to: %s", outputPath)

	// =========================================================================
	// STEP 7: ARCHIVE INPUT
	// =========================================================================

	archived, err := c.files.ArchiveInputFile(inputPath)
	if err != nil {
		// Archival failure is not a processing failure; the output exists.
		c.logger.Warn("Failed to archive input file: %v", err)
	} else {
		result.ArchivedTo = archived
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)
	return result
}

// ProcessBytes runs tokenization, envelope splitting and interpretation over
// raw X12 bytes and returns the assembled output document. The sourceName
// only labels the document and log lines.
func (c *Converter) ProcessBytes(sourceName string, data []byte) (map[string]any, ProcessingStats, error) {
	var stats ProcessingStats

	// =========================================================================
	// STEP 2: TOKENIZE
	// =========================================================================

	segments, delims, err := x12.Tokenize(data)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to tokenize %s: %w", sourceName, err)
	}
	c.logger.Debug("Tokenized %d segments (element=%q component=%q)",
		len(segments), string(delims.Element), string(delims.Component))

	// =========================================================================
	// STEP 3: SPLIT ENVELOPE
	// =========================================================================

	interchanges, err := x12.SplitEnvelope(segments)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read envelope of %s: %w", sourceName, err)
	}
	stats.Interchanges = len(interchanges)

	for i := range interchanges {
		stats.EnvelopeWarnings += len(interchanges[i].Warnings)
		for _, w := range interchanges[i].Warnings {
			c.logger.Warn("Envelope: %s", w)
		}
	}

	// =========================================================================
	// STEP 4: INTERPRET TRANSACTIONS
	// =========================================================================

	jobs := collectJobs(interchanges)
	stats.Transactions = len(jobs)
	c.logger.Debug("Interpreting %d transaction(s) across %d interchange(s)",
		len(jobs), len(interchanges))

	maxConcurrency := c.mainConfig.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	outcomes := make([]txOutcome, len(jobs))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = c.interpretTransaction(&jobs[i], delims)
		}(i)
	}
	wg.Wait()

	for i := range outcomes {
		stats.SegmentsProcessed += outcomes[i].segmentsProcessed
		stats.Diagnostics += outcomes[i].diagnostics
		if outcomes[i].failed {
			stats.TransactionsFailed++
		}
	}

	// =========================================================================
	// STEP 5: ASSEMBLE OUTPUT
	// =========================================================================

	doc := assembleDocument(sourceName, interchanges, jobs, outcomes)

	if stats.TransactionsFailed > 0 && !c.mainConfig.ContinueOnError {
		return doc, stats, fmt.Errorf("%d of %d transaction(s) failed in %s",
			stats.TransactionsFailed, stats.Transactions, sourceName)
	}
	return doc, stats, nil
}

// =============================================================================
// PER-TRANSACTION INTERPRETATION
// =============================================================================

// txJob locates one transaction set inside the envelope structure.
type txJob struct {
	interchange int
	group       int
	txn         *x12.TransactionSet
}

// txOutcome is one transaction's output entry plus bookkeeping.
type txOutcome struct {
	entry             map[string]any
	segmentsProcessed int
	diagnostics       int
	failed            bool
}

// collectJobs flattens the envelope tree into one job per transaction set.
func collectJobs(interchanges []x12.Interchange) []txJob {
	var jobs []txJob
	for i := range interchanges {
		for g := range interchanges[i].FunctionalGroups {
			txns := interchanges[i].FunctionalGroups[g].Transactions
			for t := range txns {
				jobs = append(jobs, txJob{interchange: i, group: g, txn: &txns[t]})
			}
		}
	}
	return jobs
}

// interpretTransaction resolves the transaction's schema and runs the engine
// over its segments. Failures never abort the file; they become error
// entries in the output document.
func (c *Converter) interpretTransaction(job *txJob, delims types.Delimiters) txOutcome {
	txn := job.txn
	entry := map[string]any{
		"set_id":         txn.SetID,
		"control_number": txn.ControlNumber,
	}

	schemaPath := c.schemaOverride
	if schemaPath == "" {
		var ok bool
		schemaPath, ok = c.mainConfig.SchemaFor(txn.SetID, txn.ImplementationRef)
		if !ok {
			c.logger.Error("Transaction %s: no schema mapping for set %s (%s)",
				txn.ControlNumber, txn.SetID, txn.ImplementationRef)
			entry["error"] = fmt.Sprintf("no schema mapping for transaction set %s (%s)",
				txn.SetID, txn.ImplementationRef)
			return txOutcome{entry: entry, failed: true}
		}
	}

	sch, err := c.loadSchema(schemaPath)
	if err != nil {
		c.logger.Error("Transaction %s: %v", txn.ControlNumber, err)
		entry["error"] = err.Error()
		return txOutcome{entry: entry, failed: true}
	}

	it := engine.New(sch, engine.Options{
		CompositeSeparator: delims.ComponentString(),
		StrictExpect:       c.mainConfig.StrictExpect,
	})

	res, err := it.Interpret(txn.Segments)
	if err != nil {
		entry["error"] = err.Error()
		if res == nil {
			// Structural corruption: nothing usable for this transaction.
			c.logger.Error("Transaction %s: %v", txn.ControlNumber, err)
			return txOutcome{entry: entry, failed: true}
		}
		// Strict-expect failure: the partial document is still worth
		// emitting alongside the error.
		c.logger.Error("Transaction %s: %v", txn.ControlNumber, err)
	}

	entry["document"] = res.Document
	if len(res.Diagnostics) > 0 {
		lines := make([]string, len(res.Diagnostics))
		for i, d := range res.Diagnostics {
			lines[i] = d.String()
			c.logger.Warn("Transaction %s: %s", txn.ControlNumber, d.String())
		}
		entry["diagnostics"] = lines
	}

	return txOutcome{
		entry:             entry,
		segmentsProcessed: res.SegmentsProcessed,
		diagnostics:       len(res.Diagnostics),
		failed:            err != nil,
	}
}

// loadSchema loads, validates and caches a schema document. The companion
// guide, when present, is folded in before the schema enters the cache.
func (c *Converter) loadSchema(path string) (*schema.TransactionSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.schemaCache[path]; ok {
		return s, nil
	}

	s, err := schema.Load(path)
	if err != nil {
		return nil, err
	}

	res := validation.ValidateSchema(s)
	for _, w := range res.Warnings() {
		c.logger.Warn("Schema %s: %s", path, w.Error())
	}
	if !res.Valid() {
		return nil, fmt.Errorf("schema %s failed validation:\n%s",
			path, validation.FormatFindings(res.Errors()))
	}

	if c.guide != nil {
		applied := c.guide.Apply(s)
		c.logger.Debug("Schema %s: companion guide applied %d code entries", path, applied)
	}

	c.schemaCache[path] = s
	c.logger.Debug("Loaded schema %s (%s %s)", path, s.TransactionSet, s.Implementation)
	return s, nil
}

// =============================================================================
// OUTPUT ASSEMBLY
// =============================================================================

// assembleDocument nests the per-transaction entries back into the envelope
// structure they arrived in.
func assembleDocument(sourceName string, interchanges []x12.Interchange,
	jobs []txJob, outcomes []txOutcome) map[string]any {

	interObjs := make([]any, len(interchanges))
	groupObjs := make([][]map[string]any, len(interchanges))

	for i := range interchanges {
		ic := &interchanges[i]
		groups := make([]any, len(ic.FunctionalGroups))
		groupObjs[i] = make([]map[string]any, len(ic.FunctionalGroups))

		for g := range ic.FunctionalGroups {
			fg := &ic.FunctionalGroups[g]
			obj := map[string]any{
				"functional_code": fg.FunctionalCode,
				"sender":          fg.Sender,
				"receiver":        fg.Receiver,
				"date":            fg.Date,
				"time":            fg.Time,
				"control_number":  fg.ControlNumber,
				"version":         fg.Version,
				"transactions":    []any{},
			}
			groupObjs[i][g] = obj
			groups[g] = obj
		}

		obj := map[string]any{
			"sender":            ic.Sender,
			"receiver":          ic.Receiver,
			"date":              ic.Date,
			"time":              ic.Time,
			"control_number":    ic.ControlNumber,
			"version":           ic.Version,
			"usage":             ic.Usage,
			"functional_groups": groups,
		}
		if len(ic.Warnings) > 0 {
			obj["warnings"] = ic.Warnings
		}
		interObjs[i] = obj
	}

	for i := range jobs {
		obj := groupObjs[jobs[i].interchange][jobs[i].group]
		obj["transactions"] = append(obj["transactions"].([]any), outcomes[i].entry)
	}

	return map[string]any{
		"source_file":  sourceName,
		"interchanges": interObjs,
	}
}
