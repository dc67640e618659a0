// =============================================================================
// zx12 - Process Command
// =============================================================================
//
// This file defines the 'process' command, which is the main command for
// converting X12 files to JSON. It orchestrates the conversion pipeline over
// a batch of input files.
//
// COMMAND USAGE:
//   zx12 process [flags]
//
// FLAGS:
//   --file     : Process only this file instead of scanning the input directory
//   --schema   : Interpret every transaction with this schema file, bypassing
//                the schema_mapping table
//   --dry-run  : Interpret without writing output files or archiving input
//
// PROCESSING PIPELINE:
//   1. Load the configuration file
//   2. Load the companion guide, when configured
//   3. Discover X12 files in the input directory
//   4. For each file (concurrently):
//      a. Tokenize and split the envelope
//      b. Interpret each transaction against its schema
//      c. Write the JSON output file
//      d. Archive the input file
//   5. Print a summary report
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/LibrePPS/zx12-go/internal/config"
	"github.com/LibrePPS/zx12-go/internal/converter"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun interprets input without writing output files or archiving.
var dryRun bool

// singleFile is the path to one specific file to process instead of the
// input directory scan.
var singleFile string

// schemaFile forces one schema document for every transaction.
var schemaFile string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process X12 files and convert them to JSON",
	Long: `The process command scans the input directory for X12 files, selects a
schema for each transaction set by its set id and implementation reference,
and converts the transactions to structured JSON.

Files are processed concurrently. Each file is processed independently, and
errors in one file do not affect the processing of others.

On successful processing:
  - The generated JSON is placed in the output directory
  - The original file is moved to the input archive

On error:
  - The original file remains in the input directory
  - Processing continues for other files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess()
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the process command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Interpret without writing output files or archiving input",
	)

	processCmd.Flags().StringVar(
		&singleFile,
		"file",
		"",
		"Process only this file instead of scanning the input directory",
	)

	processCmd.Flags().StringVar(
		&schemaFile,
		"schema",
		"",
		"Interpret every transaction with this schema file, bypassing the mapping table",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess orchestrates the conversion pipeline over the input batch.
func runProcess() error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== zx12 ===")
	fmt.Println("Loading configuration...")

	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	if verbose {
		mainConfig.LogLevel = "debug"
	}

	conv := converter.New(mainConfig)
	if err := conv.FileManager().EnsureDirectories(); err != nil {
		return err
	}
	if schemaFile != "" {
		conv.SetSchemaOverride(schemaFile)
	}

	// =========================================================================
	// STEP 2: LOAD COMPANION GUIDE
	// =========================================================================

	if err := conv.LoadCompanionGuide(); err != nil {
		return fmt.Errorf("failed to load companion guide: %w", err)
	}

	// =========================================================================
	// STEP 3: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if singleFile != "" {
		inputFiles = []string{singleFile}
	} else {
		fmt.Println("Discovering input files...")
		inputFiles, err = conv.FileManager().DiscoverInputFiles(mainConfig.FilePatterns)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No X12 files found in the input directory.")
		return nil
	}

	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 4: PROCESS FILES CONCURRENTLY
	// =========================================================================
	// Each file runs in its own goroutine, bounded by max_concurrency. The
	// results channel is buffered so no goroutine blocks on delivery.

	fmt.Println("Processing files...")

	var wg sync.WaitGroup
	results := make(chan converter.Result, len(inputFiles))
	sem := make(chan struct{}, mainConfig.MaxConcurrency)

	for _, file := range inputFiles {
		wg.Add(1)
		go func(filePath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if dryRun {
				results <- dryRunFile(conv, filePath)
				return
			}
			results <- conv.ProcessFile(filePath)
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 5: COLLECT RESULTS AND PRINT SUMMARY
	// =========================================================================

	var successCount, errorCount, transactions, diagnostics int

	for result := range results {
		transactions += result.Stats.Transactions
		diagnostics += result.Stats.Diagnostics
		if result.Success {
			successCount++
			target := result.OutputFile
			if dryRun {
				target = "(dry run)"
			}
			fmt.Printf("  ✓ %s -> %s [%d transaction(s), %d diagnostic(s), %s]\n",
				filepath.Base(result.InputFile), target,
				result.Stats.Transactions, result.Stats.Diagnostics,
				result.Stats.ProcessingTime.Round(time.Millisecond))
		} else {
			errorCount++
			fmt.Printf("  ✗ %s: %v\n", filepath.Base(result.InputFile), result.Error)
		}
	}

	elapsed := time.Since(startTime)
	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", len(inputFiles))
	fmt.Printf("Successful:      %d\n", successCount)
	fmt.Printf("Errors:          %d\n", errorCount)
	fmt.Printf("Transactions:    %d\n", transactions)
	fmt.Printf("Diagnostics:     %d\n", diagnostics)
	fmt.Printf("Time elapsed:    %s\n", elapsed.Round(time.Millisecond))

	if errorCount > 0 {
		return fmt.Errorf("%d of %d file(s) failed", errorCount, len(inputFiles))
	}
	return nil
}

// dryRunFile runs the interpretation stages only, leaving the filesystem
// untouched apart from the read.
func dryRunFile(conv *converter.Converter, filePath string) converter.Result {
	startTime := time.Now()
	result := converter.Result{InputFile: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read input file: %w", err)
		return result
	}

	_, stats, err := conv.ProcessBytes(filepath.Base(filePath), data)
	result.Stats = stats
	result.Stats.ProcessingTime = time.Since(startTime)
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}
