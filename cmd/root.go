// =============================================================================
// zx12 - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'process', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (zx12)
//   ├── processCmd (zx12 process)
//   ├── validateCmd (zx12 validate)
//   └── versionCmd (zx12 version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose); loading the
//   configuration file itself happens inside the commands that need it, so
//   'zx12 version' works without a config present.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "zx12",

	Short: "zx12 - Convert X12 EDI transactions to structured JSON",

	Long: `zx12 is a schema-driven converter for X12 EDI documents. It reads
interchanges from the input directory, interprets each transaction set against
a JSON schema describing its loops and element mappings, and writes one
structured JSON document per input file.

Key Features:
  - Delimiter detection straight from the ISA header
  - Schema selection by transaction set and implementation reference
  - Hierarchical (HL) and loop-based transaction structures
  - Payer-specific code wording via an XLSX companion guide
  - Concurrent transaction interpretation
  - Automatic file archival on successful processing

Example Usage:
  zx12 process                    # Process all files in the input directory
  zx12 process --config ./my.yaml # Use a custom configuration file
  zx12 validate                   # Validate configuration and schemas`,

	// Without a subcommand there is nothing to do but explain ourselves.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================
	// Persistent flags are available to this command and all subcommands.

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug output",
	)
}
