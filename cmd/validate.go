// =============================================================================
// zx12 - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// file and every mapped schema without touching the input directory. Run it
// after editing schemas to catch structural mistakes before they surface as
// per-transaction failures in a production batch.
//
// COMMAND USAGE:
//   zx12 validate [schema files...]
//
// With no arguments, every schema referenced by the configuration's
// schema_mapping is validated. With arguments, only the named schema files
// are checked (the configuration is still loaded for its own validation).
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LibrePPS/zx12-go/internal/companion"
	"github.com/LibrePPS/zx12-go/internal/config"
	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/validation"
)

// =============================================================================
// VALIDATE COMMAND DEFINITION
// =============================================================================

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate [schema files...]",
	Short: "Validate the configuration and schema files",
	Long: `The validate command loads the configuration file, the companion guide
(when configured) and the mapped schema files, and reports every structural
problem it finds. Warnings are advisory; errors would fail the affected
transactions at processing time.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args)
	},
}

// init registers the validate command with the root command.
func init() {
	rootCmd.AddCommand(validateCmd)
}

// =============================================================================
// VALIDATION DRIVER
// =============================================================================

// runValidate checks the configuration, companion guide and schemas, and
// returns an error when any schema carries error-severity findings.
func runValidate(args []string) error {
	fmt.Println("=== zx12 validate ===")

	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	fmt.Printf("  ✓ configuration %s\n", cfgFile)

	if mainConfig.CompanionGuide != "" {
		guide, err := companion.Parse(mainConfig.CompanionGuide)
		if err != nil {
			return err
		}
		fmt.Printf("  ✓ companion guide %s (%d segment tables)\n",
			mainConfig.CompanionGuide, len(guide.Segments))
	}

	schemaFiles := args
	if len(schemaFiles) == 0 {
		schemaFiles = mappedSchemaFiles(mainConfig)
	}
	if len(schemaFiles) == 0 {
		fmt.Println("No schemas mapped; nothing further to validate.")
		return nil
	}

	invalid := 0
	for _, path := range schemaFiles {
		s, err := schema.Load(path)
		if err != nil {
			invalid++
			fmt.Printf("  ✗ %s: %v\n", path, err)
			continue
		}

		result := validation.ValidateSchema(s)
		switch {
		case !result.Valid():
			invalid++
			fmt.Printf("  ✗ %s (%s %s)\n", path, s.TransactionSet, s.Implementation)
			fmt.Println(indentFindings(validation.FormatFindings(result.Findings)))
		case len(result.Warnings()) > 0:
			fmt.Printf("  ✓ %s (%s %s), with warnings\n", path, s.TransactionSet, s.Implementation)
			fmt.Println(indentFindings(validation.FormatFindings(result.Warnings())))
		default:
			fmt.Printf("  ✓ %s (%s %s)\n", path, s.TransactionSet, s.Implementation)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d schema(s) failed validation", invalid, len(schemaFiles))
	}
	return nil
}

// mappedSchemaFiles resolves the distinct schema paths the configuration's
// mapping rules point at, preserving rule order.
func mappedSchemaFiles(mainConfig *config.MainConfig) []string {
	var files []string
	seen := make(map[string]bool)
	for _, rule := range mainConfig.SchemaMapping {
		path := filepath.Join(mainConfig.SchemasDir, rule.UseSchema)
		if seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

// indentFindings shifts a findings block under its schema's result line.
func indentFindings(block string) string {
	block = strings.TrimRight(block, "\n")
	return "      " + strings.ReplaceAll(block, "\n", "\n      ")
}
