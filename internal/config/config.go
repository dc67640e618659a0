// =============================================================================
// zx12 - Configuration Module
// =============================================================================
//
// Loads and validates the application configuration. A single YAML file
// drives the whole pipeline: where input files live, where output and
// archives go, which schema interprets which transaction set, and how the
// converter behaves (concurrency, strictness, output shape).
//
// CONFIGURATION FILES:
//   1. Main config (config.yaml): directories, processing settings
//   2. Schema catalog (schemas/*.json): one JSON document per transaction
//      set, referenced from the schema_mapping table
//   3. Companion guide (optional XLSX): payer code tables merged into the
//      schemas at startup
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory scanned for X12 files to process.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is the directory where interpreted JSON documents are
	// written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir is where input files are moved after successful
	// processing.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// SchemasDir is the directory containing transaction schema documents.
	// Default: "./schemas"
	SchemasDir string `yaml:"schemas_dir"`

	// CompanionGuide is an optional XLSX workbook of payer code tables,
	// merged into every loaded schema at startup. Empty disables it.
	CompanionGuide string `yaml:"companion_guide"`

	// =========================================================================
	// FILE MATCHING
	// =========================================================================

	// FilePatterns are the glob patterns an input file name must match.
	// Default: ["*.edi", "*.x12", "*.txt"]
	FilePatterns []string `yaml:"file_patterns"`

	// =========================================================================
	// SCHEMA SELECTION
	// =========================================================================

	// SchemaMapping selects a schema document per transaction. Rules are
	// tried in order; the first match wins.
	SchemaMapping []SchemaRule `yaml:"schema_mapping"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the number of transactions interpreted in parallel
	// within one interchange. Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps a batch running when one file fails.
	// Default: false
	ContinueOnError bool `yaml:"continue_on_error"`

	// StrictExpect escalates expected-value mismatches from diagnostics to
	// processing errors.
	// Default: false
	StrictExpect bool `yaml:"strict_expect"`

	// CompactOutput drops indentation from the JSON output. The default is
	// pretty-printed.
	// Default: false
	CompactOutput bool `yaml:"compact_output"`
}

// =============================================================================
// SCHEMA RULE STRUCTURE
// =============================================================================

// SchemaRule maps a (transaction set, implementation reference) pair to a
// schema document. Patterns use filepath.Match syntax; an empty pattern
// matches anything.
type SchemaRule struct {
	// TransactionSet matches the ST01 set id, e.g. "837" or "83*".
	TransactionSet string `yaml:"transaction_set"`

	// Implementation matches the ST03 implementation convention reference
	// (falling back to GS08), e.g. "005010X223*" for 837 institutional.
	Implementation string `yaml:"implementation"`

	// UseSchema is the schema file name, resolved inside SchemasDir.
	UseSchema string `yaml:"use_schema"`
}

// matches reports whether the rule claims the given transaction identity.
func (r *SchemaRule) matches(setID, implementation string) bool {
	if r.TransactionSet != "" {
		if ok, _ := filepath.Match(r.TransactionSet, setID); !ok {
			return false
		}
	}
	if r.Implementation != "" {
		if ok, _ := filepath.Match(r.Implementation, implementation); !ok {
			return false
		}
	}
	return true
}

// SchemaFor resolves the schema file path for a transaction identity.
// The second return is false when no rule matches.
func (c *MainConfig) SchemaFor(setID, implementation string) (string, bool) {
	for i := range c.SchemaMapping {
		if c.SchemaMapping[i].matches(setID, implementation) {
			return filepath.Join(c.SchemasDir, c.SchemaMapping[i].UseSchema), true
		}
	}
	return "", false
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// LoadMainConfig loads, defaults and validates the main configuration.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.SchemasDir == "" {
		config.SchemasDir = "./schemas"
	}
	if len(config.FilePatterns) == 0 {
		config.FilePatterns = []string{"*.edi", "*.x12", "*.txt"}
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
}

// validateMainConfig checks values; it never touches the filesystem, so a
// config can be validated before the directories exist.
func validateMainConfig(config *MainConfig) error {
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", config.LogLevel)
	}

	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}

	for i, pattern := range config.FilePatterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("file_patterns[%d]: bad pattern %q: %w", i, pattern, err)
		}
	}

	for i := range config.SchemaMapping {
		rule := &config.SchemaMapping[i]
		if rule.UseSchema == "" {
			return fmt.Errorf("schema_mapping[%d]: use_schema is required", i)
		}
		for _, pattern := range []string{rule.TransactionSet, rule.Implementation} {
			if pattern == "" {
				continue
			}
			if _, err := filepath.Match(pattern, "probe"); err != nil {
				return fmt.Errorf("schema_mapping[%d]: bad pattern %q: %w", i, pattern, err)
			}
		}
	}

	return nil
}
