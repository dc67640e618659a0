// =============================================================================
// zx12 - Main Entry Point
// =============================================================================
//
// This is the main entry point for the zx12 CLI application. It initializes
// the Cobra CLI framework and delegates command execution to the cmd package.
//
// USAGE:
//   zx12 process       - Process all X12 files in the input directory
//   zx12 validate      - Validate configuration and schemas without processing
//   zx12 version       - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : Contains all CLI command definitions (Cobra)
//   - internal/      : Contains core business logic (not for external import)
//   - pkg/           : Contains shared utilities
//   - schemas/       : Contains transaction schema JSON documents
//
// =============================================================================

package main

import (
	"github.com/LibrePPS/zx12-go/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
