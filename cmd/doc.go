// Package cmd implements the command-line interface of scired.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the bridge server and maps flags and SCIRED_* environment
//     variables to the server configuration
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See scired -help for a list of all commands.
package cmd
