// Package cmd implements the command-line interface for dMsg. It provides
// commands for running the reference backend and for talking to a backend
// as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the backend
//   - client: Commands that use a sender (send, listen, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dmsg -help for a list of all commands.
package cmd
