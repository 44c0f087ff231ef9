// Package cmd implements the command-line interface of aodb. It runs the
// server and talks to it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for database operations (put, get, list, history, authorize, ...)
//   - lock: Commands for locking operations (acquire, release)
//   - serve: Commands for starting and configuring the aodb server
//   - sync: Replicates a database of a server into a local directory
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See aodb -help for a list of all commands.
package cmd
