// Package cmd implements the command-line interface of dDoc. It provides a
// hierarchical command structure for running a development account and for
// working with documents as a client.
//
// The package is organized into several subpackages:
//
//   - document: Commands for document operations (get, put, del, query)
//   - inspect: Commands to look at partitioning and client internals (epk, ranges, stats)
//   - serve: Commands for starting a development gateway with in memory replicas
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set as environment variables with the DDOC_ prefix
// (e.g. DDOC_ACCOUNT_ENDPOINT=http://localhost:8081). See ddoc -help for a
// list of all commands.
package cmd
