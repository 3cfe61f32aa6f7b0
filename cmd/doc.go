// Package cmd implements the command-line interface of jstore. It provides a
// hierarchical command structure for running the server and for talking to it
// as a client.
//
// The package is organized into several subpackages:
//
//   - serve: starts the REST server on a home directory (recovery, graceful shutdown)
//   - source: source lifecycle and sidecar commands (create, open, close, remove, schema, config, ...)
//   - kv: document commands (get, mget, put, del, patch) and a benchmark (perf)
//   - util: shared flag and configuration helpers (internal use)
//
// Flags can also be set through environment variables with the JSTORE_ prefix,
// .env and .env.local files are loaded on startup.
//
// See jstore -help for a list of all commands.
package cmd
