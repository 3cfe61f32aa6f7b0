// Package common provides the configuration structures and the logging setup
// shared by the REST server, the REST client and the CLI.
//
// Key Components:
//
//   - ServerConfig: home directory, recovery pool size, endpoint, timeouts and
//     log level of the server. Rendered as a table by String.
//
//   - ClientConfig: endpoints, timeout and retry count of the client.
//
//   - StatusResponse: the {source, status, message, code} body the server sends for
//     responses without data. Err turns a failed one back into a *store.Error.
//
//   - Logger: a github.com/lni/dragonboat/v4/logger factory (CreateLogger) that
//     writes "LEVEL | package | message" lines to stdout. InitLoggers installs it
//     and sets the level of the registry, store, engine and rest loggers.
package common
