// Package logging configures structured logging for the workbench.
//
// Logs are JSON lines written to ~/.baworkbench/logs/workbench.log with
// size-based rotation. The CLI mirrors them to stderr only when --debug is
// set, so normal command output stays clean.
package logging
