// Package integration provides integration tests for the campaign API server.
// They start the complete application over a SQLite database and drive it
// through its HTTP API.
package integration
