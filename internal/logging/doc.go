// Package logging provides rotating file-based structured logging for the
// search core, plus an MCP-safe mode that never writes to stdout/stderr
// (the MCP stdio transport reserves both for the JSON-RPC stream).
package logging
