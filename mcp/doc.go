// Package mcp implements the Model Context Protocol engine: the
// connection handshake, the capability-scoped request router and
// per-request context, the handler registration surface, and the Server
// and Client runtimes built on top of the jsonrpc and transport packages.
package mcp
