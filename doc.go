// Package mcp implements the server side of the Model Context Protocol (MCP),
// the standardized protocol for integrating Large Language Models (LLMs) with
// external data sources and tools. This implementation follows the official
// specification from https://spec.modelcontextprotocol.io/specification/.
//
// The package enforces the MCP initialization handshake on every session,
// routes post-handshake traffic to application handlers, and exposes the
// typed requests and notifications a server may direct at its clients, over
// pluggable stdio and Server-Sent Events transports.
package mcp
