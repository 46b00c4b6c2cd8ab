// Package mcp provides a Model Context Protocol server for operating the
// volleyball match relay.
//
// The mcp package implements:
//   - MCP server for operator and agent tooling
//   - Tool definitions proxying the relay REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools:
//   - relay_status: Mode, counters and uptime
//   - list_connections: Connected tablets and displays
//   - list_matches: Matches open to referee tablets
//   - get_match: Snapshot by match id or game number
//   - validate_pin: Check which match a PIN opens
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: Streamable HTTP endpoint mounted at /mcp
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	handler := server.NewStreamableHTTPServer(client.GetMCPServer())
//	apiServer.Mount("/mcp", handler)
package mcp
