// Package mcp serves procedure retrieval over the Model Context Protocol.
//
// It uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp) and
// registers three tools:
//
//   - procedure_search: filtered retrieval merged into an ordered answer
//   - procedure_extract: offline extraction over text or a local file
//   - document_list: the ingested document catalog
//
// Tool calls are counted and timed through OpenTelemetry metrics.
package mcp
