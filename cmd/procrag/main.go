// Procrag indexes equipment and operations manuals and answers procedure
// questions with ordered steps, warnings, figure references and checklists.
//
// Usage:
//
//	# Ingest a directory of manuals
//	procrag ingest ./manuals
//
//	# Ask for steps 2 to 4 of a procedure
//	procrag query "ポンプの停止手順" --steps 2-4
//
//	# Serve the tools to an MCP client over stdio
//	procrag mcp
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
