// Package main implements the taskstore MCP server.
//
// The server exposes task CRUD, due-date queries, and archive queries over
// stdio JSON-RPC (Model Context Protocol). Task state lives in memory and
// is persisted with debounced snapshot writes to the configured backend.
//
// Environment variables:
//   - TASKSTORE_WORKSPACE_DIR: Required. Workspace root for path resolution.
//   - TASKSTORE_BACKEND: Optional. "file" (default), "sqlite", or "postgres".
//   - TASKSTORE_DATA_DIR: Optional. Custom directory for the file backend.
//   - TASKSTORE_SQLITE_PATH: Optional. Custom SQLite database path.
//   - TASKSTORE_POSTGRES_DSN: Required for the postgres backend.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Drmusab/taskstore/internal/blob"
	"github.com/Drmusab/taskstore/internal/engine"
	"github.com/Drmusab/taskstore/internal/mcpserver"
)

func run() int {
	errLogger := log.New(os.Stderr, "[mcp-server] ", log.LstdFlags)

	workspaceDir := strings.TrimSpace(os.Getenv("TASKSTORE_WORKSPACE_DIR"))
	if workspaceDir == "" {
		errLogger.Println("TASKSTORE_WORKSPACE_DIR not set")
		return 1
	}

	blobs, err := blob.Open(workspaceDir)
	if err != nil {
		errLogger.Printf("Failed to open storage backend: %v", err)
		return 1
	}
	defer func() { _ = blobs.Close() }()

	eng := engine.New(engine.Config{
		Blobs:  blobs,
		Logger: errLogger,
	})
	if err := eng.Init(context.Background()); err != nil {
		errLogger.Printf("Failed to initialize task engine: %v", err)
		return 1
	}
	defer func() {
		if err := eng.Flush(context.Background()); err != nil {
			errLogger.Printf("Final flush failed: %v", err)
		}
		eng.Close()
	}()

	srv := mcpserver.NewServer(eng)
	if err := server.ServeStdio(srv, server.WithErrorLogger(errLogger)); err != nil {
		errLogger.Printf("Server error: %v", err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
