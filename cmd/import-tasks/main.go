// Package main implements the import-tasks command.
//
// This program reads a task document from stdin (a JSON array of task
// records, or an object with a "tasks" array), saves each record through
// the task engine, and flushes before exiting. Malformed records are
// skipped with a logged reason rather than failing the whole import.
//
// Exit codes:
//   - 0: Success (all readable records imported)
//   - 1: Error (invalid input, missing environment variable, storage failure)
//
// Environment variables: same as the mcp-server command.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Drmusab/taskstore/internal/blob"
	"github.com/Drmusab/taskstore/internal/codec"
	"github.com/Drmusab/taskstore/internal/engine"
)

// run contains the main logic, returning an exit code.
//
// Accepts an io.Reader for stdin to enable testing without modifying
// global state.
func run(stdin io.Reader) int {
	logger := log.New(os.Stderr, "[import-tasks] ", log.LstdFlags)

	data, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing tasks: %v\n", err)
		return 1
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		fmt.Fprintln(os.Stderr, "Error importing tasks: empty input")
		return 1
	}

	workspaceDir := strings.TrimSpace(os.Getenv("TASKSTORE_WORKSPACE_DIR"))
	if workspaceDir == "" {
		fmt.Fprintln(os.Stderr, "Warning: TASKSTORE_WORKSPACE_DIR not set")
		return 1
	}

	fc := codec.NewFastCodec(logger)
	tasks, err := fc.DeserializeList(string(data), true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing tasks: %v\n", err)
		return 1
	}
	if len(tasks) == 0 {
		fmt.Println("No importable tasks found")
		return 0
	}

	blobs, err := blob.Open(workspaceDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing tasks: %v\n", err)
		return 1
	}
	defer func() { _ = blobs.Close() }()

	ctx := context.Background()
	eng := engine.New(engine.Config{Blobs: blobs, Logger: logger})
	if err := eng.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing tasks: %v\n", err)
		return 1
	}
	defer eng.Close()

	imported := 0
	for _, t := range tasks {
		// Imports overwrite: propose the successor of the stored version
		// so the save is never rejected as stale.
		if existing := eng.GetTask(t.ID); existing != nil {
			t.Version = existing.Version + 1
		}
		if err := eng.SaveTask(ctx, t); err != nil {
			logger.Printf("skipping task %s: %v", t.ID, err)
			continue
		}
		imported++
	}

	if err := eng.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing tasks: %v\n", err)
		return 1
	}

	fmt.Printf("Imported %d of %d tasks\n", imported, len(tasks))
	return 0
}

func main() {
	os.Exit(run(os.Stdin))
}
