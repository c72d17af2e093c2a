package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/Drmusab/taskstore/internal/engine"
)

// NewServer creates an MCP server with all task storage tools registered
// against the given engine.
func NewServer(eng *engine.Engine) *server.MCPServer {
	h := NewHandler(eng)

	s := server.NewMCPServer(
		"taskstore",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Task CRUD tools
	s.AddTool(saveTaskTool(), h.HandleSaveTask)
	s.AddTool(getTaskTool(), h.HandleGetTask)
	s.AddTool(deleteTaskTool(), h.HandleDeleteTask)
	s.AddTool(archiveTaskTool(), h.HandleArchiveTask)

	// Query tools
	s.AddTool(listTasksTool(), h.HandleListTasks)
	s.AddTool(tasksDueOnTool(), h.HandleTasksDueOn)
	s.AddTool(queryArchiveTool(), h.HandleQueryArchive)
	s.AddTool(archiveStatsTool(), h.HandleArchiveStats)

	// Durability
	s.AddTool(flushTool(), h.HandleFlush)

	return s
}
