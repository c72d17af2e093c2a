package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Drmusab/taskstore/internal/engine"
	"github.com/Drmusab/taskstore/internal/task"
)

// Handler dispatches MCP tool calls onto a task storage engine.
type Handler struct {
	engine *engine.Engine
}

// NewHandler wraps an engine for MCP exposure.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// HandleSaveTask creates or updates a task.
// Parameters:
//   - id (string, optional): omitted on create, a new UUID is minted
//   - name (string, required)
//   - dueAt (string, required): RFC 3339 instant
//   - enabled (bool, optional): defaults to true
//   - status, priority, linkedBlockId (string, optional)
//   - version (number): required on update, ignored on create
//
// Returns the saved task as JSON, including its new version.
func (h *Handler) HandleSaveTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultError("Missing required parameters"), nil
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	dueRaw, ok := args["dueAt"].(string)
	if !ok || dueRaw == "" {
		return mcp.NewToolResultError("Missing required parameter: dueAt"), nil
	}
	dueAt, err := time.Parse(time.RFC3339, dueRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid dueAt: %v", err)), nil
	}

	t := &task.Task{
		Name:    name,
		DueAt:   dueAt,
		Enabled: true,
	}

	if id, ok := args["id"].(string); ok && id != "" {
		t.ID = id
	} else {
		t.ID = uuid.NewString()
	}
	if enabled, ok := args["enabled"].(bool); ok {
		t.Enabled = enabled
	}
	if status, ok := args["status"].(string); ok && status != "" {
		if !task.IsValidStatus(task.Status(status)) {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid status: %s", status)), nil
		}
		t.Status = task.Status(status)
	}
	if priority, ok := args["priority"].(string); ok && priority != "" {
		if !task.IsValidPriority(task.Priority(priority)) {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid priority: %s", priority)), nil
		}
		t.Priority = task.Priority(priority)
	}
	if blockID, ok := args["linkedBlockId"].(string); ok {
		t.LinkedBlockID = blockID
	}
	// The tool carries the version from the caller's last read; the engine
	// accepts only versions above the stored one, so propose the successor.
	if version, ok := args["version"].(float64); ok {
		t.Version = int64(version) + 1
	}

	// Preserve fields the tool surface does not carry, so a partial
	// update does not erase the completion timestamp or metadata.
	if current := h.engine.GetTask(t.ID); current != nil {
		t.LastCompletedAt = current.LastCompletedAt
		t.Metadata = current.Metadata
	}

	if err := h.engine.SaveTask(ctx, t); err != nil {
		var conflict *task.ConflictError
		if errors.As(err, &conflict) {
			return mcp.NewToolResultError(fmt.Sprintf("Version conflict on task %s: the stored version is %d and your read is stale. Re-read the task and retry.", conflict.TaskID, conflict.Stored)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save task: %v", err)), nil
	}

	return taskResult(t)
}

// HandleGetTask fetches a single active task by ID.
func (h *Handler) HandleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requiredString(request, "id")
	if errResult != nil {
		return errResult, nil
	}

	t := h.engine.GetTask(id)
	if t == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Task not found: %s", id)), nil
	}
	return taskResult(t)
}

// HandleDeleteTask removes an active task. Deleting an absent task
// succeeds, so retries are safe.
func (h *Handler) HandleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requiredString(request, "id")
	if errResult != nil {
		return errResult, nil
	}

	if err := h.engine.DeleteTask(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted task %s", id)), nil
}

// HandleArchiveTask moves a completed task into the archive.
func (h *Handler) HandleArchiveTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requiredString(request, "id")
	if errResult != nil {
		return errResult, nil
	}

	t := h.engine.GetTask(id)
	if t == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Task not found: %s", id)), nil
	}

	if err := h.engine.ArchiveTask(ctx, t); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to archive task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Archived task %s", id)), nil
}

// requiredString extracts a required string argument, returning an error
// result when it is missing or empty.
func requiredString(request mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	args := request.GetArguments()
	if args == nil {
		return "", mcp.NewToolResultError("Missing required parameters")
	}
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("Missing required parameter: %s", key))
	}
	return value, nil
}

// taskResult renders a single task as an indented JSON text result.
func taskResult(t *task.Task) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// taskListResult renders a task slice as an indented JSON text result.
func taskListResult(tasks []*task.Task) (*mcp.CallToolResult, error) {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode tasks: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
