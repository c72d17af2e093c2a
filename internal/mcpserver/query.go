package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Drmusab/taskstore/internal/archive"
	"github.com/Drmusab/taskstore/internal/task"
)

// HandleListTasks lists active tasks.
// Parameters:
//   - enabledOnly (bool, optional): restrict to enabled tasks
//   - from, to (string, optional): inclusive RFC 3339 due-time bounds;
//     both must be given together
func (h *Handler) HandleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	fromRaw, _ := args["from"].(string)
	toRaw, _ := args["to"].(string)
	if (fromRaw == "") != (toRaw == "") {
		return mcp.NewToolResultError("Parameters from and to must be provided together"), nil
	}

	var tasks []*task.Task
	switch {
	case fromRaw != "":
		from, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid from: %v", err)), nil
		}
		to, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid to: %v", err)), nil
		}
		tasks = h.engine.TasksInRange(from, to)
		if enabledOnly, _ := args["enabledOnly"].(bool); enabledOnly {
			tasks = filterEnabled(tasks)
		}
	default:
		if enabledOnly, _ := args["enabledOnly"].(bool); enabledOnly {
			tasks = h.engine.EnabledTasks()
		} else {
			tasks = h.engine.AllTasks()
		}
	}

	return taskListResult(tasks)
}

// HandleTasksDueOn lists enabled tasks due on a calendar date, or due on
// or before it when orBefore is set.
func (h *Handler) HandleTasksDueOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateRaw, errResult := requiredString(request, "date")
	if errResult != nil {
		return errResult, nil
	}
	date, err := time.ParseInLocation("2006-01-02", dateRaw, time.UTC)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid date, expected YYYY-MM-DD: %v", err)), nil
	}

	args := request.GetArguments()
	var tasks []*task.Task
	if orBefore, _ := args["orBefore"].(bool); orBefore {
		tasks = h.engine.TasksDueOnOrBefore(date)
	} else {
		tasks = h.engine.TasksDueOn(date)
	}

	return taskListResult(tasks)
}

// HandleQueryArchive queries archived task snapshots.
// Parameters:
//   - from, to (string, optional): inclusive RFC 3339 completion-time bounds
//   - taskId (string, optional): restrict to one task's snapshots
//   - limit, offset (number, optional): pagination over the matching set
func (h *Handler) HandleQueryArchive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var q archive.Query
	if fromRaw, ok := args["from"].(string); ok && fromRaw != "" {
		from, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid from: %v", err)), nil
		}
		q.From = &from
	}
	if toRaw, ok := args["to"].(string); ok && toRaw != "" {
		to, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid to: %v", err)), nil
		}
		q.To = &to
	}
	if taskID, ok := args["taskId"].(string); ok {
		q.TaskID = taskID
	}
	if limit, ok := args["limit"].(float64); ok {
		if limit < 0 {
			return mcp.NewToolResultError("Parameter limit must not be negative"), nil
		}
		q.Limit = int(limit)
	}
	if offset, ok := args["offset"].(float64); ok {
		if offset < 0 {
			return mcp.NewToolResultError("Parameter offset must not be negative"), nil
		}
		q.Offset = int(offset)
	}

	tasks, err := h.engine.LoadArchive(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to query archive: %v", err)), nil
	}
	return taskListResult(tasks)
}

// HandleArchiveStats reports the archive index metadata.
func (h *Handler) HandleArchiveStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.engine.ArchiveStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read archive stats: %v", err)), nil
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode archive stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// HandleFlush blocks until any pending snapshot write has completed.
func (h *Handler) HandleFlush(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.engine.Flush(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Flush failed: %v", err)), nil
	}
	return mcp.NewToolResultText("All pending task writes are durable"), nil
}

// filterEnabled keeps only enabled tasks, preserving order.
func filterEnabled(tasks []*task.Task) []*task.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}
