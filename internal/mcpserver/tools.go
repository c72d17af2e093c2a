// Package mcpserver exposes the task storage engine over MCP stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// saveTaskTool returns a tool definition for creating or updating a task.
func saveTaskTool() mcp.Tool {
	return mcp.NewTool("save_task",
		mcp.WithDescription("Create or update a task. Omit id to create a new task. Updates must carry the version returned by the last read; a stale version is rejected with a conflict."),
		mcp.WithString("id",
			mcp.Description("Task ID. Omitted on create; a new ID is minted and returned.")),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Human-readable task name")),
		mcp.WithString("dueAt",
			mcp.Required(),
			mcp.Description("Due instant in RFC 3339 format (e.g., 2026-03-14T09:00:00Z)")),
		mcp.WithBoolean("enabled",
			mcp.Description("Whether the task is active. Defaults to true.")),
		mcp.WithString("status",
			mcp.Description("Task status: todo, done, or cancelled")),
		mcp.WithString("priority",
			mcp.Description("Task priority: high, normal, or low")),
		mcp.WithString("linkedBlockId",
			mcp.Description("Document block this task is linked to, if any")),
		mcp.WithNumber("version",
			mcp.Description("Version from the last read. Required on update; ignored on create.")),
	)
}

// getTaskTool returns a tool definition for fetching a single task.
func getTaskTool() mcp.Tool {
	return mcp.NewTool("get_task",
		mcp.WithDescription("Fetch a single active task by ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Task ID")),
	)
}

// deleteTaskTool returns a tool definition for deleting a task.
func deleteTaskTool() mcp.Tool {
	return mcp.NewTool("delete_task",
		mcp.WithDescription("Delete an active task by ID. The record is discarded, not archived."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Task ID")),
	)
}

// archiveTaskTool returns a tool definition for archiving a completed task.
func archiveTaskTool() mcp.Tool {
	return mcp.NewTool("archive_task",
		mcp.WithDescription("Move a completed task from the active set into the archive. The task must be disabled and carry a completion timestamp."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Task ID")),
	)
}

// listTasksTool returns a tool definition for listing active tasks.
func listTasksTool() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List active tasks, optionally restricted to enabled tasks or a due-time range."),
		mcp.WithBoolean("enabledOnly",
			mcp.Description("Return only enabled tasks")),
		mcp.WithString("from",
			mcp.Description("Inclusive lower bound on due time, RFC 3339")),
		mcp.WithString("to",
			mcp.Description("Inclusive upper bound on due time, RFC 3339")),
	)
}

// tasksDueOnTool returns a tool definition for due-date lookups.
func tasksDueOnTool() mcp.Tool {
	return mcp.NewTool("tasks_due_on",
		mcp.WithDescription("List enabled tasks due on a calendar date, or due on or before it."),
		mcp.WithString("date",
			mcp.Required(),
			mcp.Description("Calendar date in YYYY-MM-DD form (UTC)")),
		mcp.WithBoolean("orBefore",
			mcp.Description("Include tasks due before the date as well")),
	)
}

// queryArchiveTool returns a tool definition for querying archived tasks.
func queryArchiveTool() mcp.Tool {
	return mcp.NewTool("query_archive",
		mcp.WithDescription("Query archived task snapshots by completion-time range and task ID, with pagination."),
		mcp.WithString("from",
			mcp.Description("Inclusive lower bound on completion time, RFC 3339")),
		mcp.WithString("to",
			mcp.Description("Inclusive upper bound on completion time, RFC 3339")),
		mcp.WithString("taskId",
			mcp.Description("Restrict results to snapshots of one task")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return")),
		mcp.WithNumber("offset",
			mcp.Description("Number of matching results to skip")),
	)
}

// archiveStatsTool returns a tool definition for archive index metadata.
func archiveStatsTool() mcp.Tool {
	return mcp.NewTool("archive_stats",
		mcp.WithDescription("Report archive index metadata: total archived count and per-chunk summaries."),
	)
}

// flushTool returns a tool definition for forcing a durable snapshot write.
func flushTool() mcp.Tool {
	return mcp.NewTool("flush",
		mcp.WithDescription("Block until any pending task snapshot has been durably written."),
	)
}
