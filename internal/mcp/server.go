package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autotask/internal/core"
	"autotask/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the Manager facade as MCP tools over stdio.
type MCPServer struct {
	manager *core.Manager
	store   *store.Store
	logger  *slog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(manager *core.Manager, st *store.Store, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		manager: manager,
		store:   st,
		logger:  logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"autotask",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(mcpServer)
}

func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("task_create",
		mcp.WithDescription("Register a task that runs a shell command"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name; re-using a name overwrites the prior task"),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Shell command to run"),
		),
		mcp.WithString("description",
			mcp.Description("Human-readable description"),
		),
		mcp.WithString("working_dir",
			mcp.Description("Working directory for the command"),
		),
		mcp.WithNumber("timeout_s",
			mcp.Description("Timeout in seconds, 0 for none"),
			mcp.Min(0),
		),
	), s.handleCreateTask)

	mcpServer.AddTool(mcp.NewTool("task_list",
		mcp.WithDescription("List all registered tasks with their status"),
	), s.handleListTasks)

	mcpServer.AddTool(mcp.NewTool("task_status",
		mcp.WithDescription("Get the status, result and timing of a task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.handleTaskStatus)

	mcpServer.AddTool(mcp.NewTool("task_run",
		mcp.WithDescription("Execute a task immediately and wait for its result"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.handleRunTask)

	mcpServer.AddTool(mcp.NewTool("task_schedule",
		mcp.WithDescription("Schedule a task: one-shot at a time, recurring at an interval, or on a 5-field cron expression"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
		mcp.WithString("at",
			mcp.Description("RFC3339 timestamp for a one-shot run; defaults to now"),
		),
		mcp.WithNumber("interval_s",
			mcp.Description("Recurrence interval in seconds"),
			mcp.Min(0),
		),
		mcp.WithBoolean("repeat",
			mcp.Description("Whether the task re-arms after each run"),
		),
		mcp.WithString("cron",
			mcp.Description("5-field cron expression; implies repeat"),
		),
	), s.handleScheduleTask)

	mcpServer.AddTool(mcp.NewTool("task_cancel",
		mcp.WithDescription("Cancel a pending task; has no effect on any other state"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.handleCancelTask)

	mcpServer.AddTool(mcp.NewTool("task_runs",
		mcp.WithDescription("Show the run history of a task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of records to return, default 20"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleListRuns)

	mcpServer.AddTool(mcp.NewTool("cron_preview",
		mcp.WithDescription("Preview the next fire times of a cron expression"),
		mcp.WithString("cron",
			mcp.Required(),
			mcp.Description("5-field cron expression"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of fire times to return, default 5"),
			mcp.Min(1),
			mcp.Max(10),
		),
	), s.handleCronPreview)

	s.logger.Info("MCP tools registered", "count", 8)
}

func (s *MCPServer) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(mcp.ParseString(request, "name", ""))
	command := strings.TrimSpace(mcp.ParseString(request, "command", ""))
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	if command == "" {
		return mcp.NewToolResultError("command is required"), nil
	}
	description := mcp.ParseString(request, "description", "")
	workingDir := strings.TrimSpace(mcp.ParseString(request, "working_dir", ""))
	timeout := time.Duration(mcp.ParseFloat64(request, "timeout_s", 0)) * time.Second

	task := s.manager.CreateCommandTask(name, command, timeout, workingDir, description)
	return mcp.NewToolResultText(fmt.Sprintf("task created\nname: %s\nstatus: %s", task.Name, task.Status())), nil
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.manager.Tasks()
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks registered"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d tasks:\n\n", len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "[%s] %s\n", task.Status(), task.Name)
		if task.Description != "" {
			fmt.Fprintf(&b, "  %s\n", task.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	task, err := s.manager.GetTask(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\nstatus: %s\n", task.Name, task.Status())
	if result := task.Result(); result != nil {
		fmt.Fprintf(&b, "result: %v\n", result)
	}
	if errText := task.Err(); errText != "" {
		fmt.Fprintf(&b, "error: %s\n", errText)
	}
	if d, ok := task.Duration(); ok {
		fmt.Fprintf(&b, "duration: %s\n", d)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleRunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	result, err := s.manager.ExecuteTask(ctx, name)
	if errors.Is(err, core.ErrTaskNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("task %s failed: %v", name, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s completed\nresult: %v", name, result)), nil
}

func (s *MCPServer) handleScheduleTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	opts := core.ScheduleOptions{
		Every:  time.Duration(mcp.ParseFloat64(request, "interval_s", 0)) * time.Second,
		Repeat: mcp.ParseBoolean(request, "repeat", false),
		Cron:   strings.TrimSpace(mcp.ParseString(request, "cron", "")),
	}
	if at := mcp.ParseString(request, "at", ""); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return mcp.NewToolResultError("at must be an RFC3339 timestamp"), nil
		}
		opts.At = parsed
	}
	entry, err := s.manager.ScheduleTask(name, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s scheduled\nat: %s\nrepeat: %t",
		entry.Task.Name, entry.At.Format(time.RFC3339), entry.Repeat)), nil
}

func (s *MCPServer) handleCancelTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	cancelled, err := s.manager.CancelTask(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, _ := s.manager.GetTaskStatus(name)
	if !cancelled {
		return mcp.NewToolResultText(fmt.Sprintf("task %s not cancelled (status: %s)", name, status)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s cancelled", name)), nil
}

func (s *MCPServer) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	if _, err := s.manager.GetTask(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := int(mcp.ParseFloat64(request, "limit", 20))
	recs, err := s.store.ListRuns(ctx, name, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list runs: %v", err)), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no runs recorded for this task"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d runs:\n\n", len(recs))
	for _, rec := range recs {
		fmt.Fprintf(&b, "[%s] %s (%s)\n", rec.Status, rec.ID, rec.Trigger)
		fmt.Fprintf(&b, "  started: %s\n", rec.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "  ended: %s\n", rec.EndedAt.Format(time.RFC3339))
		if rec.Error != nil {
			fmt.Fprintf(&b, "  error: %s\n", *rec.Error)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleCronPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expr := mcp.ParseString(request, "cron", "")
	schedule, err := core.ParseCron(expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	count := int(mcp.ParseFloat64(request, "count", 5))
	times := core.NextOccurrences(schedule, time.Now(), count)

	var b strings.Builder
	fmt.Fprintf(&b, "cron: %s\nnext fire times:\n", expr)
	for i, t := range times {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, t.Format("2006-01-02 15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}
