// Package mcpsrv exposes a pool.Pool to MCP tool clients: submit, status,
// cancel, stats, and a bounded wait-idle, grounded on the same
// mcp-go NewTool/AddTool/ToolHandlerFunc shape the teacher's own MCP
// server uses for its control surface.
package mcpsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/taskpool/pkg/canceltoken"
	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/pool"
)

// registry tracks handles by ID so task_status/cancel_task can look one up
// after Submit has already returned it to the caller. Entries are removed
// once their outcome has been observed, bounding memory to in-flight work.
type registry struct {
	mu      sync.Mutex
	handles map[string]*pool.Handle
}

func newRegistry() *registry {
	return &registry{handles: make(map[string]*pool.Handle)}
}

func (r *registry) put(h *pool.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ID] = h
}

func (r *registry) get(id string) (*pool.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

func (r *registry) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// NewServer builds an MCP server exposing p's submit/status/cancel/stats
// operations as tools.
func NewServer(p *pool.Pool) *server.MCPServer {
	s := server.NewMCPServer("taskpool", "0.1.0")
	reg := newRegistry()

	p.Subscribe(func(o pool.Outcome) {
		reg.forget(o.ID)
	})

	s.AddTool(mcp.NewTool("submit_task",
		mcp.WithDescription("Submit a shell command as a pool task and return its task ID."),
		mcp.WithString("command", mcp.Description("Executable to run"), mcp.Required()),
		mcp.WithString("args", mcp.Description("Space-separated arguments")),
		mcp.WithNumber("timeout_ms", mcp.Description("Cancel the task if it runs longer than this, 0 for no timeout")),
	), submitTaskHandler(p, reg))

	s.AddTool(mcp.NewTool("task_status",
		mcp.WithDescription("Get a submitted task's current state and failure text."),
		mcp.WithString("task_id", mcp.Description("Task ID returned by submit_task"), mcp.Required()),
	), taskStatusHandler(reg))

	s.AddTool(mcp.NewTool("cancel_task",
		mcp.WithDescription("Cooperatively cancel a submitted task's cancel token."),
		mcp.WithString("task_id", mcp.Description("Task ID returned by submit_task"), mcp.Required()),
	), cancelTaskHandler(reg))

	s.AddTool(mcp.NewTool("pool_stats",
		mcp.WithDescription("Get current worker and queue counts for the pool."),
	), poolStatsHandler(p))

	s.AddTool(mcp.NewTool("wait_idle",
		mcp.WithDescription("Block until the pool's queue is empty and every worker is idle, or until timeout_ms elapses."),
		mcp.WithNumber("timeout_ms", mcp.Description("Bound on the wait in milliseconds; 0 or omitted waits without a bound")),
	), waitIdleHandler(p))

	return s
}

// Serve starts s on stdio, the same transport the teacher's control
// surface uses.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func submitTaskHandler(p *pool.Pool, reg *registry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		command := mcp.ParseString(request, "command", "")
		if command == "" {
			return mcp.NewToolResultError("command is required"), nil
		}
		argLine := mcp.ParseString(request, "args", "")
		var args []string
		if argLine != "" {
			args = strings.Fields(argLine)
		}
		timeoutMs := mcp.ParseInt(request, "timeout_ms", 0)

		var cancel canceltoken.Canceler
		if timeoutMs > 0 {
			cancel = canceltoken.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		}

		h := p.Submit(func() error {
			cmd := exec.CommandContext(ctx, command, args...)
			return cmd.Run()
		}, cancel)
		reg.put(h)

		return mcp.NewToolResultText(fmt.Sprintf("task %s submitted", h.ID)), nil
	}
}

func taskStatusHandler(reg *registry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "task_id", "")
		h, ok := reg.get(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown task_id %q", id)), nil
		}

		failure, failed := h.Failure()
		status := struct {
			TaskID  string `json:"task_id"`
			State   string `json:"state"`
			Failure string `json:"failure,omitempty"`
		}{
			TaskID: h.ID,
			State:  h.State().String(),
		}
		if failed {
			status.Failure = failure
		}

		data, err := json.Marshal(status)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func cancelTaskHandler(reg *registry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "task_id", "")
		h, ok := reg.get(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown task_id %q", id)), nil
		}
		h.CancelToken().Cancel()
		return mcp.NewToolResultText("cancel requested"), nil
	}
}

func poolStatsHandler(p *pool.Pool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s := p.Stats()
		data, err := json.Marshal(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func waitIdleHandler(p *pool.Pool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timeoutMs := mcp.ParseInt(request, "timeout_ms", 0)

		done := make(chan struct{})
		go func() {
			p.WaitIdle()
			close(done)
		}()

		var d deadline.Deadline
		if timeoutMs > 0 {
			d = deadline.FromMillis(int64(timeoutMs))
		} else {
			d = deadline.Infinite()
		}

		select {
		case <-done:
			return mcp.NewToolResultText("pool is idle"), nil
		case <-time.After(timeUntil(d)):
			return mcp.NewToolResultError("wait_idle timed out"), nil
		}
	}
}

func timeUntil(d deadline.Deadline) time.Duration {
	if d.IsInfinite() {
		return time.Duration(1<<63 - 1)
	}
	r := d.Remaining()
	if r < 0 {
		return 0
	}
	return r
}
