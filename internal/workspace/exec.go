package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

// fileModifyPattern flags sed/awk/perl invocations that rewrite a file
// in place, steering the model back toward replace_file_content so
// edits get checkpointed and diffed instead of happening invisibly
// inside a shell pipeline. Grounded on the teacher's
// NativeExecutor.ExecuteCommand guard.
var fileModifyPattern = regexp.MustCompile(`(?i)^(sed|awk|perl)\s+.*[>|]\s*\S+\.`)

type runCommandArgs struct {
	Command    string `json:"command"`
	Background bool   `json:"background"`
}

// RunCommand executes a shell command in the workspace root, gated by
// the safeguard command allow/deny lists when a Manager is configured.
// Grounded on the teacher's NativeExecutor.ExecuteCommand, with its
// interactive consent step dropped — the Tool Dispatcher's
// ApprovalTerminal gate already covers that before this handler runs.
func (g *Gateway) RunCommand(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var payload runCommandArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	cmd := strings.TrimSpace(payload.Command)
	if cmd == "" {
		return tools.Result{}, fmt.Errorf("command cannot be empty")
	}
	if fileModifyPattern.MatchString(cmd) || (strings.HasPrefix(cmd, "sed") && (strings.Contains(cmd, ">") || strings.Contains(cmd, "-i"))) {
		return tools.Result{}, fmt.Errorf("do not use sed/awk to modify files; use replace_file_content so the edit is checkpointed and diffable")
	}

	if g.Safeguard != nil && g.Safeguard.Permissions != nil {
		fields := strings.Fields(cmd)
		if len(fields) > 0 {
			if err := g.Safeguard.CheckCommand(fields[0]); err != nil {
				return tools.Result{}, fmt.Errorf("command policy: %w", err)
			}
		}
	}

	if payload.Background {
		session, err := g.pty.start(cmd, g.Root)
		if err != nil {
			return tools.Result{}, fmt.Errorf("failed to start background command: %w", err)
		}

		g.audit("run_command", cmd, true, "background, id="+session.id, 0)
		return tools.Result{
			Content: fmt.Sprintf("command started in background under a pty, id=%s; use command_status to check progress", session.id),
			Type:    engine.ToolSuccess,
		}, nil
	}

	out, err := runShell(ctx, cmd, g.Root)
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	g.audit("run_command", cmd, err == nil, reason, len(out))
	if err != nil {
		return tools.Result{Content: out + "\n" + err.Error(), Type: engine.ToolError}, nil
	}
	return tools.Result{Content: out, Type: engine.ToolSuccess}, nil
}

func runShell(ctx context.Context, command, dir string) (string, error) {
	c := exec.CommandContext(ctx, "sh", "-c", command)
	c.Dir = dir
	out, err := c.CombinedOutput()
	return string(out), err
}

type commandStatusArgs struct {
	ID string `json:"id"`
}

// CommandStatus reports a background command's liveness and output
// accumulated so far, readable repeatedly while the command is still
// running (the pty's output buffer, not a one-shot result channel).
func (g *Gateway) CommandStatus(args json.RawMessage) (tools.Result, error) {
	var payload commandStatusArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}

	session, ok := g.pty.get(payload.ID)
	if !ok {
		return tools.Result{}, fmt.Errorf("command not found: %s", payload.ID)
	}
	running, output := session.status()

	status := map[string]any{
		"id":        payload.ID,
		"done":      !running,
		"output":    output,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	raw, _ := json.MarshalIndent(status, "", "  ")
	return tools.Result{Content: string(raw), Type: engine.ToolSuccess}, nil
}
