// Package workspace implements the Workspace Gateway (C8): the
// sandboxed boundary between tool handlers and the host filesystem,
// shell, code graph, and browser. Grounded on the teacher's
// NativeExecutor (internal/tools/{fs_tools,cmd_tools,lsp_tools,
// browser_tools}.go in the teacher repo), generalized from a single
// struct that mixed path resolution, consent prompting, and side
// effects into a Gateway that only resolves paths and performs side
// effects — approval gating now lives entirely in the Tool Dispatcher
// (internal/tools), so handlers here never re-ask for consent the
// Dispatcher already granted.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/aegisline/coreengine/internal/browser"
	"github.com/aegisline/coreengine/internal/checkpoints"
	"github.com/aegisline/coreengine/internal/codegraph"
	ctxtrack "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/index"
	"github.com/aegisline/coreengine/internal/paths"
	"github.com/aegisline/coreengine/internal/safeguard"
)

// Gateway is the sandboxed boundary tool handlers call through. Every
// field besides Root is optional: a nil service simply makes the tools
// that need it report an error instead of registering half-working
// handlers, mirroring the teacher's "indexer not initialized" guard in
// CodebaseSearch.
type Gateway struct {
	Root string

	Safeguard   *safeguard.Manager
	Checkpoints *checkpoints.CheckpointService
	Codegraph   *codegraph.Service
	Indexer     *index.Indexer
	Browser     *browser.BrowserManager

	// Files records every path a tool call has read or written this
	// session, feeding the Message Assembler's skill file-pattern
	// matching without it needing to parse tool arguments itself.
	// Grounded on the teacher's context.FileTracker.
	Files *ctxtrack.FileTracker

	pty *ptyManager

	auditPath string
	auditLock *flock.Flock
}

// New builds a Gateway rooted at root. The audit log and its lock file
// live under the same per-workspace log directory the teacher's
// safeguard package already uses (internal/paths.GetLogDir), so a
// workspace only ever gets one audit trail regardless of how many
// Gateways are constructed against it across a process's lifetime.
func New(root string) *Gateway {
	logDir := paths.GetLogDir(root)
	_ = paths.EnsureDir(logDir)
	auditPath := filepath.Join(logDir, "workspace-audit.log")
	return &Gateway{
		Root:      root,
		Files:     ctxtrack.NewFileTracker(),
		pty:       newPTYManager(),
		auditPath: auditPath,
		auditLock: flock.New(auditPath + ".lock"),
	}
}

// resolve maps a tool-supplied path onto the filesystem, rejecting any
// path that would escape Root (the blocklist spec.md §4.8 requires).
func (g *Gateway) resolve(p string) (string, error) {
	var abs string
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Clean(filepath.Join(g.Root, p))
	}
	rel, err := filepath.Rel(g.Root, abs)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace root", p)
	}
	return abs, nil
}

// auditEntry is one line of the append-only audit log, in the
// {op,target,success,reason,size,ts} shape spec.md §4.8 requires.
type auditEntry struct {
	Op      string    `json:"op"`
	Target  string    `json:"target,omitempty"`
	Success bool      `json:"success"`
	Reason  string    `json:"reason,omitempty"`
	Size    int       `json:"size,omitempty"`
	TS      time.Time `json:"ts"`
}

// audit appends one entry under an exclusive file lock so concurrent
// tool calls within the same wave (internal/tools.Dispatcher.Dispatch
// runs a wave's calls concurrently via errgroup) never interleave
// partial lines. Most handlers audit only completed operations (a
// handler that fails returns before reaching its audit call), so their
// entries have success=true; RunCommand also audits a foreground
// command that fails, with success=false and the error as reason.
func (g *Gateway) audit(op, target string, success bool, reason string, size int) {
	if err := g.auditLock.Lock(); err != nil {
		return
	}
	defer g.auditLock.Unlock()

	f, err := os.OpenFile(g.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	line, err := json.Marshal(auditEntry{Op: op, Target: target, Success: success, Reason: reason, Size: size, TS: time.Now()})
	if err != nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
}

// Snapshot implements engine.Snapshotter: it reads each path's current
// content (or records its absence) before the Thread Store lets a
// mutating tool result through, so engine.Store.AddToolResult can build
// the tool_edit checkpoint fine-grained undo replays from. Grounded on
// the teacher's safeguard.Manager.CreateCheckpoint, which read file
// content itself before every mutating call for the same reason; here
// it's the Gateway's job since the Gateway is what resolves workspace
// paths.
func (g *Gateway) Snapshot(paths []string) map[string]engine.FileSnapshot {
	out := make(map[string]engine.FileSnapshot, len(paths))
	for _, p := range paths {
		abs, err := g.resolve(p)
		if err != nil {
			continue
		}
		var content *string
		if data, err := os.ReadFile(abs); err == nil {
			s := string(data)
			content = &s
		}
		out[p] = engine.FileSnapshot{Path: p, Content: content, Timestamp: time.Now()}
	}
	return out
}

// checkFileAccess applies the safeguard allow/deny glob policy, if a
// Manager is configured. Absent one, every in-root path is permitted —
// the Gateway's own root-escape check already applies regardless.
func (g *Gateway) checkFileAccess(relPath string, write bool) error {
	if g.Safeguard == nil {
		return nil
	}
	return g.Safeguard.CheckFileAccess(relPath, write)
}
