package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

type listDirArgs struct {
	Path string `json:"path"`
}

// ListDir reports one line per directory entry, grounded on the
// teacher's NativeExecutor.ListDir.
func (g *Gateway) ListDir(args json.RawMessage) (tools.Result, error) {
	var payload listDirArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}

	abs, err := g.resolve(payload.Path)
	if err != nil {
		return tools.Result{}, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return tools.Result{}, fmt.Errorf("list dir: %w", err)
	}

	var sb strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&sb, "%s (%s)\n", e.Name(), kind)
	}
	content := sb.String()
	if content == "" {
		content = "(empty directory)"
	}
	g.audit("list_dir", payload.Path, true, "", len(entries))
	return tools.Result{Content: content, Type: engine.ToolSuccess}, nil
}

type readFileArgs struct {
	Path string `json:"path"`
}

// ReadFile returns a file's full contents, grounded on the teacher's
// NativeExecutor.ReadFile.
func (g *Gateway) ReadFile(args json.RawMessage) (tools.Result, error) {
	var payload readFileArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}

	abs, err := g.resolve(payload.Path)
	if err != nil {
		return tools.Result{}, err
	}
	if err := g.checkFileAccess(payload.Path, false); err != nil {
		return tools.Result{}, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return tools.Result{}, fmt.Errorf("read file: %w", err)
	}
	g.Files.AddFile(payload.Path)
	g.audit("read_file", payload.Path, true, "", len(content))
	return tools.Result{Content: string(content), Type: engine.ToolSuccess}, nil
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFile overwrites (or creates) a file. Pre-write snapshotting for
// undo is the Agent Loop's job via engine.Store's Snapshotter, not the
// Gateway's — the teacher's WriteFile called safeguard.CreateCheckpoint
// itself before every write; here that concern is centralized once, at
// the message-checkpoint layer, instead of duplicated per tool.
func (g *Gateway) WriteFile(args json.RawMessage) (tools.Result, error) {
	var payload writeFileArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}

	abs, err := g.resolve(payload.Path)
	if err != nil {
		return tools.Result{}, err
	}
	if err := g.checkFileAccess(payload.Path, true); err != nil {
		return tools.Result{}, err
	}

	existed := true
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		existed = false
	}

	if err := os.WriteFile(abs, []byte(payload.Content), 0644); err != nil {
		return tools.Result{}, fmt.Errorf("write file: %w", err)
	}
	g.Files.AddFile(payload.Path)
	g.audit("write_file", payload.Path, true, "", len(payload.Content))

	changeType := engine.ChangeModify
	if !existed {
		changeType = engine.ChangeCreate
	}
	content := payload.Content
	return tools.Result{
		Content:      "file written successfully",
		Type:         engine.ToolSuccess,
		TouchedPaths: []string{payload.Path},
		NewContent:   &content,
		ChangeType:   changeType,
	}, nil
}

type replaceFileContentArgs struct {
	Path               string `json:"path"`
	TargetContent      string `json:"target_content"`
	ReplacementContent string `json:"replacement_content"`
}

// ReplaceFileContent performs an exact, single-occurrence substring
// substitution, grounded on the teacher's
// NativeExecutor.ReplaceFileContent (its dual-casing argument fallback
// is dropped: only the snake_case keys path, target_content and
// replacement_content are read).
func (g *Gateway) ReplaceFileContent(args json.RawMessage) (tools.Result, error) {
	var payload replaceFileContentArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if payload.TargetContent == "" {
		return tools.Result{}, fmt.Errorf("target_content cannot be empty")
	}

	abs, err := g.resolve(payload.Path)
	if err != nil {
		return tools.Result{}, err
	}
	if err := g.checkFileAccess(payload.Path, true); err != nil {
		return tools.Result{}, err
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return tools.Result{}, fmt.Errorf("read file: %w", err)
	}
	content := string(raw)

	if !strings.Contains(content, payload.TargetContent) {
		return tools.Result{}, fmt.Errorf("target_content not found in file; match must be exact including whitespace")
	}
	if strings.Count(content, payload.TargetContent) > 1 {
		return tools.Result{}, fmt.Errorf("target_content occurs more than once; provide more surrounding context")
	}

	newContent := strings.Replace(content, payload.TargetContent, payload.ReplacementContent, 1)
	if err := os.WriteFile(abs, []byte(newContent), 0644); err != nil {
		return tools.Result{}, fmt.Errorf("write file: %w", err)
	}
	g.Files.AddFile(payload.Path)
	g.audit("replace_file_content", payload.Path, true, "", len(newContent))

	return tools.Result{
		Content:      "file updated successfully",
		Type:         engine.ToolSuccess,
		TouchedPaths: []string{payload.Path},
		NewContent:   &newContent,
		ChangeType:   engine.ChangeModify,
	}, nil
}

type codebaseSearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// CodebaseSearch runs semantic search over the configured Indexer,
// grounded on the teacher's NativeExecutor.CodebaseSearch. Reports an
// error rather than registering no handler at all when no Indexer is
// configured, matching the teacher's "indexer not initialized" guard.
func (g *Gateway) CodebaseSearch(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	if g.Indexer == nil {
		return tools.Result{}, fmt.Errorf("code indexing is not enabled for this workspace")
	}

	var payload codebaseSearchArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if payload.Limit <= 0 {
		payload.Limit = 5
	}

	results, err := g.Indexer.Search(ctx, payload.Query, payload.Limit)
	if err != nil {
		return tools.Result{}, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return tools.Result{Content: "no relevant code sections found", Type: engine.ToolSuccess}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "semantic search results for %q:\n\n", payload.Query)
	for _, res := range results {
		fmt.Fprintf(&sb, "--- %s (lines %d-%d, score %.2f) ---\n", res.Document.FilePath, res.Document.LineStart, res.Document.LineEnd, res.Score)
		sb.WriteString(res.Document.Content)
		sb.WriteString("\n\n")
	}
	g.audit("codebase_search", payload.Query, true, "", len(results))
	return tools.Result{Content: sb.String(), Type: engine.ToolSuccess}, nil
}
