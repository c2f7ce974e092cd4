package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dir := t.TempDir()
	return New(dir)
}

func TestWriteThenReadFile(t *testing.T) {
	g := newTestGateway(t)

	writeArgs, _ := json.Marshal(map[string]string{"path": "hello.txt", "content": "hi there"})
	res, err := g.WriteFile(writeArgs)
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if res.ChangeType != engine.ChangeCreate {
		t.Errorf("ChangeType = %v, want ChangeCreate", res.ChangeType)
	}

	readArgs, _ := json.Marshal(map[string]string{"path": "hello.txt"})
	got, err := g.ReadFile(readArgs)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.Content != "hi there" {
		t.Errorf("Content = %q, want %q", got.Content, "hi there")
	}
}

func TestResolveRejectsEscapingPaths(t *testing.T) {
	g := newTestGateway(t)
	if _, err := g.resolve("../../etc/passwd"); err == nil {
		t.Fatal("expected an error for a path escaping the workspace root")
	}
}

func TestReplaceFileContentRequiresUniqueMatch(t *testing.T) {
	g := newTestGateway(t)
	if err := os.WriteFile(filepath.Join(g.Root, "dup.txt"), []byte("x\nx\n"), 0644); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]string{"path": "dup.txt", "target_content": "x", "replacement_content": "y"})
	if _, err := g.ReplaceFileContent(args); err == nil {
		t.Fatal("expected an error when target_content matches more than once")
	}
}

func TestReplaceFileContentRejectsMissingTarget(t *testing.T) {
	g := newTestGateway(t)
	if err := os.WriteFile(filepath.Join(g.Root, "one.txt"), []byte("alpha\n"), 0644); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]string{"path": "one.txt", "target_content": "beta", "replacement_content": "gamma"})
	if _, err := g.ReplaceFileContent(args); err == nil {
		t.Fatal("expected an error when target_content is absent")
	}
}

func TestRunCommandBlocksInPlaceSed(t *testing.T) {
	g := newTestGateway(t)
	args, _ := json.Marshal(map[string]any{"command": "sed -i s/a/b/ one.txt"})
	if _, err := g.RunCommand(context.Background(), args); err == nil {
		t.Fatal("expected RunCommand to reject an in-place sed invocation")
	}
}

func TestRunCommandForeground(t *testing.T) {
	g := newTestGateway(t)
	args, _ := json.Marshal(map[string]any{"command": "echo hello"})
	res, err := g.RunCommand(context.Background(), args)
	if err != nil {
		t.Fatalf("RunCommand() error = %v", err)
	}
	if res.Type != engine.ToolSuccess {
		t.Errorf("Type = %v, want ToolSuccess", res.Type)
	}
}

func TestCodebaseSearchWithoutIndexerReportsDisabled(t *testing.T) {
	g := newTestGateway(t)
	args, _ := json.Marshal(map[string]any{"query": "whatever"})
	if _, err := g.CodebaseSearch(context.Background(), args); err == nil {
		t.Fatal("expected an error when no Indexer is configured")
	}
}

func TestRegisterToolsPopulatesRegistry(t *testing.T) {
	g := newTestGateway(t)
	reg := tools.NewRegistry()
	RegisterTools(reg, g)

	for _, name := range []string{"read_file", "write_file", "replace_file_content", "list_dir", "run_command", "command_status", "save_checkpoint", "restore_checkpoint", "codebase_search", "get_symbols", "repo_map", "browser_open"} {
		if _, ok := reg.Descriptor(name); !ok {
			t.Errorf("expected %s to be registered", name)
		}
	}
}
