package assembler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
)

type stubRules struct{ text string }

func (s stubRules) GetRules() string { return s.text }

func userMessage(text string) engine.Message {
	return engine.Message{
		ID:        "m1",
		Kind:      engine.KindUser,
		Timestamp: time.Time{},
		User:      &engine.UserMessage{Text: text},
	}
}

func TestAssembleIncludesRulesAndMemory(t *testing.T) {
	cwd := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cwd, ".aegis"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cwd, ".aegis", "MEMORY.md"), []byte("prior decision: use postgres"), 0644); err != nil {
		t.Fatal(err)
	}

	a := New(cwd, stubRules{text: "\n\n### Project-Specific Rules\nno TODOs"})
	thread := engine.Thread{Messages: []engine.Message{userMessage("hello")}}

	system, messages, err := a.Assemble(context.Background(), thread)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(system, "no TODOs") {
		t.Error("expected system prompt to include project rules")
	}
	if !strings.Contains(system, "use postgres") {
		t.Error("expected system prompt to include project memory")
	}
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(messages))
	}
}

func TestAssembleExpandsFileInjectionInLatestUserMessage(t *testing.T) {
	cwd := t.TempDir()
	if err := os.WriteFile(filepath.Join(cwd, "notes.txt"), []byte("important detail"), 0644); err != nil {
		t.Fatal(err)
	}

	a := New(cwd, stubRules{})
	thread := engine.Thread{Messages: []engine.Message{userMessage("see @notes.txt for context")}}

	_, messages, err := a.Assemble(context.Background(), thread)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(messages[0].User.Text, "important detail") {
		t.Errorf("expected expanded user message to contain file content, got %q", messages[0].User.Text)
	}
}

func TestAssembleLeavesOriginalMessagesUntouched(t *testing.T) {
	cwd := t.TempDir()
	a := New(cwd, stubRules{})
	original := userMessage("plain prompt, no injections")
	thread := engine.Thread{Messages: []engine.Message{original}}

	_, messages, err := a.Assemble(context.Background(), thread)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if messages[0].User != original.User {
		t.Error("expected no-op expansion to return the same message pointer")
	}
}
