package assembler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	fileInjectionPattern  = regexp.MustCompile(`@([a-zA-Z0-9\./\-_]+)`)
	shellInjectionPattern = regexp.MustCompile(`!\{([^}]+)\}`)
)

// InjectionProcessor expands @file and !{command} references inside a
// user message before it reaches the provider, relocated from the
// teacher's internal/agent/injections.go into the Message Assembler —
// expansion is a prompt-construction concern, not something the Agent
// Loop's state machine needs to know about.
type InjectionProcessor struct {
	cwd string
}

// NewInjectionProcessor creates a processor rooted at cwd.
func NewInjectionProcessor(cwd string) *InjectionProcessor {
	return &InjectionProcessor{cwd: cwd}
}

// Process expands every @file and !{command} reference in input,
// returning the expanded text plus a human-readable log of what was
// injected. Assembler.Assemble uses only the expanded text.
func (p *InjectionProcessor) Process(input string) (string, []string) {
	result := input
	var notes []string

	for _, match := range fileInjectionPattern.FindAllStringSubmatch(input, -1) {
		path := match[1]
		content, err := os.ReadFile(filepath.Join(p.cwd, path))
		if err != nil {
			// also try as given, in case it's already absolute
			content, err = os.ReadFile(path)
		}
		if err != nil {
			notes = append(notes, fmt.Sprintf("could not read file @%s: %v", path, err))
			continue
		}
		result += fmt.Sprintf("\n\n---\ncontent of @%s:\n```\n%s\n```\n---", path, string(content))
		notes = append(notes, fmt.Sprintf("injected file content: @%s", path))
	}

	for _, match := range shellInjectionPattern.FindAllStringSubmatch(input, -1) {
		cmdStr := match[1]
		parts := strings.Fields(cmdStr)
		if len(parts) == 0 {
			continue
		}
		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Dir = p.cwd
		out, err := cmd.CombinedOutput()
		status := "success"
		if err != nil {
			status = fmt.Sprintf("failed: %v", err)
		}
		result += fmt.Sprintf("\n\n---\noutput of !{%s} (%s):\n```\n%s\n```\n---", cmdStr, status, string(out))
		notes = append(notes, fmt.Sprintf("injected command output: !{%s}", cmdStr))
	}

	return result, notes
}
