// Package hooks implements user-defined pre-tool-call policy: YAML (or
// Markdown-with-frontmatter) rule files under .aegis/hooks that block
// or warn on a tool call matching a pattern, independent of the static
// approval classes internal/tools.Decide already enforces. Grounded on
// the teacher's internal/agent/hooks.DynamicHookManager, relocated out
// from under internal/agent since it's wired in as an
// internal/tools.Dispatcher concern (a HookChecker), not an agent-loop
// one.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DynamicHookConfig is one hook rule file's parsed contents.
type DynamicHookConfig struct {
	Name       string      `yaml:"name"`
	Enabled    bool        `yaml:"enabled"`
	Event      string      `yaml:"event"`
	Action     string      `yaml:"action"` // warn, block
	Pattern    string      `yaml:"pattern"`
	Conditions []Condition `yaml:"conditions"`
	Message    string      `yaml:"message"`
}

type Condition struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"` // regex_match, contains
	Pattern  string `yaml:"pattern"`
}

// DynamicHookManager loads and evaluates .aegis/hooks rule files. It
// implements internal/tools.HookChecker.
type DynamicHookManager struct {
	hooks []DynamicHookConfig
	cwd   string
}

func NewDynamicHookManager(cwd string) *DynamicHookManager {
	return &DynamicHookManager{cwd: cwd}
}

func (m *DynamicHookManager) LoadHooks() error {
	hooksDir := filepath.Join(m.cwd, ".aegis", "hooks")
	if _, err := os.Stat(hooksDir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(hooksDir)
	if err != nil {
		return err
	}

	m.hooks = []DynamicHookConfig{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") && !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		hook, err := m.loadHookFile(filepath.Join(hooksDir, entry.Name()))
		if err != nil {
			continue
		}
		if hook.Enabled {
			m.hooks = append(m.hooks, hook)
		}
	}
	return nil
}

func (m *DynamicHookManager) loadHookFile(path string) (DynamicHookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DynamicHookConfig{}, err
	}

	var config DynamicHookConfig
	yamlContent := data

	if strings.HasSuffix(path, ".md") {
		contentStr := string(data)
		if strings.HasPrefix(contentStr, "---\n") {
			parts := strings.SplitN(contentStr, "---\n", 3)
			if len(parts) >= 3 {
				yamlContent = []byte(parts[1])
				config.Message = strings.TrimSpace(parts[2])
			}
		}
	}

	if len(yamlContent) > 0 {
		if err := yaml.Unmarshal(yamlContent, &config); err != nil {
			return DynamicHookConfig{}, err
		}
	}
	return config, nil
}

// ListHooks returns the currently loaded and enabled hooks.
func (m *DynamicHookManager) ListHooks() []DynamicHookConfig {
	return m.hooks
}

// CheckPreToolUse evaluates toolName/args against every loaded hook,
// reloading the rule directory each call so edits under .aegis/hooks
// take effect on the next tool call without a restart. A "block" match
// returns an error the Dispatcher surfaces as a rejected call; a "warn"
// match returns a non-empty string the Dispatcher prepends to the
// tool's result instead of blocking it.
func (m *DynamicHookManager) CheckPreToolUse(toolName string, args map[string]interface{}) (string, error) {
	_ = m.LoadHooks()

	for _, hook := range m.hooks {
		if hook.Event != "all" && hook.Event != "tool" && hook.Event != "bash" && hook.Event != "file" {
			continue
		}
		if hook.Event == "bash" && toolName != "run_command" {
			continue
		}
		if hook.Event == "file" && toolName != "replace_file_content" && toolName != "write_file" {
			continue
		}

		matched := false

		if hook.Pattern != "" && toolName == "run_command" {
			if cmd, ok := args["command"].(string); ok && ruleMatches(cmd, "regex_match", hook.Pattern) {
				matched = true
			}
		}

		for _, cond := range hook.Conditions {
			val := getFieldVal(args, cond.Field)
			if ruleMatches(val, cond.Operator, cond.Pattern) {
				matched = true
			} else {
				matched = false
				break
			}
		}

		if !matched {
			continue
		}
		if hook.Action == "block" {
			return "", fmt.Errorf("hook %q blocked execution: %s", hook.Name, hook.Message)
		}
		if hook.Action == "warn" {
			return fmt.Sprintf("hook warning (%s): %s", hook.Name, hook.Message), nil
		}
	}

	return "", nil
}

func getFieldVal(args map[string]interface{}, field string) string {
	if field == "command" {
		if v, ok := args["command"].(string); ok {
			return v
		}
	}
	if field == "file_path" {
		if v, ok := args["path"].(string); ok {
			return v
		}
	}
	return ""
}

func ruleMatches(val string, op string, pattern string) bool {
	switch op {
	case "contains":
		return strings.Contains(val, pattern)
	default: // regex_match and any other operator
		r, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return r.MatchString(val)
	}
}
