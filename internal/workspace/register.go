package workspace

import (
	"context"
	"encoding/json"

	"github.com/aegisline/coreengine/internal/tools"
)

func schema(doc string) json.RawMessage {
	return json.RawMessage(doc)
}

// RegisterTools registers every Gateway-backed tool against reg,
// generalizing the teacher's tool_categories.go registry map (one
// switch-on-name dispatch per ToolCategory) into one Descriptor+Handler
// pair per capability. Optional Gateway services that are nil still get
// a registered tool — the handler itself reports "not enabled" rather
// than silently omitting the tool from the provider's tool list, which
// would otherwise look like a missing capability instead of a
// configuration choice.
func RegisterTools(reg *tools.Registry, g *Gateway) {
	reg.Register(tools.Descriptor{
		Name:          "list_dir",
		Description:   "List the entries of a directory in the workspace.",
		ParamsSchema:  schema(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencyParallelSafe,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.ListDir(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "read_file",
		Description:   "Read the full contents of a file in the workspace.",
		ParamsSchema:  schema(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencyParallelSafe,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.ReadFile(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "write_file",
		Description:   "Create or overwrite a file with new contents.",
		ParamsSchema:  schema(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`),
		ApprovalClass: tools.ApprovalEdits,
		Mutation:      tools.MutationFileWrite,
		Concurrency:   tools.ConcurrencyTargetExclusive,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.WriteFile(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "replace_file_content",
		Description:   "Replace one exact, unique occurrence of target_content with replacement_content in a file.",
		ParamsSchema:  schema(`{"type":"object","properties":{"path":{"type":"string"},"target_content":{"type":"string"},"replacement_content":{"type":"string"}},"required":["path","target_content","replacement_content"]}`),
		ApprovalClass: tools.ApprovalEdits,
		Mutation:      tools.MutationFileWrite,
		Concurrency:   tools.ConcurrencyTargetExclusive,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.ReplaceFileContent(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "codebase_search",
		Description:   "Semantic search over the indexed codebase.",
		ParamsSchema:  schema(`{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"number"}},"required":["query"]}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencyParallelSafe,
	}, tools.HandlerFunc(g.CodebaseSearch))

	reg.Register(tools.Descriptor{
		Name:          "get_symbols",
		Description:   "Report a file's imports and its code-graph neighbors.",
		ParamsSchema:  schema(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencyParallelSafe,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.GetSymbols(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "repo_map",
		Description:   "Return a PageRank-ordered summary of the most central files in the workspace.",
		ParamsSchema:  schema(`{"type":"object","properties":{"max_files":{"type":"number"}}}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencyParallelSafe,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.RepoMap(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "run_command",
		Description:   "Run a shell command in the workspace root.",
		ParamsSchema:  schema(`{"type":"object","properties":{"command":{"type":"string"},"background":{"type":"boolean"}},"required":["command"]}`),
		ApprovalClass: tools.ApprovalTerminal,
		Mutation:      tools.MutationShell,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(g.RunCommand))

	reg.Register(tools.Descriptor{
		Name:          "command_status",
		Description:   "Check the status of a background command started by run_command.",
		ParamsSchema:  schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencyParallelSafe,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.CommandStatus(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "save_checkpoint",
		Description:   "Commit the current workspace state to the checkpoint history.",
		ParamsSchema:  schema(`{"type":"object","properties":{"message":{"type":"string"}}}`),
		ApprovalClass: tools.ApprovalNone,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.SaveCheckpoint(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "restore_checkpoint",
		Description:   "Reset the whole workspace to a prior checkpoint.",
		ParamsSchema:  schema(`{"type":"object","properties":{"checkpoint_id":{"type":"string"}},"required":["checkpoint_id"]}`),
		ApprovalClass: tools.ApprovalDangerous,
		Mutation:      tools.MutationFileWrite,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return g.RestoreCheckpoint(args)
	}))

	reg.Register(tools.Descriptor{
		Name:          "browser_open",
		Description:   "Navigate the managed browser to a URL.",
		ParamsSchema:  schema(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`),
		ApprovalClass: tools.ApprovalTerminal,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(g.BrowserOpen))

	reg.Register(tools.Descriptor{
		Name:          "browser_screenshot",
		Description:   "Capture a screenshot of a URL in the managed browser.",
		ParamsSchema:  schema(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`),
		ApprovalClass: tools.ApprovalTerminal,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(g.BrowserScreenshot))

	reg.Register(tools.Descriptor{
		Name:          "browser_click",
		Description:   "Click an element in the managed browser.",
		ParamsSchema:  schema(`{"type":"object","properties":{"url":{"type":"string"},"selector":{"type":"string"}},"required":["url","selector"]}`),
		ApprovalClass: tools.ApprovalTerminal,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(g.BrowserClick))

	reg.Register(tools.Descriptor{
		Name:          "browser_type",
		Description:   "Type text into an element in the managed browser.",
		ParamsSchema:  schema(`{"type":"object","properties":{"url":{"type":"string"},"selector":{"type":"string"},"text":{"type":"string"}},"required":["url","selector","text"]}`),
		ApprovalClass: tools.ApprovalTerminal,
		Mutation:      tools.MutationNone,
		Concurrency:   tools.ConcurrencySequential,
	}, tools.HandlerFunc(g.BrowserType))
}
