package workspace

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

type getSymbolsArgs struct {
	Path string `json:"path"`
}

// GetSymbols reports a file's imports plus its direct code-graph
// neighbors (what it imports, what imports it). Adapted from the
// teacher's LSP-backed GetDefinitionsLSP/GetDiagnostics (lsp_tools.go),
// which round-tripped through host.SendRequest to a connected VS Code
// extension — a transport this engine's host-agnostic architecture
// doesn't have. internal/codegraph.Service already parses and ranks
// the same dependency structure locally via tree-sitter, so GetSymbols
// serves the same "where does this fit" question without an IDE on
// the other end of the wire.
func (g *Gateway) GetSymbols(args json.RawMessage) (tools.Result, error) {
	if g.Codegraph == nil {
		return tools.Result{}, fmt.Errorf("code graph is not enabled for this workspace")
	}

	var payload getSymbolsArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}

	node := g.Codegraph.GetNode(payload.Path)
	if node == nil {
		return tools.Result{}, fmt.Errorf("no code graph entry for %s", payload.Path)
	}
	_, neighbors := g.Codegraph.GetContext(payload.Path)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", payload.Path)
	if len(node.Imports) > 0 {
		fmt.Fprintf(&sb, "imports: %s\n", strings.Join(node.Imports, ", "))
	}
	if len(neighbors) > 0 {
		var names []string
		for _, n := range neighbors {
			names = append(names, n.Path)
		}
		fmt.Fprintf(&sb, "referenced by / references: %s\n", strings.Join(names, ", "))
	}
	return tools.Result{Content: sb.String(), Type: engine.ToolSuccess}, nil
}

// RepoMap returns the code graph's PageRank-ordered summary of the
// workspace, grounded on internal/codegraph.Service.GenerateRepoMap.
func (g *Gateway) RepoMap(args json.RawMessage) (tools.Result, error) {
	if g.Codegraph == nil {
		return tools.Result{}, fmt.Errorf("code graph is not enabled for this workspace")
	}
	var payload struct {
		MaxFiles int `json:"max_files"`
	}
	_ = json.Unmarshal(args, &payload)
	if payload.MaxFiles <= 0 {
		payload.MaxFiles = 30
	}
	g.Codegraph.CalculatePageRank()
	return tools.Result{Content: g.Codegraph.GenerateRepoMap(payload.MaxFiles), Type: engine.ToolSuccess}, nil
}
