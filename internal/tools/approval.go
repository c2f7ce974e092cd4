package tools

// AutoApproveSettings mirrors the engine-level config surface spec.md
// §6 exposes for approval gating. Grounded on the teacher's
// config.AutoApprovalSettings + safeguard.ApprovalManager, collapsed
// from the teacher's per-capability flags (ReadFiles, EditFiles,
// EditFilesExternal, ExecuteSafeCommands, ...) down to exactly the
// three switches spec.md §4.5 names, since path-based internal/external
// distinctions belong to the Workspace Gateway's blocklist (§4.8), not
// the approval policy.
type AutoApproveSettings struct {
	Edits    bool
	Terminal bool
	AutoAll  bool
}

// Decision is the approval policy's verdict for one tool call.
type Decision string

const (
	DecisionExecute Decision = "execute"
	DecisionPending Decision = "pending" // surface for approval, halt at awaiting_approval
)

// MCPPolicy delegates the mcp approval class to whatever policy the MCP
// hub enforces (spec.md §4.5 "mcp -> delegates to MCP policy"). Kept as
// an interface so internal/mcp's hub-level per-server trust settings can
// plug in without this package depending on internal/mcp.
type MCPPolicy interface {
	AutoApprove(toolName string) bool
}

// Decide implements spec.md §4.5's approval policy table. Grounded on
// safeguard.ApprovalManager.CanAutoApprove, generalized from the
// teacher's five ad hoc ToolCategory branches into a dispatch purely on
// Descriptor.ApprovalClass.
func Decide(desc Descriptor, settings AutoApproveSettings, mcp MCPPolicy) Decision {
	switch desc.ApprovalClass {
	case ApprovalNone:
		return DecisionExecute
	case ApprovalEdits:
		if settings.AutoAll || settings.Edits {
			return DecisionExecute
		}
		return DecisionPending
	case ApprovalTerminal:
		if settings.AutoAll || settings.Terminal {
			return DecisionExecute
		}
		return DecisionPending
	case ApprovalDangerous:
		// Never auto, regardless of auto_approve_all (spec.md §4.5).
		return DecisionPending
	case ApprovalMCP:
		if mcp != nil && mcp.AutoApprove(desc.Name) {
			return DecisionExecute
		}
		return DecisionPending
	default:
		return DecisionPending
	}
}
