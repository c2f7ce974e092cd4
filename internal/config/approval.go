package config

import "github.com/aegisline/coreengine/internal/tools"

// ToToolSettings collapses the UI's richer per-capability auto-approval
// flags down to the three switches the Tool Dispatcher's approval policy
// actually dispatches on (tools.Decide). Internal/external distinctions
// and per-verb granularity (read vs delete) belong to the Workspace
// Gateway's path blocklist and tool registry, not the approval policy
// itself — see the AutoApproveSettings doc in internal/tools/approval.go
// for why the policy only needs Edits/Terminal/AutoAll.
func (a AutoApprovalSettings) ToToolSettings() tools.AutoApproveSettings {
	if !a.Enabled {
		return tools.AutoApproveSettings{}
	}
	return tools.AutoApproveSettings{
		Edits:    a.EditFiles || a.EditFilesExternal || a.DeleteFiles || a.DeleteFilesExternal,
		Terminal: a.ExecuteSafeCommands || a.ExecuteAllCommands,
		AutoAll:  a.ExecuteAllCommands && a.EditFiles && a.EditFilesExternal,
	}
}
