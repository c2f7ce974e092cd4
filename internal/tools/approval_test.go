package tools

import "testing"

type fakeMCPPolicy struct {
	approve bool
}

func (f fakeMCPPolicy) AutoApprove(toolName string) bool { return f.approve }

func TestDecidePolicyTable(t *testing.T) {
	tests := []struct {
		name     string
		class    ApprovalClass
		settings AutoApproveSettings
		mcp      MCPPolicy
		want     Decision
	}{
		{"none always executes", ApprovalNone, AutoApproveSettings{}, nil, DecisionExecute},
		{"edits without flags is pending", ApprovalEdits, AutoApproveSettings{}, nil, DecisionPending},
		{"edits with Edits flag executes", ApprovalEdits, AutoApproveSettings{Edits: true}, nil, DecisionExecute},
		{"edits with AutoAll executes", ApprovalEdits, AutoApproveSettings{AutoAll: true}, nil, DecisionExecute},
		{"terminal without flags is pending", ApprovalTerminal, AutoApproveSettings{}, nil, DecisionPending},
		{"terminal with Terminal flag executes", ApprovalTerminal, AutoApproveSettings{Terminal: true}, nil, DecisionExecute},
		{"dangerous never auto-approves", ApprovalDangerous, AutoApproveSettings{AutoAll: true}, nil, DecisionPending},
		{"mcp delegates to policy: approve", ApprovalMCP, AutoApproveSettings{}, fakeMCPPolicy{approve: true}, DecisionExecute},
		{"mcp delegates to policy: deny", ApprovalMCP, AutoApproveSettings{}, fakeMCPPolicy{approve: false}, DecisionPending},
		{"mcp with nil policy is pending", ApprovalMCP, AutoApproveSettings{}, nil, DecisionPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := Descriptor{Name: "x", ApprovalClass: tt.class}
			got := Decide(desc, tt.settings, tt.mcp)
			if got != tt.want {
				t.Errorf("Decide() = %q, want %q", got, tt.want)
			}
		})
	}
}
