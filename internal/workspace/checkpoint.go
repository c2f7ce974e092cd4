package workspace

import (
	"encoding/json"
	"fmt"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

// SaveCheckpoint commits the whole working tree to the coarse shadow
// git history (internal/checkpoints), giving the thread a named point
// to roll back to beyond the Agent Loop's per-message file snapshots.
func (g *Gateway) SaveCheckpoint(args json.RawMessage) (tools.Result, error) {
	if g.Checkpoints == nil {
		return tools.Result{}, fmt.Errorf("checkpointing is not enabled for this workspace")
	}
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(args, &payload)

	hash, err := g.Checkpoints.Save(payload.Message)
	if err != nil {
		return tools.Result{}, fmt.Errorf("save checkpoint: %w", err)
	}
	if hash == "" {
		return tools.Result{Content: "no changes since last checkpoint", Type: engine.ToolSuccess}, nil
	}
	g.audit("save_checkpoint", hash, true, payload.Message, 0)
	return tools.Result{Content: fmt.Sprintf("checkpoint saved: %s", hash), Type: engine.ToolSuccess}, nil
}

// RestoreCheckpoint resets the whole working tree to a prior checkpoint
// commit, the coarse-grained counterpart to the per-file undo the Agent
// Loop's snapshots already provide.
func (g *Gateway) RestoreCheckpoint(args json.RawMessage) (tools.Result, error) {
	if g.Checkpoints == nil {
		return tools.Result{}, fmt.Errorf("checkpointing is not enabled for this workspace")
	}
	var payload struct {
		CheckpointID string `json:"checkpoint_id"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if payload.CheckpointID == "" {
		return tools.Result{}, fmt.Errorf("checkpoint_id is required")
	}

	if err := g.Checkpoints.Restore(payload.CheckpointID); err != nil {
		return tools.Result{}, fmt.Errorf("restore checkpoint: %w", err)
	}
	g.audit("restore_checkpoint", payload.CheckpointID, true, "", 0)
	return tools.Result{
		Content:    fmt.Sprintf("workspace restored to checkpoint %s", payload.CheckpointID),
		Type:       engine.ToolSuccess,
		ChangeType: engine.ChangeModify,
	}, nil
}
