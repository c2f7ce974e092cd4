package agent

import (
	"context"
	"testing"
	"time"

	ctxmgr "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

func TestPlanRunnableRespectsDependenciesAndPriority(t *testing.T) {
	plan := NewPlan()
	a := plan.AddTask("A", "")
	b := plan.AddTask("B", "")
	_ = plan.SetDependencies(b, []string{a})

	runnable := plan.Runnable()
	if len(runnable) != 1 || runnable[0].ID != a {
		t.Fatalf("Runnable() = %+v, want only task A", runnable)
	}

	plan.markStatus(a, SubtaskDone)
	runnable = plan.Runnable()
	if len(runnable) != 1 || runnable[0].ID != b {
		t.Fatalf("Runnable() after A done = %+v, want only task B", runnable)
	}

	c := plan.AddTask("C", "")
	plan.mu.Lock()
	plan.tasks[2].Priority = 2
	plan.mu.Unlock()
	runnable = plan.Runnable()
	if len(runnable) != 2 || runnable[0].ID != c || runnable[1].ID != b {
		t.Fatalf("Runnable() with high-priority C = %+v, want C before B", runnable)
	}
}

func TestPlanValidateDetectsCycle(t *testing.T) {
	plan := NewPlan()
	a := plan.AddTask("A", "")
	b := plan.AddTask("B", "")
	_ = plan.SetDependencies(a, []string{b})
	_ = plan.SetDependencies(b, []string{a})

	if err := plan.Validate(); err == nil {
		t.Fatal("expected a cycle-detected error")
	}
}

func TestPlanValidateDetectsMissingDependency(t *testing.T) {
	plan := NewPlan()
	plan.AddTask("A", "")
	if err := plan.SetDependencies("1", []string{"does-not-exist"}); err != nil {
		t.Fatalf("SetDependencies() error = %v", err)
	}
	if err := plan.Validate(); err == nil {
		t.Fatal("expected a missing-dependency error")
	}
}

func TestSubagentOrchestratorRunSubtaskReturnsAssistantText(t *testing.T) {
	provider := &fakeProvider{script: [][]StreamEvent{
		{textEvent("task complete"), doneEvent()},
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())
	orch := NewSubagentOrchestrator(loop, store, NewPlan(), 1, 0)

	output, err := orch.RunSubtask(context.Background(), "do the thing", "some context")
	if err != nil {
		t.Fatalf("RunSubtask() error = %v", err)
	}
	if output != "task complete" {
		t.Errorf("output = %q, want %q", output, "task complete")
	}
}

func TestSubagentOrchestratorRunSubtaskFailsOnAwaitingApproval(t *testing.T) {
	provider := &fakeProvider{script: [][]StreamEvent{
		append(toolCallEvents("tc1", "edit_file"), doneEvent()),
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())
	orch := NewSubagentOrchestrator(loop, store, NewPlan(), 1, 0)

	if _, err := orch.RunSubtask(context.Background(), "edit a file", ""); err == nil {
		t.Fatal("expected an error when a subtask halts awaiting approval")
	}
}

func TestSubagentOrchestratorStartStopIsIdempotent(t *testing.T) {
	provider := &fakeProvider{script: [][]StreamEvent{{textEvent("ok"), doneEvent()}}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())
	orch := NewSubagentOrchestrator(loop, store, NewPlan(), 2, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)
	orch.Start(ctx) // second Start is a no-op
	orch.Stop()
	orch.Stop() // second Stop is a no-op
	cancel()
}

func TestUpdatePlanToolUpdatesStatus(t *testing.T) {
	registry := tools.NewRegistry()
	plan := NewPlan()
	plan.AddTask("A", "")

	cm := ctxmgr.NewManager(ctxmgr.DefaultSettings(128_000), nil)
	store := engine.NewStore(nil)
	loop := NewLoop(store, &fakeProvider{}, tools.NewDispatcher(registry, tools.AutoApproveSettings{}, nil), registry, cm, noopQC{}, passthroughAssembler{}, DefaultSettings())
	orch := NewSubagentOrchestrator(loop, store, plan, 1, 0)
	RegisterSubagentTools(registry, orch, plan)

	handler, ok := registry.Handler("update_plan")
	if !ok {
		t.Fatal("update_plan tool not registered")
	}
	_, err := handler.Execute(context.Background(), []byte(`{"task_id":"1","status":"done"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	tasks := plan.Tasks()
	if len(tasks) != 1 || tasks[0].Status != SubtaskDone {
		t.Errorf("tasks = %+v, want task 1 done", tasks)
	}
}
