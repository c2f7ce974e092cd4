// Sub-agent dispatch: a bounded worker pool that runs an in-memory task
// plan's runnable items as independent Loop turns on their own threads.
//
// Grounded on the teacher's plan.go/plan_extras.go/plan_retries.go
// (PlanManager: TaskItem bookkeeping, dependency-gated GetRunnableTasks,
// retry counters, cycle validation) and swarm.go (SwarmOrchestrator: a
// ticker-driven loop dispatching runnable tasks to a semaphore-bounded
// worker pool, one goroutine per task, with retry-on-failure). The
// teacher persisted the plan to task_plan.json under a session
// directory and reported progress through protocol.TaskProgress to its
// TUI; neither survives here. spec.md's data model has no on-disk plan
// file of its own — the Thread Store is the engine's only durable
// state — so Plan is kept in memory, scoped to the orchestrator that
// owns it, and progress is reported through the engine's existing
// Subscriber/Event stream (spec.md §6) rather than a bespoke protocol
// type.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

// SubtaskStatus is one of a Subtask's lifecycle states.
type SubtaskStatus string

const (
	SubtaskPending SubtaskStatus = "pending"
	SubtaskActive  SubtaskStatus = "active"
	SubtaskDone    SubtaskStatus = "done"
	SubtaskFailed  SubtaskStatus = "failed"
)

// Subtask is one item of a Plan.
type Subtask struct {
	ID             string
	Title          string
	Status         SubtaskStatus
	Context        string
	Dependencies   []string
	RetryCount     int
	MaxRetries     int
	Priority       int // 0=normal, 1=high, 2=critical
	TimeoutSeconds int
	Output         string
}

// Plan is an in-memory, dependency-ordered task list for sub-agent
// dispatch. Grounded on the teacher's PlanManager, with disk
// persistence dropped (see package doc).
type Plan struct {
	mu    sync.RWMutex
	tasks []Subtask
}

// NewPlan creates an empty Plan.
func NewPlan() *Plan { return &Plan{} }

// AddTask appends a pending task and returns its assigned ID.
func (p *Plan) AddTask(title, taskContext string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("%d", len(p.tasks)+1)
	p.tasks = append(p.tasks, Subtask{ID: id, Title: title, Status: SubtaskPending, Context: taskContext})
	return id
}

// SetDependencies replaces a task's dependency list.
func (p *Plan) SetDependencies(id string, deps []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.find(id)
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	p.tasks[i].Dependencies = deps
	return nil
}

// UpdateStatus sets a task's status directly (used by the update_plan tool).
func (p *Plan) UpdateStatus(id string, status SubtaskStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.find(id)
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	p.tasks[i].Status = status
	return nil
}

func (p *Plan) markStatus(id string, status SubtaskStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.find(id); ok {
		p.tasks[i].Status = status
	}
}

func (p *Plan) setOutput(id, output string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.find(id); ok {
		p.tasks[i].Output = output
	}
}

func (p *Plan) incrementRetry(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.find(id); ok {
		p.tasks[i].RetryCount++
		return p.tasks[i].RetryCount
	}
	return 0
}

// find must be called with p.mu held.
func (p *Plan) find(id string) (int, bool) {
	for i := range p.tasks {
		if p.tasks[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Tasks returns a snapshot of every task.
func (p *Plan) Tasks() []Subtask {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Subtask, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Runnable returns pending tasks whose dependencies are all done,
// highest priority first. Grounded on the teacher's GetRunnableTasks.
func (p *Plan) Runnable() []Subtask {
	p.mu.RLock()
	defer p.mu.RUnlock()

	done := make(map[string]bool)
	for _, t := range p.tasks {
		if t.Status == SubtaskDone {
			done[t.ID] = true
		}
	}

	var runnable []Subtask
	for _, t := range p.tasks {
		if t.Status != SubtaskPending {
			continue
		}
		met := true
		for _, dep := range t.Dependencies {
			if !done[dep] {
				met = false
				break
			}
		}
		if met {
			runnable = append(runnable, t)
		}
	}
	sort.Slice(runnable, func(i, j int) bool { return runnable[i].Priority > runnable[j].Priority })
	return runnable
}

// Validate checks every dependency ID exists and the dependency graph
// has no cycles. Grounded on the teacher's PlanManager.ValidatePlan.
func (p *Plan) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make(map[string]bool, len(p.tasks))
	graph := make(map[string][]string, len(p.tasks))
	for _, t := range p.tasks {
		ids[t.ID] = true
		graph[t.ID] = t.Dependencies
	}
	for _, t := range p.tasks {
		for _, dep := range t.Dependencies {
			if !ids[dep] {
				return fmt.Errorf("task %s depends on non-existent task %s", t.ID, dep)
			}
		}
	}

	const white, gray, black = 0, 1, 2
	colors := make(map[string]int, len(p.tasks))
	var dfs func(id string) error
	dfs = func(id string) error {
		colors[id] = gray
		for _, dep := range graph[id] {
			switch colors[dep] {
			case gray:
				return fmt.Errorf("cycle detected: %s -> %s", id, dep)
			case white:
				if err := dfs(dep); err != nil {
					return err
				}
			}
		}
		colors[id] = black
		return nil
	}
	for id := range ids {
		if colors[id] == white {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// GenerateContext renders the plan as a pinned context block for the
// system prompt, grounded on the teacher's PlanManager.GenerateContext.
func (p *Plan) GenerateContext() string {
	tasks := p.Tasks()
	if len(tasks) == 0 {
		return ""
	}
	out := "Current task plan:\n"
	for _, t := range tasks {
		icon := "[ ]"
		switch t.Status {
		case SubtaskDone:
			icon = "[x]"
		case SubtaskActive:
			icon = "[>]"
		case SubtaskFailed:
			icon = "[!]"
		}
		out += fmt.Sprintf("%s %s. %s\n", icon, t.ID, t.Title)
	}
	return out
}

// SubagentOrchestrator runs a Plan's runnable tasks as independent Loop
// turns, bounded to MaxWorkers concurrent sub-agents. Grounded on the
// teacher's SwarmOrchestrator: a ticker-driven scheduling loop plus a
// semaphore-bounded worker pool, one goroutine per dispatched task,
// with retry-on-failure up to the task's MaxRetries.
type SubagentOrchestrator struct {
	Loop       *Loop
	Store      *engine.Store
	Plan       *Plan
	MaxWorkers int
	PollTick   time.Duration

	mu      sync.Mutex
	active  bool
	stopCh  chan struct{}
}

// NewSubagentOrchestrator builds an orchestrator. MaxWorkers <= 0
// defaults to 5; PollTick <= 0 defaults to 2s (the teacher's cadence).
func NewSubagentOrchestrator(loop *Loop, store *engine.Store, plan *Plan, maxWorkers int, pollTick time.Duration) *SubagentOrchestrator {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	if pollTick <= 0 {
		pollTick = 2 * time.Second
	}
	return &SubagentOrchestrator{Loop: loop, Store: store, Plan: plan, MaxWorkers: maxWorkers, PollTick: pollTick}
}

// Start begins the scheduling loop in the background. A second call
// while already active is a no-op.
func (so *SubagentOrchestrator) Start(ctx context.Context) {
	so.mu.Lock()
	if so.active {
		so.mu.Unlock()
		return
	}
	so.active = true
	so.stopCh = make(chan struct{})
	so.mu.Unlock()

	go so.run(ctx)
}

// Stop halts the scheduling loop. In-flight sub-agent turns are not
// cancelled; they finish and their results land in the Plan as usual.
func (so *SubagentOrchestrator) Stop() {
	so.mu.Lock()
	defer so.mu.Unlock()
	if !so.active {
		return
	}
	so.active = false
	close(so.stopCh)
}

func (so *SubagentOrchestrator) run(ctx context.Context) {
	ticker := time.NewTicker(so.PollTick)
	defer ticker.Stop()

	sem := make(chan struct{}, so.MaxWorkers)
	for {
		select {
		case <-so.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, task := range so.Plan.Runnable() {
				sem <- struct{}{}
				so.Plan.markStatus(task.ID, SubtaskActive)
				go func(t Subtask) {
					defer func() { <-sem }()
					so.runOne(ctx, t)
				}(task)
			}
		}
	}
}

func (so *SubagentOrchestrator) runOne(ctx context.Context, t Subtask) {
	maxRetries := t.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	taskCtx := ctx
	if t.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, time.Duration(t.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	output, err := so.RunSubtask(taskCtx, t.Title, t.Context)
	if err != nil {
		retryCount := so.Plan.incrementRetry(t.ID)
		if retryCount < maxRetries {
			so.Plan.markStatus(t.ID, SubtaskPending)
		} else {
			so.Plan.markStatus(t.ID, SubtaskFailed)
		}
		return
	}
	so.Plan.setOutput(t.ID, output)
	so.Plan.markStatus(t.ID, SubtaskDone)
}

// RunSubtask runs one sub-agent turn to completion on a fresh thread
// and returns the final assistant message's text. Any outcome other
// than the turn reaching idle (awaiting_approval, interrupted,
// cancelling) is treated as a failure — a sub-agent has no human
// available to resolve an approval, so auto_approve must be configured
// for whatever tools sub-agents are allowed to call.
func (so *SubagentOrchestrator) RunSubtask(ctx context.Context, title, taskContext string) (string, error) {
	threadID := so.Store.CreateThread()

	status, err := so.Loop.Submit(ctx, threadID, fmt.Sprintf("%s\n\n%s", title, taskContext), nil)
	if err != nil {
		return "", err
	}
	if status != StatusIdle {
		return "", fmt.Errorf("subtask %q halted in state %q instead of completing", title, status)
	}

	thread, ok := so.Store.Thread(threadID)
	if !ok {
		return "", engine.ErrUnknownThread
	}
	for i := len(thread.Messages) - 1; i >= 0; i-- {
		m := thread.Messages[i]
		if m.Kind != engine.KindAssistant || m.Assistant == nil {
			continue
		}
		var text string
		for _, part := range m.Assistant.Parts {
			if part.Type == engine.PartText {
				text += part.Text
			}
		}
		return text, nil
	}
	return "", nil
}

// updatePlanArgs is the argument shape for the update_plan tool.
type updatePlanArgs struct {
	TaskID       string   `json:"task_id"`
	Status       string   `json:"status"`
	Dependencies []string `json:"dependencies"`
}

// updatePlanSchema is the update_plan tool's JSON parameter schema.
var updatePlanSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"task_id": {"type": "string"},
		"status": {"type": "string", "enum": ["pending", "active", "done", "failed"]},
		"dependencies": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["task_id"]
}`)

// startSubagentsSchema is the start_subagents tool's JSON parameter schema.
var startSubagentsSchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// RegisterSubagentTools registers the two model-facing tools that drive
// sub-agent dispatch: start_subagents kicks off the orchestrator's
// scheduling loop, update_plan lets the model report a task's outcome.
// Grounded on the teacher's StartSwarmToolImpl/UpdatePlanToolImpl
// (swarm_tools.go), rewritten over tools.Descriptor/tools.Handler
// instead of the teacher's own protocol.Tool interface.
func RegisterSubagentTools(registry *tools.Registry, orch *SubagentOrchestrator, plan *Plan) {
	registry.Register(
		tools.Descriptor{
			Name:          "start_subagents",
			Description:   "Starts the sub-agent worker pool against the current task plan. Call once a plan with runnable tasks exists.",
			ParamsSchema:  startSubagentsSchema,
			ApprovalClass: tools.ApprovalNone,
			Concurrency:   tools.ConcurrencySequential,
		},
		tools.HandlerFunc(func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
			orch.Start(context.Background())
			return tools.Result{Content: "sub-agent worker pool started; wait for tasks to complete", Type: engine.ToolSuccess}, nil
		}),
	)

	registry.Register(
		tools.Descriptor{
			Name:          "update_plan",
			Description:   "Updates a task plan item's status and/or dependencies.",
			ParamsSchema:  updatePlanSchema,
			ApprovalClass: tools.ApprovalNone,
			Concurrency:   tools.ConcurrencyParallelSafe,
		},
		tools.HandlerFunc(func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
			var in updatePlanArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return tools.Result{}, fmt.Errorf("invalid arguments: %w", err)
			}
			if in.Status != "" {
				if err := plan.UpdateStatus(in.TaskID, SubtaskStatus(in.Status)); err != nil {
					return tools.Result{}, err
				}
			}
			if len(in.Dependencies) > 0 {
				if err := plan.SetDependencies(in.TaskID, in.Dependencies); err != nil {
					return tools.Result{}, err
				}
			}
			return tools.Result{Content: fmt.Sprintf("task %s updated", in.TaskID), Type: engine.ToolSuccess}, nil
		}),
	)
}
