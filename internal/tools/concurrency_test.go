package tools

import "testing"

func TestPlanWavesParallelSafeCallsShareWaveZero(t *testing.T) {
	calls := []Call{
		{ID: "1", Concurrency: ConcurrencyParallelSafe},
		{ID: "2", Concurrency: ConcurrencyParallelSafe},
	}
	waves := PlanWaves(calls)
	if waves[0] != 0 || waves[1] != 0 {
		t.Errorf("waves = %v, want [0 0]", waves)
	}
}

func TestPlanWavesTargetExclusiveSerializesSamePath(t *testing.T) {
	calls := []Call{
		{ID: "1", Concurrency: ConcurrencyTargetExclusive, TargetPath: "a.go"},
		{ID: "2", Concurrency: ConcurrencyTargetExclusive, TargetPath: "a.go"},
		{ID: "3", Concurrency: ConcurrencyTargetExclusive, TargetPath: "b.go"},
	}
	waves := PlanWaves(calls)
	if waves[0] != 0 {
		t.Errorf("waves[0] = %d, want 0", waves[0])
	}
	if waves[1] != 1 {
		t.Errorf("waves[1] = %d, want 1 (depends on call touching same path)", waves[1])
	}
	if waves[2] != 0 {
		t.Errorf("waves[2] = %d, want 0 (disjoint path)", waves[2])
	}
}

func TestPlanWavesSequentialWithoutPathDependsOnAllEarlierNonParallel(t *testing.T) {
	calls := []Call{
		{ID: "1", Concurrency: ConcurrencyParallelSafe},
		{ID: "2", Concurrency: ConcurrencySequential},
		{ID: "3", Concurrency: ConcurrencySequential},
	}
	waves := PlanWaves(calls)
	if waves[0] != 0 {
		t.Errorf("waves[0] = %d, want 0", waves[0])
	}
	if waves[1] != 0 {
		t.Errorf("waves[1] = %d, want 0 (parallel_safe predecessor imposes no dependency)", waves[1])
	}
	if waves[2] != 1 {
		t.Errorf("waves[2] = %d, want 1 (depends on the earlier sequential call)", waves[2])
	}
}

func TestGroupByWave(t *testing.T) {
	groups := GroupByWave([]int{0, 1, 0, 2})
	want := [][]int{{0, 2}, {1}, {3}}
	if len(groups) != len(want) {
		t.Fatalf("len(groups) = %d, want %d", len(groups), len(want))
	}
	for i := range want {
		if len(groups[i]) != len(want[i]) {
			t.Fatalf("groups[%d] = %v, want %v", i, groups[i], want[i])
		}
		for j := range want[i] {
			if groups[i][j] != want[i][j] {
				t.Errorf("groups[%d][%d] = %d, want %d", i, j, groups[i][j], want[i][j])
			}
		}
	}
}
