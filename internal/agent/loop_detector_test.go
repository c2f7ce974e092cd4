package agent

import (
	"encoding/json"
	"testing"

	"github.com/aegisline/coreengine/internal/engineerr"
)

func TestLoopDetectorExactRepeats(t *testing.T) {
	d := NewLoopDetector(LoopDetectorSettings{MaxHistory: 10, MaxExactRepeats: 3, MaxSameTargetRepeats: 100})

	args := json.RawMessage(`{"path":"a.go"}`)
	for i := 0; i < 2; i++ {
		if err := d.Check("edit_file", args, "a.go"); err != nil {
			t.Fatalf("Check() call %d unexpected error = %v", i, err)
		}
	}
	err := d.Check("edit_file", args, "a.go")
	if err == nil {
		t.Fatal("expected a loop-detected error on the 3rd identical call")
	}
	if !engineerr.Is(err, engineerr.LoopDetected) {
		t.Errorf("error kind = %v, want LoopDetected", err)
	}
}

func TestLoopDetectorSameTargetRepeats(t *testing.T) {
	d := NewLoopDetector(LoopDetectorSettings{MaxHistory: 10, MaxExactRepeats: 100, MaxSameTargetRepeats: 3})

	calls := []struct {
		tool string
		args json.RawMessage
	}{
		{"read_file", json.RawMessage(`{"n":0}`)},
		{"edit_file", json.RawMessage(`{"n":1}`)},
	}
	for i, c := range calls {
		if err := d.Check(c.tool, c.args, "b.go"); err != nil {
			t.Fatalf("Check() call %d unexpected error = %v", i, err)
		}
	}
	err := d.Check("grep", json.RawMessage(`{"n":9}`), "b.go")
	if err == nil {
		t.Fatal("expected a loop-detected error on the 3rd call touching the same target")
	}
	if !engineerr.Is(err, engineerr.LoopDetected) {
		t.Errorf("error kind = %v, want LoopDetected", err)
	}
}

func TestLoopDetectorDifferentTargetsDoNotTrigger(t *testing.T) {
	d := NewLoopDetector(LoopDetectorSettings{MaxHistory: 10, MaxExactRepeats: 3, MaxSameTargetRepeats: 3})

	for i, path := range []string{"a.go", "b.go", "c.go", "d.go"} {
		args := json.RawMessage(`{"path":"` + path + `"}`)
		if err := d.Check("edit_file", args, path); err != nil {
			t.Fatalf("Check() call %d unexpected error = %v", i, err)
		}
	}
}

func TestLoopDetectorResetClearsHistory(t *testing.T) {
	d := NewLoopDetector(LoopDetectorSettings{MaxHistory: 10, MaxExactRepeats: 2, MaxSameTargetRepeats: 100})
	args := json.RawMessage(`{}`)

	if err := d.Check("noop", args, ""); err != nil {
		t.Fatalf("Check() unexpected error = %v", err)
	}
	d.Reset()
	if err := d.Check("noop", args, ""); err != nil {
		t.Fatalf("Check() after Reset() unexpected error = %v", err)
	}
}

func TestLoopDetectorRingBufferBound(t *testing.T) {
	d := NewLoopDetector(LoopDetectorSettings{MaxHistory: 3, MaxExactRepeats: 100, MaxSameTargetRepeats: 100})
	for i := 0; i < 10; i++ {
		if err := d.Check("noop", json.RawMessage(`{}`), ""); err != nil {
			t.Fatalf("Check() call %d unexpected error = %v", i, err)
		}
	}
	if len(d.history) != 3 {
		t.Errorf("len(history) = %d, want bounded to MaxHistory=3", len(d.history))
	}
}

func TestNormalizedParamsHashIgnoresKeyOrder(t *testing.T) {
	a := normalizedParamsHash(json.RawMessage(`{"b":2,"a":1}`))
	b := normalizedParamsHash(json.RawMessage(`{"a":1,"b":2}`))
	if a != b {
		t.Errorf("hashes differ for reordered keys: %q != %q", a, b)
	}

	c := normalizedParamsHash(json.RawMessage(`{"a":1,"b":3}`))
	if a == c {
		t.Error("hashes match for different argument values")
	}
}
