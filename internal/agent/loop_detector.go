package agent

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aegisline/coreengine/internal/engineerr"
)

// LoopSignature is one entry of the loop_history ring buffer spec.md
// §4.4 defines: a tool call reduced to (tool_name, normalized_params_hash,
// target_path).
type LoopSignature struct {
	ToolName   string
	ParamsHash string
	TargetPath string
}

// LoopDetectorSettings configures the two thresholds spec.md §4.4's
// loop_detection configuration surface exposes.
type LoopDetectorSettings struct {
	MaxHistory           int // ring buffer size, default 50
	MaxExactRepeats      int // identical (name, params_hash), default 5
	MaxSameTargetRepeats int // consecutive mutations on same path, default 8
}

// DefaultLoopDetectorSettings returns spec.md §6's configuration defaults.
func DefaultLoopDetectorSettings() LoopDetectorSettings {
	return LoopDetectorSettings{
		MaxHistory:           50,
		MaxExactRepeats:      5,
		MaxSameTargetRepeats: 8,
	}
}

// LoopDetector tracks recent tool calls and flags the two repetition
// patterns spec.md §4.4 names. Grounded on the teacher's LoopDetector
// (this file, previously a fixed-size-5 buffer with a hardcoded
// 3-consecutive-repeats rule over "ToolName:md5(args)" signatures),
// generalized to a configurable ring buffer size and the spec's two
// distinct thresholds, and to include the tool's target path so a
// "same tool, different path" sequence isn't mistaken for a target loop.
type LoopDetector struct {
	mu       sync.Mutex
	settings LoopDetectorSettings
	history  []LoopSignature
}

// NewLoopDetector builds a LoopDetector. A zero-value settings.MaxHistory
// falls back to DefaultLoopDetectorSettings().
func NewLoopDetector(settings LoopDetectorSettings) *LoopDetector {
	if settings.MaxHistory <= 0 {
		settings = DefaultLoopDetectorSettings()
	}
	return &LoopDetector{
		settings: settings,
		history:  make([]LoopSignature, 0, settings.MaxHistory),
	}
}

// Check records one tool call and returns a LoopDetected engineerr.Error
// if it pushes the history over either threshold. Call once per
// dispatched tool call, in call order.
func (d *LoopDetector) Check(toolName string, params json.RawMessage, targetPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sig := LoopSignature{
		ToolName:   toolName,
		ParamsHash: normalizedParamsHash(params),
		TargetPath: targetPath,
	}

	if len(d.history) >= d.settings.MaxHistory {
		d.history = d.history[1:]
	}
	d.history = append(d.history, sig)

	if d.exactRepeats(sig) >= d.settings.MaxExactRepeats {
		return engineerr.New(engineerr.LoopDetected, fmt.Sprintf(
			"loop detected: %q called with identical arguments %d times", toolName, d.settings.MaxExactRepeats))
	}
	if targetPath != "" && d.sameTargetRepeats(targetPath) >= d.settings.MaxSameTargetRepeats {
		return engineerr.New(engineerr.LoopDetected, fmt.Sprintf(
			"loop detected: %d consecutive mutations targeting %q", d.settings.MaxSameTargetRepeats, targetPath))
	}
	return nil
}

// exactRepeats counts the trailing run of entries identical to sig.
func (d *LoopDetector) exactRepeats(sig LoopSignature) int {
	count := 0
	for i := len(d.history) - 1; i >= 0; i-- {
		if d.history[i].ToolName != sig.ToolName || d.history[i].ParamsHash != sig.ParamsHash {
			break
		}
		count++
	}
	return count
}

// sameTargetRepeats counts the trailing run of entries touching path.
func (d *LoopDetector) sameTargetRepeats(path string) int {
	count := 0
	for i := len(d.history) - 1; i >= 0; i-- {
		if d.history[i].TargetPath != path {
			break
		}
		count++
	}
	return count
}

// Reset clears the history. The Loop keeps one detector per thread and
// never calls Reset itself, so history carries across that thread's
// turns until a caller resets it explicitly.
func (d *LoopDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = d.history[:0]
}

// normalizedParamsHash hashes params after round-tripping them through
// map[string]any, which canonicalizes key order (encoding/json marshals
// map keys sorted), so semantically identical arguments with differently
// ordered keys hash the same. Falls back to hashing the raw bytes if the
// params aren't a JSON object.
func normalizedParamsHash(params json.RawMessage) string {
	var m map[string]any
	data := []byte(params)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &m); err == nil {
			if canon, err := json.Marshal(m); err == nil {
				data = canon
			}
		}
	}
	return fmt.Sprintf("%x", md5.Sum(data))
}
