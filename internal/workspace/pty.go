package workspace

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// outputBuffer is a bounded, thread-safe byte buffer backing one PTY
// session's accumulated output, capped so a long-running background
// command can't grow without bound.
type outputBuffer struct {
	mu  sync.RWMutex
	buf []byte
}

const outputBufferCap = 1024 * 1024

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > outputBufferCap {
		b.buf = b.buf[len(b.buf)-outputBufferCap:]
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.buf)
}

// ptySession is one background command running under a pseudo-terminal,
// grounded on the teacher's host.PTYSession.
type ptySession struct {
	id      string
	cmd     *exec.Cmd
	tty     *os.File
	output  *outputBuffer
	started time.Time

	mu      sync.Mutex
	running bool
}

// ptyManager runs background run_command invocations under a real PTY
// instead of a bare os/exec pipe, so interactive or TTY-sensitive
// programs (progress bars, prompts) behave the same as a foreground
// terminal would. Grounded on the teacher's internal/host.PTYManager
// (pty_manager.go), relocated into the Workspace Gateway since it backs
// one tool (run_command's background mode), not a host-abstraction
// layer — the Gateway already owns every other tool-execution concern.
type ptyManager struct {
	mu       sync.RWMutex
	sessions map[string]*ptySession
}

func newPTYManager() *ptyManager {
	return &ptyManager{sessions: make(map[string]*ptySession)}
}

func (m *ptyManager) start(command, dir string) (*ptySession, error) {
	c := exec.Command("sh", "-c", command)
	c.Dir = dir

	ptmx, err := pty.Start(c)
	if err != nil {
		return nil, fmt.Errorf("failed to start pty: %w", err)
	}

	session := &ptySession{
		id:      uuid.NewString(),
		cmd:     c,
		tty:     ptmx,
		output:  &outputBuffer{},
		started: time.Now(),
		running: true,
	}

	go func() {
		_, _ = io.Copy(session.output, ptmx)
		session.mu.Lock()
		session.running = false
		session.mu.Unlock()
	}()

	m.mu.Lock()
	m.sessions[session.id] = session
	m.mu.Unlock()
	return session, nil
}

func (m *ptyManager) get(id string) (*ptySession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// status reports a session's liveness and accumulated output so far,
// usable while the command is still running (unlike a plain
// goroutine+channel result that only resolves on completion). Output is
// cleaned of \r/\b cursor-control sequences so a progress bar or spinner
// reads as its final state instead of every intermediate frame.
func (s *ptySession) status() (running bool, output string) {
	s.mu.Lock()
	running = s.running
	s.mu.Unlock()
	return running, processTerminalOutput(s.output.String())
}

// processTerminalOutput collapses \r (carriage return) and \b (backspace)
// cursor movement the way a real terminal would, so a PTY session's
// progress bars and spinners resolve to their final line instead of
// appearing as a stream of overlapping fragments in a JSON response.
// Relocated from the teacher's internal/format.ProcessTerminalOutput,
// which existed purely to make tool output readable; the Thread Event
// Stream (C8's run_command/command_status) has that exact need.
func processTerminalOutput(input string) string {
	if !strings.ContainsAny(input, "\r\b") {
		return input
	}

	lines := strings.Split(input, "\n")
	processedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			processedLines = append(processedLines, "")
			continue
		}
		processedLines = append(processedLines, collapseCursorMoves(line))
	}
	return strings.Join(processedLines, "\n")
}

func collapseCursorMoves(line string) string {
	runes := []rune(line)
	cursor := 0
	output := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch r {
		case '\r':
			cursor = 0
		case '\b':
			if cursor > 0 {
				cursor--
			}
		default:
			if cursor < len(output) {
				output[cursor] = r
			} else {
				output = append(output, r)
			}
			cursor++
		}
	}
	return string(output)
}
