package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Stderr lines longer than this are cut before they enter the tail ring.
const tailTruncateBytes = 512

// ExecConfig drives a child receiver process whose stdout is the NDJSON
// position stream.
type ExecConfig struct {
	Command string
	Args    []string
	Env     []string

	Restart        bool
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	TailLines      int
	MaxLineBytes   int
}

// Exec runs the receiver as a child process, restarts it with doubling
// backoff when it dies, and parses its stdout line by line. Stderr goes to a
// bounded tail ring served in status.
type Exec struct {
	cfg ExecConfig

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	errors   atomic.Uint64
	batches  atomic.Uint64
	aircraft atomic.Uint64

	tail stderrTail

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
	pid      int
}

func NewExec(cfg ExecConfig) (*Exec, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("feed: exec command is required")
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 200
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 256 * 1024
	}
	e := &Exec{cfg: cfg, state: "stopped", done: make(chan struct{})}
	e.tail.max = cfg.TailLines
	return e, nil
}

func (e *Exec) Start(ctx context.Context, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("feed: handler is nil")
	}
	if e.closed.Load() {
		return fmt.Errorf("feed: exec source is closed")
	}
	if e.started.Swap(true) {
		return fmt.Errorf("feed: exec source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.runLoop(runCtx, fn)
	return nil
}

func (e *Exec) Close() {
	if e.closed.Swap(true) {
		return
	}
	if !e.started.Load() {
		close(e.done)
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
}

func (e *Exec) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		Source:   "exec",
		Endpoint: e.cfg.Command,
		State:    e.state,
		PID:      e.pid,
		Errors:   e.errors.Load(),
		Batches:  e.batches.Load(),
		Aircraft: e.aircraft.Load(),
		Tail:     e.tail.snapshot(),
	}
	if e.lastErr != "" {
		s.LastError = e.lastErr
	}
	if !e.lastSeen.IsZero() {
		s.LastSeenUTC = e.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return s
}

// setState keeps the error that caused a restart visible until the child runs
// cleanly again.
func (e *Exec) setState(state, lastErr string) {
	e.mu.Lock()
	e.state = state
	if lastErr != "" {
		e.lastErr = lastErr
	} else if state == "running" {
		e.lastErr = ""
	}
	e.mu.Unlock()
}

func (e *Exec) runLoop(ctx context.Context, fn Handler) {
	defer close(e.done)

	backoff := e.cfg.BackoffInitial
	for {
		if ctx.Err() != nil {
			e.setState("stopped", "")
			return
		}

		e.setState("starting", "")
		err := e.runOnce(ctx, fn)
		if ctx.Err() != nil {
			e.setState("stopped", "")
			return
		}
		if err != nil {
			e.errors.Add(1)
			e.setState("error", err.Error())
		}
		if !e.cfg.Restart {
			if err == nil {
				e.setState("exited", "")
			}
			return
		}

		e.setState("restarting", "")
		if !sleepCtx(ctx, backoff) {
			e.setState("stopped", "")
			return
		}
		backoff *= 2
		if backoff > e.cfg.BackoffMax {
			backoff = e.cfg.BackoffMax
		}
	}
}

func (e *Exec) runOnce(ctx context.Context, fn Handler) error {
	cmd := exec.CommandContext(ctx, e.cfg.Command, e.cfg.Args...)
	if len(e.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), e.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	e.mu.Lock()
	e.pid = cmd.Process.Pid
	e.mu.Unlock()
	e.setState("running", "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.readStdout(stdout, fn)
	}()
	go func() {
		defer wg.Done()
		e.readStderr(stderr)
	}()
	wg.Wait()
	err = cmd.Wait()

	e.mu.Lock()
	e.pid = 0
	e.mu.Unlock()

	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("exited: %w", err)
	}
	return nil
}

func (e *Exec) readStdout(r io.Reader, fn Handler) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if len(line) > e.cfg.MaxLineBytes {
				e.errors.Add(1)
			} else {
				e.handleLine(line, fn)
			}
		}
		if err != nil {
			return
		}
	}
}

func (e *Exec) readStderr(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if s := string(bytes.TrimSpace(line)); s != "" {
			if len(s) > tailTruncateBytes {
				s = s[:tailTruncateBytes]
			}
			e.tail.add(s)
		}
		if err != nil {
			return
		}
	}
}

func (e *Exec) handleLine(line []byte, fn Handler) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	updates := parseDocument(line, nowSeconds())
	if len(updates) == 0 {
		return
	}
	fn(updates)
	e.batches.Add(1)
	e.aircraft.Add(uint64(len(updates)))
	e.mu.Lock()
	e.lastSeen = time.Now()
	e.mu.Unlock()
}

// stderrTail is a bounded ring of the child's most recent stderr lines.
type stderrTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *stderrTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if n := len(t.lines) - t.max; n > 0 {
		t.lines = append(t.lines[:0], t.lines[n:]...)
	}
}

func (t *stderrTail) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return nil
	}
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
