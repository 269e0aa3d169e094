package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// FilePollerConfig drives a poller over a receiver-written aircraft.json.
type FilePollerConfig struct {
	Path     string
	Interval time.Duration
}

// FilePoller re-reads an aircraft.json on an interval and delivers the
// decoded updates. Unchanged files are skipped on mtime and size, so an idle
// receiver costs one stat per tick.
type FilePoller struct {
	cfg FilePollerConfig

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	reads    atomic.Uint64
	skips    atomic.Uint64
	errors   atomic.Uint64
	batches  atomic.Uint64
	aircraft atomic.Uint64

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
	lastMod  time.Time
	lastSize int64
}

func NewFilePoller(cfg FilePollerConfig) (*FilePoller, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("feed: file path is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &FilePoller{cfg: cfg, state: "stopped", done: make(chan struct{})}, nil
}

func (p *FilePoller) Start(ctx context.Context, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("feed: handler is nil")
	}
	if p.closed.Load() {
		return fmt.Errorf("feed: file poller is closed")
	}
	if p.started.Swap(true) {
		return fmt.Errorf("feed: file poller already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.runLoop(runCtx, fn)
	return nil
}

func (p *FilePoller) Close() {
	if p.closed.Swap(true) {
		return
	}
	if !p.started.Load() {
		close(p.done)
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *FilePoller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Source:   "file",
		Endpoint: p.cfg.Path,
		State:    p.state,
		Reads:    p.reads.Load(),
		Skips:    p.skips.Load(),
		Errors:   p.errors.Load(),
		Batches:  p.batches.Load(),
		Aircraft: p.aircraft.Load(),
	}
	if p.lastErr != "" {
		s.LastError = p.lastErr
	}
	if !p.lastSeen.IsZero() {
		s.LastSeenUTC = p.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return s
}

func (p *FilePoller) setState(state, lastErr string) {
	p.mu.Lock()
	p.state = state
	p.lastErr = lastErr
	p.mu.Unlock()
}

func (p *FilePoller) runLoop(ctx context.Context, fn Handler) {
	defer close(p.done)
	p.setState("polling", "")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick(fn)
	for {
		select {
		case <-ctx.Done():
			p.setState("stopped", "")
			return
		case <-ticker.C:
			p.tick(fn)
		}
	}
}

func (p *FilePoller) tick(fn Handler) {
	info, err := os.Stat(p.cfg.Path)
	if err != nil {
		p.errors.Add(1)
		p.setState("error", fmt.Sprintf("stat: %v", err))
		return
	}

	p.mu.RLock()
	unchanged := info.ModTime().Equal(p.lastMod) && info.Size() == p.lastSize
	p.mu.RUnlock()
	if unchanged {
		p.skips.Add(1)
		return
	}

	b, err := os.ReadFile(p.cfg.Path)
	if err != nil {
		p.errors.Add(1)
		p.setState("error", fmt.Sprintf("read: %v", err))
		return
	}
	p.reads.Add(1)

	if !json.Valid(b) {
		// Receivers rewrite the file in place; a torn read decodes next tick.
		p.errors.Add(1)
		p.setState("error", "invalid JSON document")
		return
	}

	p.mu.Lock()
	p.lastMod = info.ModTime()
	p.lastSize = info.Size()
	p.mu.Unlock()

	updates := parseDocument(b, nowSeconds())
	if len(updates) > 0 {
		fn(updates)
		p.batches.Add(1)
		p.aircraft.Add(uint64(len(updates)))
		p.mu.Lock()
		p.lastSeen = time.Now()
		p.mu.Unlock()
	}
	p.setState("polling", "")
}
