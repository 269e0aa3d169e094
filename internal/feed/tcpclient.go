package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// TCPClientConfig drives a client for a receiver's NDJSON port, one aircraft
// object per line.
type TCPClientConfig struct {
	Addr           string
	ReconnectDelay time.Duration
	MaxLineBytes   int
	DialTimeout    time.Duration
}

// TCPClient keeps a connection to the receiver open, reconnecting with a
// fixed delay, and delivers one update batch per line.
type TCPClient struct {
	cfg TCPClientConfig

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	errors   atomic.Uint64
	batches  atomic.Uint64
	aircraft atomic.Uint64

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
}

func NewTCPClient(cfg TCPClientConfig) (*TCPClient, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("feed: tcp address is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 256 * 1024
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	return &TCPClient{cfg: cfg, state: "stopped", done: make(chan struct{})}, nil
}

func (c *TCPClient) Start(ctx context.Context, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("feed: handler is nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("feed: tcp client is closed")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("feed: tcp client already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.runLoop(runCtx, fn)
	return nil
}

func (c *TCPClient) Close() {
	if c.closed.Swap(true) {
		return
	}
	if !c.started.Load() {
		close(c.done)
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
}

func (c *TCPClient) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Source:   "tcp",
		Endpoint: c.cfg.Addr,
		State:    c.state,
		Errors:   c.errors.Load(),
		Batches:  c.batches.Load(),
		Aircraft: c.aircraft.Load(),
	}
	if c.lastErr != "" {
		s.LastError = c.lastErr
	}
	if !c.lastSeen.IsZero() {
		s.LastSeenUTC = c.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return s
}

// setState clears a stale error once the client is healthy again.
func (c *TCPClient) setState(state, lastErr string) {
	c.mu.Lock()
	c.state = state
	if lastErr != "" {
		c.lastErr = lastErr
	} else if state == "connected" || state == "connecting" || state == "stopped" {
		c.lastErr = ""
	}
	c.mu.Unlock()
}

func (c *TCPClient) runLoop(ctx context.Context, fn Handler) {
	defer close(c.done)

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	for {
		if ctx.Err() != nil {
			c.setState("stopped", "")
			return
		}

		c.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			c.errors.Add(1)
			c.setState("error", fmt.Sprintf("dial: %v", err))
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				c.setState("stopped", "")
				return
			}
			continue
		}

		c.setState("connected", "")
		c.readLines(ctx, conn, fn)
		conn.Close()

		if ctx.Err() != nil {
			c.setState("stopped", "")
			return
		}
		c.setState("disconnected", "")
		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			c.setState("stopped", "")
			return
		}
	}
}

func (c *TCPClient) readLines(ctx context.Context, conn net.Conn, fn Handler) {
	readDone := make(chan struct{})
	defer close(readDone)
	// Unblock the blocking read when the context ends.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	r := bufio.NewReaderSize(conn, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if len(line) > c.cfg.MaxLineBytes {
				c.errors.Add(1)
			} else {
				c.handleLine(line, fn)
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				c.errors.Add(1)
				c.setState("error", fmt.Sprintf("read: %v", err))
			}
			return
		}
	}
}

func (c *TCPClient) handleLine(line []byte, fn Handler) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	updates := parseDocument(line, nowSeconds())
	if len(updates) == 0 {
		return
	}
	fn(updates)
	c.batches.Add(1)
	c.aircraft.Add(uint64(len(updates)))
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}
