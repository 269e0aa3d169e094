package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer is the in-memory ring behind /api/logs. It implements io.Writer
// so the logger can tee into it; writes are split into lines with a partial
// trailing line carried to the next write.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial string
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.partial + string(p)
	lines := strings.Split(data, "\n")
	// The element after the last newline is empty for a complete write and
	// the partial line otherwise.
	b.partial = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		b.appendLocked(line)
	}
	return len(p), nil
}

func (b *LogBuffer) appendLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = b.lines[over:]
		b.dropped += uint64(over)
	}
}

// Tail returns the most recent tail lines and the count dropped by the ring
// so far.
func (b *LogBuffer) Tail(tail int) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped = b.dropped
	if tail <= 0 || tail > len(b.lines) {
		tail = len(b.lines)
	}
	lines = append([]string(nil), b.lines[len(b.lines)-tail:]...)
	return lines, dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	tail := 200
	if q := strings.TrimSpace(r.URL.Query().Get("tail")); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 || v > 5000 {
			respondError(w, http.StatusBadRequest, "tail must be an integer in [1,5000]")
			return
		}
		tail = v
	}

	lines, dropped := s.Logs.Tail(tail)

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if dropped > 0 {
			_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
		}
		for _, line := range lines {
			_, _ = fmt.Fprintln(w, line)
		}
		return
	}

	respondData(w, LogsResponse{
		NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
		Dropped: dropped,
		Lines:   lines,
	})
}
