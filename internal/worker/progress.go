package worker

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Progress reports finished year builds, one line per year.
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	start   time.Time
	total   int
	done    int
	failed  int
	enabled bool
}

// NewProgress creates a tracker for total years writing to stderr.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		out:     os.Stderr,
		start:   time.Now(),
		total:   total,
		enabled: enabled,
	}
}

// SetOutput redirects the per-year lines.
func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	p.out = w
	p.mu.Unlock()
}

// Observe counts a finished task and, when enabled, prints its line.
// It has the shape of a ResultFunc.
func (p *Progress) Observe(r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	status := "ok"
	if r.Err != nil {
		p.failed++
		status = "failed: " + r.Err.Error()
	}
	if !p.enabled {
		return
	}
	fmt.Fprintf(p.out, "[%d/%d] %d %s (%s)\n",
		p.done, p.total, r.Task.Year, status, r.Elapsed.Round(time.Millisecond))
}

// Summary describes the work observed so far.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("Built %d/%d years (%d failed) in %s",
		p.done-p.failed, p.total, p.failed, time.Since(p.start).Round(time.Millisecond))
}
