package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/FatmaElik/risk-map/internal/metrics"
	"github.com/rotisserie/eris"
)

// ErrSuperseded is returned by Session.Load when a newer load started before
// this one finished. Its result is discarded.
var ErrSuperseded = eris.New("load superseded by a newer request")

// SnapshotBuilder builds a snapshot for a year.
type SnapshotBuilder interface {
	Build(ctx context.Context, year int) (*Snapshot, error)
}

// Session holds the active snapshot. Each Load takes a generation number and
// commits only if no later Load has started since; in-flight fetches of a
// superseded load are not aborted.
type Session struct {
	builder SnapshotBuilder
	logger  *slog.Logger

	generation atomic.Uint64
	mu         sync.RWMutex
	current    *Snapshot
}

// NewSession creates a session without an active snapshot.
func NewSession(builder SnapshotBuilder, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{builder: builder, logger: logger}
}

// Load builds year and makes it active unless superseded.
func (s *Session) Load(ctx context.Context, year int) (*Snapshot, error) {
	gen := s.generation.Add(1)

	snap, err := s.builder.Build(ctx, year)
	if err != nil {
		metrics.LoadsTotal.WithLabelValues("failed").Inc()
		return nil, eris.Wrapf(err, "failed to load year %d", year)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != gen {
		metrics.LoadsTotal.WithLabelValues("superseded").Inc()
		s.logger.Debug("discarding superseded load", "year", year, "generation", gen)
		return nil, eris.Wrapf(ErrSuperseded, "year %d", year)
	}
	s.current = snap
	metrics.LoadsTotal.WithLabelValues("committed").Inc()
	return snap, nil
}

// Current returns the active snapshot.
func (s *Session) Current() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}
