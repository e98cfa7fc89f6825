package loopback

import (
	"fmt"
	"math"

	"inferd/pkg/types"
)

const errorRateWindow = 20

// IsDegraded reports whether DegradedAfter consecutive failures happened,
// regardless of provider.
func (h *Handler) IsDegraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutive >= h.cfg.DegradedAfter
}

// RecentErrors returns copies of the last 10 records, oldest first.
func (h *Handler) RecentErrors() []ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.history) - 10
	if start < 0 {
		start = 0
	}
	out := make([]ErrorRecord, 0, len(h.history)-start)
	for _, e := range h.history[start:] {
		out = append(out, *e.rec)
	}
	return out
}

// ErrorRate is the share of unresolved records among the last 20.
func (h *Handler) ErrorRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errorRateLocked()
}

func (h *Handler) errorRateLocked() float64 {
	start := len(h.history) - errorRateWindow
	if start < 0 {
		start = 0
	}
	recent := h.history[start:]
	if len(recent) == 0 {
		return 0
	}
	unresolved := 0
	for _, e := range recent {
		if !e.resolved {
			unresolved++
		}
	}
	return float64(unresolved) / float64(len(recent))
}

// Stats summarizes the retained history.
func (h *Handler) Stats() types.RetryStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := types.RetryStats{
		TotalErrors:         len(h.history),
		ConsecutiveFailures: h.consecutive,
		Degraded:            h.consecutive >= h.cfg.DegradedAfter,
		ErrorRate:           math.Round(h.errorRateLocked()*1000) / 1000,
		ByKind:              make(map[string]int),
	}
	for _, e := range h.history {
		if e.resolved {
			s.Resolved++
		}
		s.ByKind[string(e.rec.Kind)]++
	}
	s.ResolutionRate = 1
	if s.TotalErrors > 0 {
		s.ResolutionRate = float64(s.Resolved) / float64(s.TotalErrors)
	}
	return s
}

// Summary is a one-liner for logs.
func (h *Handler) Summary() string {
	s := h.Stats()
	return fmt.Sprintf("errors: %d total, %d resolved, rate=%.1f%%, degraded=%t",
		s.TotalErrors, s.Resolved, s.ErrorRate*100, s.Degraded)
}
