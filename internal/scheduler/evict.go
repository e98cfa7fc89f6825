package scheduler

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// evictionLess orders eviction candidates: lower priority first, then least
// recently used.
func evictionLess(a, b *slot) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.lastUsed.Before(b.lastUsed)
}

// pickEviction returns the next resident slot to demote, never the excluded
// one. Non-critical slots are preferred; a critical slot is only returned when
// nothing else is resident. Caller must hold s.mu.
func (s *Scheduler) pickEviction(exclude string) *slot {
	candidates := make([]*slot, 0, len(s.order))
	for _, name := range s.order {
		sl := s.slots[name]
		if sl.resident && name != exclude {
			candidates = append(candidates, sl)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return evictionLess(candidates[i], candidates[j]) })
	for _, c := range candidates {
		if c.Priority != PriorityCritical {
			return c
		}
	}
	return candidates[0]
}

// demote moves a resident slot back to materialized. Caller must hold s.mu.
func (s *Scheduler) demote(sl *slot, reason string) error {
	if err := sl.workload.ToMaterialized(); err != nil {
		return err
	}
	sl.resident = false
	s.usedMB -= sl.SizeMB
	s.evictions++
	evictionsTotal.WithLabelValues(reason).Inc()
	usedGauge.Set(float64(s.usedMB))
	s.publish(EventEvict, sl.Name, map[string]any{"reason": reason, "priority": sl.Priority.String(), "used_mb": s.usedMB})
	s.log.Info().Str("slot", sl.Name).Str("reason", reason).Int("used_mb", s.usedMB).Msg("slot evicted")
	return nil
}

// EvictAll demotes every resident slot, optionally keeping critical ones.
// Workloads stay materialized so the next Acquire only has to promote them.
func (s *Scheduler) EvictAll(keepCritical bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, name := range s.order {
		sl := s.slots[name]
		if !sl.resident {
			continue
		}
		if keepCritical && sl.Priority == PriorityCritical {
			continue
		}
		if err := s.demote(sl, "evict_all"); err != nil {
			errs = append(errs, fmt.Errorf("evict %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// UnloadAll demotes every resident slot and drops all workloads, closing
// those that implement io.Closer.
func (s *Scheduler) UnloadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, name := range s.order {
		sl := s.slots[name]
		if sl.resident {
			if err := s.demote(sl, "unload"); err != nil {
				errs = append(errs, fmt.Errorf("evict %s: %w", name, err))
				continue
			}
		}
		if sl.workload == nil {
			continue
		}
		if c, ok := sl.workload.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
		sl.workload = nil
		s.publish(EventUnload, name, nil)
	}
	return errors.Join(errs...)
}
