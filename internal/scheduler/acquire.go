package scheduler

import (
	"context"
	"fmt"
)

// Acquire makes the named slot resident and returns its workload.
//
// The slot is materialized on first use, then promoted after evicting lower
// priority and least recently used residents until it fits. A slot that is
// already resident is returned as is with refreshed usage. The whole decision
// runs under the scheduler lock, so concurrent callers never overshoot the
// budget.
func (s *Scheduler) Acquire(ctx context.Context, name string) (Workload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[name]
	if !ok {
		return nil, slotNotFoundError{name: name}
	}
	now := s.now()
	s.lastAcquire = now

	if sl.workload == nil {
		w, err := sl.Loader()
		if err != nil {
			return nil, fmt.Errorf("materialize %s: %w", name, err)
		}
		if w == nil {
			return nil, fmt.Errorf("materialize %s: loader returned nil workload", name)
		}
		sl.workload = w
		s.loads++
		loadsTotal.Inc()
		s.publish(EventMaterialize, name, nil)
		s.log.Debug().Str("slot", name).Msg("materialized")
	}

	if sl.resident {
		sl.lastUsed = now
		sl.useCount++
		s.publish(EventAcquire, name, map[string]any{"resident": true})
		return sl.workload, nil
	}

	if !s.unlimited() {
		capacity := s.capacity()
		if sl.SizeMB > capacity {
			return nil, s.exhausted(sl, capacity)
		}
		for capacity-s.usedMB < sl.SizeMB {
			victim := s.pickEviction(name)
			if victim == nil {
				return nil, s.exhausted(sl, capacity)
			}
			if err := s.demote(victim, "pressure"); err != nil {
				return nil, fmt.Errorf("evict %s for %s: %w", victim.Name, name, err)
			}
		}
	}

	if err := sl.workload.ToResident(); err != nil {
		return nil, fmt.Errorf("promote %s: %w", name, err)
	}
	sl.resident = true
	s.usedMB += sl.SizeMB
	s.promotions++
	sl.lastUsed = now
	sl.useCount++
	usedGauge.Set(float64(s.usedMB))
	s.publish(EventPromote, name, map[string]any{"size_mb": sl.SizeMB, "used_mb": s.usedMB})
	s.log.Info().Str("slot", name).Int("size_mb", sl.SizeMB).Int("used_mb", s.usedMB).Msg("slot resident")
	return sl.workload, nil
}

func (s *Scheduler) exhausted(sl *slot, capacity int) error {
	exhaustedTotal.Inc()
	s.publish(EventExhausted, sl.Name, map[string]any{"size_mb": sl.SizeMB, "used_mb": s.usedMB})
	s.log.Warn().Str("slot", sl.Name).Int("size_mb", sl.SizeMB).Int("used_mb", s.usedMB).Int("capacity_mb", capacity).Msg("budget exhausted")
	return exhaustedError{slot: sl.Name, needMB: sl.SizeMB, freeMB: capacity - s.usedMB, capacityMB: capacity}
}

// Release marks the slot as recently used. It never evicts; eviction only
// happens under pressure from a later Acquire or through EvictAll.
func (s *Scheduler) Release(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[name]
	if !ok {
		return slotNotFoundError{name: name}
	}
	sl.lastUsed = s.now()
	return nil
}

// SetPriority changes the eviction priority of a registered slot.
func (s *Scheduler) SetPriority(name string, p Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[name]
	if !ok {
		return slotNotFoundError{name: name}
	}
	sl.Priority = p
	return nil
}
