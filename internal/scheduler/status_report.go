package scheduler

import "inferd/pkg/types"

// Status builds a detailed scheduler view for /status. Slots are reported in
// registration order.
func (s *Scheduler) Status() types.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := types.SchedulerStatus{
		BudgetMB:        s.budgetMB,
		MarginMB:        s.marginMB,
		UsedMB:          s.usedMB,
		EvictionsTotal:  s.evictions,
		LoadsTotal:      s.loads,
		PromotionsTotal: s.promotions,
	}
	resp.Slots = make([]types.SlotStatus, 0, len(s.order))
	for _, name := range s.order {
		sl := s.slots[name]
		var last int64
		if !sl.lastUsed.IsZero() {
			last = sl.lastUsed.Unix()
		}
		resp.Slots = append(resp.Slots, types.SlotStatus{
			Name:     sl.Name,
			State:    string(sl.state()),
			Priority: sl.Priority.String(),
			SizeMB:   sl.SizeMB,
			LastUsed: last,
			UseCount: sl.useCount,
		})
	}
	return resp
}

// UsedMB returns the summed size of resident slots.
func (s *Scheduler) UsedMB() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedMB
}

// State returns the state of one slot.
func (s *Scheduler) State(name string) (SlotState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[name]
	if !ok {
		return "", slotNotFoundError{name: name}
	}
	return sl.state(), nil
}
