package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartIdleSweeper schedules a job (standard 5-field cron spec or a
// descriptor such as "@every 1m") that evicts every non-critical resident
// slot once no Acquire happened for idleAfter. Usage state is saved on each
// run. Call Stop to end the sweeper.
func (s *Scheduler) StartIdleSweeper(spec string, idleAfter time.Duration) error {
	if idleAfter <= 0 {
		return fmt.Errorf("idle sweeper: idleAfter must be positive")
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.sweepIdle(idleAfter) }); err != nil {
		return fmt.Errorf("idle sweeper: %w", err)
	}
	s.opsMu.Lock()
	if s.cron != nil {
		s.opsMu.Unlock()
		return fmt.Errorf("idle sweeper already running")
	}
	s.cron = c
	s.opsMu.Unlock()
	c.Start()
	s.log.Info().Str("spec", spec).Dur("idle_after", idleAfter).Msg("idle sweeper started")
	return nil
}

// sweepIdle reports whether it evicted anything.
func (s *Scheduler) sweepIdle(idleAfter time.Duration) bool {
	s.mu.Lock()
	idle := s.now().Sub(s.lastAcquire) >= idleAfter
	used := s.usedMB
	s.mu.Unlock()
	if !idle || used == 0 {
		return false
	}
	if err := s.EvictAll(true); err != nil {
		s.log.Warn().Err(err).Msg("idle eviction incomplete")
	}
	if err := s.Save(); err != nil {
		s.log.Warn().Err(err).Msg("save usage state")
	}
	return true
}

// Stop ends the idle sweeper and waits for background operations.
func (s *Scheduler) Stop() {
	s.opsMu.Lock()
	c := s.cron
	s.cron = nil
	s.opsMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}
