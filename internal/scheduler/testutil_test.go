package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeWorkload records transitions and can be told to fail them.
type fakeWorkload struct {
	mu          sync.Mutex
	name        string
	promotions  int
	demotions   int
	closed      bool
	residentErr error
	demoteErr   error
}

func (w *fakeWorkload) ToResident() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.residentErr != nil {
		return w.residentErr
	}
	w.promotions++
	return nil
}

func (w *fakeWorkload) ToMaterialized() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.demoteErr != nil {
		return w.demoteErr
	}
	w.demotions++
	return nil
}

func (w *fakeWorkload) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

// countingLoader returns a loader that hands out w and counts invocations.
func countingLoader(w *fakeWorkload, calls *int) Loader {
	return func() (Workload, error) {
		*calls++
		return w, nil
	}
}

func staticLoader(w *fakeWorkload) Loader {
	return func() (Workload, error) { return w, nil }
}

func failingLoader(msg string) Loader {
	return func() (Workload, error) { return nil, errors.New(msg) }
}

// fakeClock is a manually advanced clock safe for concurrent use.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestScheduler builds a scheduler on a fake clock with an in-memory publisher.
func newTestScheduler(t *testing.T, budgetMB int) (*Scheduler, *fakeClock, *MemoryPublisher) {
	t.Helper()
	clk := newFakeClock()
	pub := NewMemoryPublisher()
	s := New(Config{BudgetMB: budgetMB, Publisher: pub, Now: clk.Now})
	t.Cleanup(s.Stop)
	return s, clk, pub
}

func mustRegister(t *testing.T, s *Scheduler, name string, size int, p Priority) *fakeWorkload {
	t.Helper()
	w := &fakeWorkload{name: name}
	if err := s.Register(Slot{Name: name, SizeMB: size, Priority: p, Loader: staticLoader(w)}); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return w
}

func mustAcquire(t *testing.T, s *Scheduler, name string) {
	t.Helper()
	if _, err := s.Acquire(context.Background(), name); err != nil {
		t.Fatalf("acquire %s: %v", name, err)
	}
}

func mustState(t *testing.T, s *Scheduler, name string, want SlotState) {
	t.Helper()
	got, err := s.State(name)
	if err != nil {
		t.Fatalf("state %s: %v", name, err)
	}
	if got != want {
		t.Fatalf("slot %s state=%s want %s", name, got, want)
	}
}

// residentSum recomputes the budget usage from slot states.
func residentSum(s *Scheduler) int {
	st := s.Status()
	sum := 0
	for _, sl := range st.Slots {
		if sl.State == string(StateResident) {
			sum += sl.SizeMB
		}
	}
	return sum
}
