package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Priority orders slots for eviction; lower priorities go first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts low, normal and critical (case-insensitive). Empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "critical":
		return PriorityCritical, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// Workload is something that can be moved onto the constrained device and
// back. ToMaterialized must leave the workload reusable by a later ToResident.
// Workloads that also implement io.Closer are closed by UnloadAll.
type Workload interface {
	ToResident() error
	ToMaterialized() error
}

// Loader materializes a workload. The scheduler calls it at most once per
// slot until UnloadAll drops the workload.
type Loader func() (Workload, error)

// Slot is the registration record for one managed workload.
type Slot struct {
	Name     string
	SizeMB   int
	Priority Priority
	Loader   Loader
}

// SlotState is the externally visible state of a slot.
type SlotState string

const (
	StateUnloaded     SlotState = "unloaded"
	StateMaterialized SlotState = "materialized"
	StateResident     SlotState = "resident"
)

// slot holds runtime fields; every field is guarded by Scheduler.mu.
type slot struct {
	Slot
	workload Workload
	resident bool
	lastUsed time.Time
	useCount int
}

func (s *slot) state() SlotState {
	switch {
	case s.resident:
		return StateResident
	case s.workload != nil:
		return StateMaterialized
	default:
		return StateUnloaded
	}
}

// Config encapsulates all tunables for Scheduler construction.
type Config struct {
	// BudgetMB is the device budget. Zero or negative disables eviction.
	BudgetMB int
	// MarginMB is kept free at all times.
	MarginMB int
	// StatePath, when set, persists LRU usage across restarts.
	StatePath string
	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Scheduler struct {
	mu       sync.Mutex
	slots    map[string]*slot
	order    []string
	budgetMB int
	marginMB int
	usedMB   int

	lastAcquire time.Time
	evictions   uint64
	loads       uint64
	promotions  uint64

	pub       EventPublisher
	log       zerolog.Logger
	now       func() time.Time
	statePath string
	saved     map[string]usageRecord

	opsMu    sync.Mutex
	ops      map[string]*Operation
	opsOrder []string
	opsLimit int
	wg    sync.WaitGroup
	cron  *cron.Cron
}

// New constructs a Scheduler from Config.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		slots:     make(map[string]*slot),
		budgetMB:  cfg.BudgetMB,
		marginMB:  cfg.MarginMB,
		pub:       cfg.Publisher,
		now:       cfg.Now,
		statePath: cfg.StatePath,
		ops:       make(map[string]*Operation),
		opsLimit:  defaultOpsLimit,
	}
	if s.pub == nil {
		s.pub = noopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger.With().Str("component", "scheduler").Logger()
	} else {
		s.log = zerolog.Nop()
	}
	if s.marginMB < 0 {
		s.marginMB = 0
	}
	s.lastAcquire = s.now()
	s.loadUsage()
	budgetGauge.Set(float64(s.capacity()))
	return s
}

// Register adds a slot. Names must be unique and sizes positive.
func (s *Scheduler) Register(sl Slot) error {
	if strings.TrimSpace(sl.Name) == "" {
		return fmt.Errorf("register: empty slot name")
	}
	if sl.SizeMB <= 0 {
		return fmt.Errorf("register %s: size must be positive, got %d", sl.Name, sl.SizeMB)
	}
	if sl.Loader == nil {
		return fmt.Errorf("register %s: nil loader", sl.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[sl.Name]; ok {
		return fmt.Errorf("register %s: duplicate slot", sl.Name)
	}
	rt := &slot{Slot: sl}
	if rec, ok := s.saved[sl.Name]; ok {
		rt.lastUsed = time.Unix(rec.LastUsedUnix, 0)
		rt.useCount = rec.UseCount
	}
	s.slots[sl.Name] = rt
	s.order = append(s.order, sl.Name)
	s.log.Debug().Str("slot", sl.Name).Int("size_mb", sl.SizeMB).Stringer("priority", sl.Priority).Msg("slot registered")
	return nil
}

// Names returns registered slot names in registration order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// capacity is the usable budget after the margin. A non-positive budget means unlimited.
func (s *Scheduler) capacity() int {
	if s.budgetMB <= 0 {
		return 0
	}
	c := s.budgetMB - s.marginMB
	if c < 0 {
		return 0
	}
	return c
}

func (s *Scheduler) unlimited() bool { return s.budgetMB <= 0 }

func (s *Scheduler) publish(name, slotName string, fields map[string]any) {
	s.pub.Publish(Event{Name: name, Slot: slotName, Fields: fields})
}
