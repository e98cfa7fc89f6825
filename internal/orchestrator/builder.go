package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/provider"
	"inferd/internal/scheduler"
)

// Attempter runs one provider attempt. loopback.Handler implements it to add
// same-provider corrective retries before the chain moves on.
type Attempter interface {
	Attempt(ctx context.Context, id provider.ID, input string, call func(context.Context, string) (string, error)) (string, error)
}

// SlotManager is the part of the scheduler the orchestrator needs.
type SlotManager interface {
	Acquire(ctx context.Context, name string) (scheduler.Workload, error)
	Release(name string) error
}

type registration struct {
	id      provider.ID
	backend provider.Backend
	caps    provider.Capability
	slot    string
	gate    *gate

	maxInflight int
	maxWait     time.Duration
}

// RegisterOption customizes one registration.
type RegisterOption func(*registration)

// WithSlot marks the provider as resource managed: the named scheduler slot is
// acquired before every call and released after it.
func WithSlot(name string) RegisterOption {
	return func(r *registration) { r.slot = name }
}

// WithAdmission bounds concurrent calls to the provider. Callers wait up to
// maxWait for a free slot before the attempt fails as a rate limit.
func WithAdmission(maxInflight int, maxWait time.Duration) RegisterOption {
	return func(r *registration) {
		r.maxInflight = maxInflight
		r.maxWait = maxWait
	}
}

// Builder collects registrations and chain configuration. It is not safe for
// concurrent use; build once at startup.
type Builder struct {
	regs           map[provider.ID]*registration
	order          []provider.ID
	fallback       []provider.ID
	vision         []provider.ID
	primary        provider.ID
	visionFallback provider.VisionBackend
	historyPairs   int
	attempter      Attempter
	slots          SlotManager
	log            *zerolog.Logger
	errs           []error
}

func NewBuilder() *Builder {
	return &Builder{regs: make(map[provider.ID]*registration)}
}

// Register adds a provider with the capabilities it should be used for. caps
// must be a subset of what the backend implements; zero means all of them.
func (b *Builder) Register(id provider.ID, backend provider.Backend, caps provider.Capability, opts ...RegisterOption) *Builder {
	switch {
	case strings.TrimSpace(string(id)) == "":
		b.errs = append(b.errs, errors.New("register: empty provider id"))
		return b
	case backend == nil:
		b.errs = append(b.errs, fmt.Errorf("register %s: nil backend", id))
		return b
	}
	if _, ok := b.regs[id]; ok {
		b.errs = append(b.errs, fmt.Errorf("register %s: duplicate provider", id))
		return b
	}
	supported := provider.Supported(backend)
	if caps == 0 {
		caps = supported
	}
	if !supported.Has(caps) {
		b.errs = append(b.errs, fmt.Errorf("register %s: backend supports %s, not %s", id, supported, caps))
		return b
	}
	r := &registration{id: id, backend: backend, caps: caps}
	for _, o := range opts {
		o(r)
	}
	r.gate = newGate(id, r.maxInflight, r.maxWait)
	b.regs[id] = r
	b.order = append(b.order, id)
	return b
}

// FallbackOrder sets the static chain order. Unregistered ids are skipped at
// selection time. Defaults to registration order.
func (b *Builder) FallbackOrder(ids ...provider.ID) *Builder {
	b.fallback = append([]provider.ID(nil), ids...)
	return b
}

// VisionOrder sets the order used by GenerateWithImage. Defaults to the
// vision-capable providers in registration order.
func (b *Builder) VisionOrder(ids ...provider.ID) *Builder {
	b.vision = append([]provider.ID(nil), ids...)
	return b
}

func (b *Builder) Primary(id provider.ID) *Builder {
	b.primary = id
	return b
}

// VisionFallback sets the local last-resort backend for image prompts. It is
// called directly, outside the chain and the attempter.
func (b *Builder) VisionFallback(v provider.VisionBackend) *Builder {
	b.visionFallback = v
	return b
}

// HistorySize sets how many exchanges the default session keeps.
func (b *Builder) HistorySize(pairs int) *Builder {
	b.historyPairs = pairs
	return b
}

func (b *Builder) Attempter(a Attempter) *Builder {
	b.attempter = a
	return b
}

func (b *Builder) Scheduler(s SlotManager) *Builder {
	b.slots = s
	return b
}

func (b *Builder) Logger(l *zerolog.Logger) *Builder {
	b.log = l
	return b
}

// Build validates the configuration and returns the orchestrator.
func (b *Builder) Build() (*Orchestrator, error) {
	errs := append([]error(nil), b.errs...)
	if err := checkDuplicates("fallback order", b.fallback); err != nil {
		errs = append(errs, err)
	}
	if err := checkDuplicates("vision order", b.vision); err != nil {
		errs = append(errs, err)
	}
	for _, id := range b.order {
		if r := b.regs[id]; r.slot != "" && b.slots == nil {
			errs = append(errs, fmt.Errorf("provider %s uses slot %q but no scheduler is set", id, r.slot))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &core{
		regs:           b.regs,
		primary:        b.primary,
		visionFallback: b.visionFallback,
		attempter:      b.attempter,
		slots:          b.slots,
		historyPairs:   b.historyPairs,
		log:            zerolog.Nop(),
	}
	if b.log != nil {
		c.log = b.log.With().Str("component", "orchestrator").Logger()
	}
	c.fallback = b.fallback
	if c.fallback == nil {
		c.fallback = append([]provider.ID(nil), b.order...)
	}
	vision := b.vision
	if vision == nil {
		vision = b.order
	}
	for _, id := range vision {
		if r, ok := b.regs[id]; ok && r.caps.Has(provider.CapVision) {
			c.vision = append(c.vision, id)
		}
	}
	return &Orchestrator{core: c, history: NewHistory(b.historyPairs)}, nil
}

func checkDuplicates(what string, ids []provider.ID) error {
	seen := make(map[provider.ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%s: duplicate provider %s", what, id)
		}
		seen[id] = true
	}
	return nil
}
