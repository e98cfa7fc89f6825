package orchestrator

import (
	"context"
	"fmt"
	"time"

	"inferd/internal/provider"
)

// gate bounds concurrent calls to one provider. A nil gate admits everything.
type gate struct {
	id      provider.ID
	slots   chan struct{}
	maxWait time.Duration
}

func newGate(id provider.ID, maxInflight int, maxWait time.Duration) *gate {
	if maxInflight <= 0 {
		return nil
	}
	return &gate{id: id, slots: make(chan struct{}, maxInflight), maxWait: maxWait}
}

// tooBusyError signals a saturated gate; the chain treats it as a rate limit.
type tooBusyError struct {
	id       provider.ID
	inflight int
}

func (e tooBusyError) Error() string {
	return fmt.Sprintf("too busy: %s has %d calls in flight", e.id, e.inflight)
}

// enter reserves an in-flight slot, waiting at most maxWait. The returned
// release func must be called exactly once when err is nil.
func (g *gate) enter(ctx context.Context) (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := func() { <-g.slots }
	if g.maxWait <= 0 {
		select {
		case g.slots <- struct{}{}:
			return release, nil
		default:
			return nil, g.busy()
		}
	}
	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, g.busy()
	}
}

func (g *gate) busy() error {
	return &provider.BackendFailure{
		Provider: g.id,
		Kind:     provider.KindRateLimit,
		Err:      tooBusyError{id: g.id, inflight: cap(g.slots)},
	}
}
