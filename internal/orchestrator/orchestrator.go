package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/provider"
	"inferd/internal/scheduler"
	"inferd/pkg/types"
)

// core is shared by every session of one orchestrator and never mutated
// after Build.
type core struct {
	regs           map[provider.ID]*registration
	fallback       []provider.ID
	vision         []provider.ID
	primary        provider.ID
	visionFallback provider.VisionBackend
	attempter      Attempter
	slots          SlotManager
	historyPairs   int
	log            zerolog.Logger
}

// Orchestrator routes requests through the provider chain and owns one
// conversation history. Use Session for independent conversations.
type Orchestrator struct {
	*core
	history *History
}

// Candidate is one entry of a selected chain.
type Candidate struct {
	ID           provider.ID
	Backend      provider.Backend
	Capabilities provider.Capability
}

// Reply is a generated text with the provider that produced it.
type Reply struct {
	Content  string
	Provider provider.ID
}

// Session returns an orchestrator sharing every registration with o but
// using h as its history. A nil h starts a fresh one.
func (o *Orchestrator) Session(h *History) *Orchestrator {
	if h == nil {
		h = NewHistory(o.historyPairs)
	}
	return &Orchestrator{core: o.core, history: h}
}

// WithoutAttempter returns a view sharing registrations and history with o
// whose provider attempts bypass the attempter. Callers that retry the whole
// chain themselves use it so the two retry layers do not multiply.
func (o *Orchestrator) WithoutAttempter() *Orchestrator {
	c := *o.core
	c.attempter = nil
	return &Orchestrator{core: &c, history: o.history}
}

func (o *Orchestrator) History() *History { return o.history }

// ClearHistory empties this session's conversation history.
func (o *Orchestrator) ClearHistory() { o.history.Clear() }

// SelectChain returns the text chain: the primary first when registered, then
// the fallback order filtered to registered providers, without the primary
// and without excluded ids. No id appears twice.
func (o *Orchestrator) SelectChain(exclude ...provider.ID) ([]Candidate, error) {
	return o.chain(provider.CapText, exclude...)
}

func (o *Orchestrator) chain(need provider.Capability, exclude ...provider.ID) ([]Candidate, error) {
	skip := make(map[provider.ID]bool, len(exclude)+1)
	for _, id := range exclude {
		skip[id] = true
	}
	var out []Candidate
	add := func(id provider.ID) {
		r, ok := o.regs[id]
		if !ok || skip[id] || !r.caps.Has(need) {
			return
		}
		skip[id] = true
		out = append(out, Candidate{ID: id, Backend: r.backend, Capabilities: r.caps})
	}
	if o.primary != "" {
		add(o.primary)
	}
	for _, id := range o.fallback {
		add(id)
	}
	if len(out) == 0 {
		return nil, noProviderError{capability: need.String()}
	}
	return out, nil
}

// Generate returns the first successful reply of the chain. On success the
// (input, reply) pair is appended to the history exactly once.
func (o *Orchestrator) Generate(ctx context.Context, input, system string) (string, error) {
	r, err := o.Complete(ctx, input, system)
	return r.Content, err
}

// Complete is Generate that also reports which provider answered.
func (o *Orchestrator) Complete(ctx context.Context, input, system string) (Reply, error) {
	chain, err := o.SelectChain()
	if err != nil {
		return Reply{}, err
	}
	history := o.history.Snapshot()
	var failures []error
	for _, c := range chain {
		out, err := o.invoke(ctx, c.ID, input, false, func(ctx context.Context, in string) (string, error) {
			return c.Backend.Generate(ctx, provider.Request{Input: in, System: system, History: history})
		})
		if err != nil {
			failures = append(failures, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		o.history.Append(input, out)
		return Reply{Content: out, Provider: c.ID}, nil
	}
	o.log.Error().Int("tried", len(failures)).Msg("all providers failed")
	return Reply{}, exhaustedError{op: "generate", failures: failures}
}

// invoke runs one provider attempt: admission, slot acquisition, the call
// itself (through the attempter when set), and reply cleanup. Unless
// allowEmpty is set, an empty reply counts as a failure.
func (o *Orchestrator) invoke(ctx context.Context, id provider.ID, input string, allowEmpty bool, call func(context.Context, string) (string, error)) (string, error) {
	reg := o.regs[id]
	run := func(ctx context.Context, in string) (string, error) {
		release, err := reg.gate.enter(ctx)
		if err != nil {
			return "", provider.Wrap(id, err)
		}
		defer release()
		if reg.slot != "" {
			w, err := o.slots.Acquire(ctx, reg.slot)
			if err != nil {
				return "", provider.Wrap(id, err)
			}
			defer func() {
				if err := o.slots.Release(reg.slot); err != nil {
					o.log.Debug().Err(err).Str("slot", reg.slot).Msg("release")
				}
			}()
			ctx = scheduler.NewContext(ctx, w)
		}
		out, err := call(ctx, in)
		if err != nil {
			return "", provider.Wrap(id, err)
		}
		out = clean(out)
		if out == "" && !allowEmpty {
			return "", provider.Wrap(id, errEmptyReply)
		}
		return out, nil
	}

	start := time.Now()
	var (
		out string
		err error
	)
	if o.attempter != nil {
		out, err = o.attempter.Attempt(ctx, id, input, run)
	} else {
		out, err = run(ctx, input)
	}
	latencySeconds.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(string(id), "failure").Inc()
		o.log.Warn().Str("provider", string(id)).Str("kind", string(provider.KindOf(err))).Err(err).Msg("provider failed, trying next")
		return "", err
	}
	requestsTotal.WithLabelValues(string(id), "success").Inc()
	o.log.Debug().Str("provider", string(id)).Dur("took", time.Since(start)).Msg("provider answered")
	return out, nil
}

// Providers describes the text chain and the vision order.
func (o *Orchestrator) Providers() types.ProvidersResponse {
	resp := types.ProvidersResponse{Chain: []types.ProviderInfo{}, Vision: []string{}}
	chain, _ := o.SelectChain()
	for _, c := range chain {
		resp.Chain = append(resp.Chain, types.ProviderInfo{
			ID:           string(c.ID),
			Capabilities: c.Capabilities.Names(),
			Slot:         o.regs[c.ID].slot,
		})
	}
	for _, id := range o.vision {
		resp.Vision = append(resp.Vision, string(id))
	}
	return resp
}

// Len reports how many providers are registered.
func (o *Orchestrator) Len() int { return len(o.regs) }
