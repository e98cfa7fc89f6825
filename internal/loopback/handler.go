// Package loopback retries failed model calls with the failure folded back
// into the next input, and keeps a short history of failures for hints,
// escalation and health reporting.
package loopback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/provider"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxRetriesPerProvider = 1
	defaultMaxTotalRetries       = 3
	defaultHistorySize           = 50
	defaultSimilarWindow         = 5 * time.Minute
	defaultSimilarThreshold      = 3
	defaultDegradedAfter         = 5
)

// Config tunes a Handler. Zero values select the defaults.
type Config struct {
	// MaxRetriesPerProvider is the number of corrective retries per provider
	// in ExecuteWithFallback and Attempt, on top of the first try.
	MaxRetriesPerProvider int
	// MaxTotalRetries caps the attempts made by Execute.
	MaxTotalRetries  int
	HistorySize      int
	SimilarWindow    time.Duration
	SimilarThreshold int
	DegradedAfter    int
	Logger           *zerolog.Logger
	Now              func() time.Time
}

// Call is one model invocation.
type Call func(ctx context.Context, input string) (string, error)

type entry struct {
	rec      *ErrorRecord
	resolved bool
}

// Handler is safe for concurrent use.
type Handler struct {
	cfg Config
	log zerolog.Logger

	mu          sync.Mutex
	history     []entry
	consecutive int
}

func New(cfg Config) *Handler {
	if cfg.MaxRetriesPerProvider <= 0 {
		cfg.MaxRetriesPerProvider = defaultMaxRetriesPerProvider
	}
	if cfg.MaxTotalRetries <= 0 {
		cfg.MaxTotalRetries = defaultMaxTotalRetries
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.SimilarWindow <= 0 {
		cfg.SimilarWindow = defaultSimilarWindow
	}
	if cfg.SimilarThreshold <= 0 {
		cfg.SimilarThreshold = defaultSimilarThreshold
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = defaultDegradedAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &Handler{cfg: cfg, history: make([]entry, 0, cfg.HistorySize)}
	if cfg.Logger != nil {
		h.log = cfg.Logger.With().Str("component", "loopback").Logger()
	} else {
		h.log = zerolog.Nop()
	}
	return h
}

// Execute runs call with corrective retries, up to MaxTotalRetries attempts.
// It returns the result and nil on success, or "" and the last ErrorRecord
// once every attempt failed.
func (h *Handler) Execute(ctx context.Context, call Call, input, providerID string) (string, *ErrorRecord) {
	return h.execute(ctx, call, input, providerID, h.cfg.MaxTotalRetries)
}

func (h *Handler) execute(ctx context.Context, call Call, input, providerID string, maxAttempts int) (string, *ErrorRecord) {
	var last *ErrorRecord
	next := input
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if last != nil {
			hints := hintsFor(last, h.similar(last), h.cfg.SimilarThreshold)
			next = correctivePrompt(last, hints, attempt, maxAttempts, input)
		}
		out, err := call(ctx, next)
		if err == nil {
			h.succeed(last, providerID, attempt)
			return out, nil
		}
		last = newRecord(err, providerID, input, attempt, h.cfg.Now())
		h.fail(last, maxAttempts)
		if ctx.Err() != nil {
			break
		}
	}
	return "", last
}

func (h *Handler) succeed(prior *ErrorRecord, providerID string, attempt int) {
	h.mu.Lock()
	if prior != nil {
		for i := len(h.history) - 1; i >= 0; i-- {
			if h.history[i].rec == prior {
				h.history[i].resolved = true
				break
			}
		}
	}
	h.consecutive = 0
	h.mu.Unlock()
	attemptsTotal.WithLabelValues("success").Inc()
	degradedGauge.Set(0)
	if prior != nil {
		h.log.Info().Str("provider", providerID).Int("attempt", attempt).Msg("recovered after corrective retry")
	}
}

func (h *Handler) fail(rec *ErrorRecord, maxAttempts int) {
	h.mu.Lock()
	if len(h.history) == h.cfg.HistorySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:len(h.history)-1]
	}
	h.history = append(h.history, entry{rec: rec})
	h.consecutive++
	degraded := h.consecutive >= h.cfg.DegradedAfter
	h.mu.Unlock()
	attemptsTotal.WithLabelValues("failure").Inc()
	if degraded {
		degradedGauge.Set(1)
	}
	h.log.Warn().
		Str("provider", rec.Provider).
		Str("kind", string(rec.Kind)).
		Int("attempt", rec.Attempt).
		Int("max_attempts", maxAttempts).
		Msg(truncate(rec.Message, 80))
}

// similar counts records with the same kind and provider inside the window.
func (h *Handler) similar(rec *ErrorRecord) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.similarLocked(rec)
}

func (h *Handler) similarLocked(rec *ErrorRecord) int {
	cutoff := h.cfg.Now().Add(-h.cfg.SimilarWindow)
	n := 0
	for _, e := range h.history {
		if e.rec.Kind == rec.Kind && e.rec.Provider == rec.Provider && e.rec.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

// Attempt is one target of ExecuteWithFallback.
type Attempt struct {
	ProviderID string
	Call       Call
	Input      string
}

// ExecuteWithFallback tries each target in order with its own retry budget
// of MaxRetriesPerProvider+1 attempts and returns the first non-empty result
// with the provider that produced it, or ("", "") when all are exhausted.
func (h *Handler) ExecuteWithFallback(ctx context.Context, targets []Attempt) (string, string) {
	for _, t := range targets {
		out, rec := h.execute(ctx, t.Call, t.Input, t.ProviderID, h.cfg.MaxRetriesPerProvider+1)
		if out != "" {
			return out, t.ProviderID
		}
		if rec != nil {
			h.log.Info().Str("provider", t.ProviderID).Msg("provider exhausted, trying next")
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", ""
}

// Attempt runs call for one provider inside an orchestrator chain: the
// provider gets MaxRetriesPerProvider corrective retries before the chain
// moves on. The returned error is the last *ErrorRecord.
func (h *Handler) Attempt(ctx context.Context, id provider.ID, input string, call func(context.Context, string) (string, error)) (string, error) {
	out, rec := h.execute(ctx, call, input, string(id), h.cfg.MaxRetriesPerProvider+1)
	if rec != nil {
		return "", rec
	}
	return out, nil
}
