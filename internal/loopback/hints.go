package loopback

import (
	"fmt"
	"strings"

	"inferd/internal/provider"
)

const (
	hintRateLimit  = "HINT: rate limit reached. Simplify the request."
	hintTimeout    = "HINT: the call timed out. Use a faster approach."
	hintTool       = "HINT: tool not found. Use a different available tool or proceed without one."
	hintParse      = "HINT: parse error. Return plain text, not structured output."
	hintConnection = "HINT: service unavailable. Avoid external dependencies."
	hintPermission = "HINT: permission denied. Try a different resource."
)

// Hints returns the corrective hints for rec, one per line, plus an
// escalation line when the same failure keeps recurring.
func (h *Handler) Hints(rec *ErrorRecord) string {
	h.mu.Lock()
	similar := h.similarLocked(rec)
	h.mu.Unlock()
	return strings.Join(hintsFor(rec, similar, h.cfg.SimilarThreshold), "\n")
}

func hintsFor(rec *ErrorRecord, similar, threshold int) []string {
	msg := strings.ToLower(rec.Message)
	var hints []string
	if rec.Kind == provider.KindRateLimit || containsAny(msg, "429", "rate", "limit") {
		hints = append(hints, hintRateLimit)
	}
	if rec.Kind == provider.KindTimeout || strings.Contains(msg, "timeout") {
		hints = append(hints, hintTimeout)
	}
	if rec.Kind == provider.KindToolNotFound || (strings.Contains(msg, "tool") && containsAny(msg, "not found", "unknown")) {
		hints = append(hints, hintTool)
	}
	if rec.Kind == provider.KindParse || containsAny(msg, "json", "parse", "decode") {
		hints = append(hints, hintParse)
	}
	if rec.Kind == provider.KindConnection || containsAny(msg, "connection", "connect", "refused") {
		hints = append(hints, hintConnection)
	}
	if rec.Kind == provider.KindPermission || containsAny(msg, "permission", "denied", "forbidden") {
		hints = append(hints, hintPermission)
	}
	if similar >= threshold {
		hints = append(hints, fmt.Sprintf("ALERT: this kind of error happened %d times recently. Change your strategy completely.", similar))
	}
	return hints
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// correctivePrompt builds the input for the next attempt after rec.
func correctivePrompt(rec *ErrorRecord, hints []string, attempt, maxAttempts int, original string) string {
	var sb strings.Builder
	sb.WriteString("Your previous attempt failed with the following error:\n\n")
	fmt.Fprintf(&sb, "ERROR: %s: %s\n", rec.Kind, truncate(rec.Message, promptErrorLen))
	fmt.Fprintf(&sb, "PROVIDER: %s\n", rec.Provider)
	fmt.Fprintf(&sb, "ATTEMPT: %d/%d\n\n", attempt, maxAttempts)
	sb.WriteString("What you tried to do:\n")
	sb.WriteString(truncate(original, promptInputLen))
	sb.WriteString("\n\n")
	if len(hints) > 0 {
		sb.WriteString(strings.Join(hints, "\n"))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Try again, adjusting your approach to avoid the same error. ")
	sb.WriteString("If the error came from a tool, use a different tool or rephrase its parameters.")
	return sb.String()
}
