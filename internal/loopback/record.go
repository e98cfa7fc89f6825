package loopback

import (
	"fmt"
	"time"

	"inferd/internal/provider"
)

const (
	maxMessageLen  = 500
	maxSnippetLen  = 200
	promptErrorLen = 300
	promptInputLen = 500
)

// ErrorRecord describes one failed attempt. Records are never modified after
// creation; resolution is tracked by the Handler.
type ErrorRecord struct {
	Kind         provider.Kind
	Message      string
	Provider     string
	InputSnippet string
	Attempt      int
	Timestamp    time.Time

	cause error
}

func (r *ErrorRecord) Error() string {
	return fmt.Sprintf("%s failed on attempt %d: %s: %s", r.Provider, r.Attempt, r.Kind, r.Message)
}

// Unwrap exposes the original failure so callers can still errors.As into it.
func (r *ErrorRecord) Unwrap() error { return r.cause }

// Summary is a short single-line description.
func (r *ErrorRecord) Summary() string {
	return fmt.Sprintf("[%s] %s (provider=%s, attempt=%d)", r.Kind, truncate(r.Message, 100), r.Provider, r.Attempt)
}

func newRecord(err error, providerID, input string, attempt int, now time.Time) *ErrorRecord {
	return &ErrorRecord{
		Kind:         provider.KindOf(err),
		Message:      truncate(err.Error(), maxMessageLen),
		Provider:     providerID,
		InputSnippet: truncate(input, maxSnippetLen),
		Attempt:      attempt,
		Timestamp:    now,
		cause:        err,
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
