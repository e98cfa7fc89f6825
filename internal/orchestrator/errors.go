package orchestrator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoProviderAvailable is returned when no registered provider can serve the
// requested capability.
var ErrNoProviderAvailable = errors.New("no provider available")

// ErrAllProvidersExhausted is returned when every candidate of the chain failed.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

var errEmptyReply = errors.New("empty response")

type noProviderError struct{ capability string }

func (e noProviderError) Error() string {
	return "no provider available for " + e.capability
}

func (e noProviderError) Unwrap() error { return ErrNoProviderAvailable }

func (e noProviderError) StatusCode() int { return http.StatusServiceUnavailable }

// exhaustedError keeps every per-provider failure in chain order.
type exhaustedError struct {
	op       string
	failures []error
}

func (e exhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: all providers exhausted (%d tried)", e.op, len(e.failures))
	if n := len(e.failures); n > 0 {
		b.WriteString(": last error: ")
		b.WriteString(e.failures[n-1].Error())
	}
	return b.String()
}

func (e exhaustedError) Is(target error) bool { return target == ErrAllProvidersExhausted }

func (e exhaustedError) Unwrap() []error { return e.failures }

func (e exhaustedError) StatusCode() int { return http.StatusServiceUnavailable }

// IsExhausted reports whether err means the whole chain failed.
func IsExhausted(err error) bool { return errors.Is(err, ErrAllProvidersExhausted) }

// IsNoProvider reports whether err means nothing could serve the request.
func IsNoProvider(err error) bool { return errors.Is(err, ErrNoProviderAvailable) }
