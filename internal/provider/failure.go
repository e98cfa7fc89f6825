package provider

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindRateLimit    Kind = "rate_limit"
	KindTimeout      Kind = "timeout"
	KindConnection   Kind = "connection"
	KindPermission   Kind = "permission"
	KindParse        Kind = "parse"
	KindToolNotFound Kind = "tool_not_found"
	KindUnknown      Kind = "unknown"
)

// BackendFailure is the typed error every backend call failure is reported as.
type BackendFailure struct {
	Provider ID
	Kind     Kind
	Err      error
}

func (f *BackendFailure) Error() string {
	return string(f.Provider) + ": " + string(f.Kind) + ": " + f.Err.Error()
}

func (f *BackendFailure) Unwrap() error { return f.Err }

// Wrap turns err into a *BackendFailure for provider id. A nil err stays nil
// and an existing BackendFailure is returned unchanged.
func Wrap(id ID, err error) error {
	if err == nil {
		return nil
	}
	var bf *BackendFailure
	if errors.As(err, &bf) {
		return err
	}
	return &BackendFailure{Provider: id, Kind: KindOf(err), Err: err}
}

// KindOf classifies err: typed failures keep their kind, deadline and net
// timeouts map to timeout, everything else goes through Classify.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var bf *BackendFailure
	if errors.As(err, &bf) {
		return bf.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return KindConnection
	}
	return Classify(err.Error())
}

// Classify determines the failure kind from an error message.
// Returns KindUnknown if the message doesn't match any known pattern.
func Classify(msg string) Kind {
	if msg == "" {
		return KindUnknown
	}
	lower := strings.ToLower(msg)
	// Check in order of specificity
	switch {
	case isRateLimit(lower):
		return KindRateLimit
	case isTimeout(lower):
		return KindTimeout
	case isToolNotFound(lower):
		return KindToolNotFound
	case isPermission(lower):
		return KindPermission
	case isConnection(lower):
		return KindConnection
	case isParse(lower):
		return KindParse
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isRateLimit(lower string) bool {
	return containsAny(lower,
		"429",
		"rate_limit",
		"rate limit",
		"too many requests",
		"quota exceeded",
		"exceeded your current quota",
		"resource_exhausted",
		"resource has been exhausted",
		"requests per minute",
	)
}

func isTimeout(lower string) bool {
	return containsAny(lower, "timeout", "timed out", "deadline exceeded")
}

func isToolNotFound(lower string) bool {
	return strings.Contains(lower, "tool") && containsAny(lower, "not found", "unknown")
}

func isPermission(lower string) bool {
	return containsAny(lower,
		"401",
		"403",
		"permission",
		"denied",
		"forbidden",
		"unauthorized",
		"invalid api key",
		"invalid_api_key",
	)
}

func isConnection(lower string) bool {
	return containsAny(lower,
		"connection",
		"connect",
		"refused",
		"no such host",
		"eof",
		"unreachable",
		"502",
		"503",
		"bad gateway",
		"service unavailable",
	)
}

func isParse(lower string) bool {
	return containsAny(lower, "json", "parse", "decode", "unmarshal", "invalid character")
}
