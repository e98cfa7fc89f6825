package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	zl "github.com/rs/zerolog/log"
)

// zlog is the structured logger of the HTTP layer. If unset, the zerolog
// global logger is used.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &zl.Logger
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("INFERD_LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog carries the per-request log decision through a handler.
type reqLog struct {
	lvl   LogLevel
	r     *http.Request
	op    string
	start time.Time
}

func startLog(r *http.Request, op string) reqLog {
	rl := reqLog{lvl: requestLogLevel(r), r: r, op: op, start: time.Now()}
	if rl.lvl >= LevelInfo {
		rl.event(logger().Info()).Msg(op + " start")
	}
	return rl
}

func (rl reqLog) event(e *zerolog.Event) *zerolog.Event {
	e = e.Str("path", rl.r.URL.Path)
	if rid := middleware.GetReqID(rl.r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	return e
}

// debug logs request payload details when the request asked for debug.
func (rl reqLog) debug(key, val string) {
	if rl.lvl >= LevelDebug {
		rl.event(logger().Debug()).Str(key, val).Msg(rl.op)
	}
}

func (rl reqLog) end(status int, err error) {
	switch {
	case err != nil && rl.lvl >= LevelError:
		rl.event(logger().Error()).Int("status", status).Dur("dur", time.Since(rl.start)).Err(err).Msg(rl.op + " end")
	case err == nil && rl.lvl >= LevelInfo:
		rl.event(logger().Info()).Int("status", status).Dur("dur", time.Since(rl.start)).Msg(rl.op + " end")
	}
}
