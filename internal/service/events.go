package service

import (
	"github.com/rs/zerolog"

	"inferd/internal/scheduler"
)

// logPublisher writes scheduler events as debug log lines.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e scheduler.Event) {
	ev := p.log.Debug()
	if !ev.Enabled() {
		return
	}
	ev.Str("event", e.Name).Str("slot", e.Slot).Fields(e.Fields).Msg("scheduler event")
}
