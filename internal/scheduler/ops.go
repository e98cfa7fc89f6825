package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// defaultOpsLimit bounds how many warm-up operations are remembered. Finished
// ones are forgotten oldest first; pending ones are always kept.
const defaultOpsLimit = 256

// Operation tracks an asynchronous warm-up.
type Operation struct {
	ID       string
	Slot     string
	Done     bool
	Err      string
	Started  time.Time
	Finished time.Time
}

// Warm kicks off an async Acquire+Release of the named slot and returns an
// operation ID. Callers can poll Op or Status to observe the result.
func (s *Scheduler) Warm(name string) string {
	op := &Operation{ID: uuid.NewString(), Slot: name, Started: s.now()}
	s.opsMu.Lock()
	s.ops[op.ID] = op
	s.opsOrder = append(s.opsOrder, op.ID)
	s.pruneOps()
	s.opsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Detached from any request context; Stop waits for it.
		_, err := s.Acquire(context.Background(), name)
		if err == nil {
			err = s.Release(name)
		}
		s.opsMu.Lock()
		op.Done = true
		op.Finished = s.now()
		if err != nil {
			op.Err = err.Error()
		}
		s.opsMu.Unlock()
		if err != nil {
			s.log.Warn().Err(err).Str("slot", name).Str("op", op.ID).Msg("warm failed")
		}
	}()
	return op.ID
}

// Op returns a copy of the operation with the given ID.
func (s *Scheduler) Op(id string) (Operation, bool) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// pruneOps drops the oldest finished operations beyond opsLimit. Caller must
// hold s.opsMu.
func (s *Scheduler) pruneOps() {
	excess := len(s.ops) - s.opsLimit
	if excess <= 0 {
		return
	}
	kept := s.opsOrder[:0]
	for _, id := range s.opsOrder {
		if excess > 0 && s.ops[id].Done {
			delete(s.ops, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.opsOrder = kept
}
