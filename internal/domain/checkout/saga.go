package checkout

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// State names the phases of one checkout run, in commit order. A run advances
// strictly forward through these values; any critical failure moves it to
// StateFailing, from which the compensation stack unwinds into StateFailed.
type State string

const (
	StateValidating    State = "validating"
	StateReserving     State = "reserving"
	StateOrderCreated  State = "order_created"
	StateLinesCreated  State = "lines_created"
	StateJobsAttempted State = "jobs_attempted"
	StateCartCleared   State = "cart_cleared"
	StateCompleted     State = "completed"
	StateFailing       State = "failing"
	StateFailed        State = "failed"
)

// undoFunc semantically reverses a previously committed step.
type undoFunc func(ctx context.Context) error

// compensation is one committed action on the stack, named for logging and
// for the failure report when the undo itself errors.
type compensation struct {
	name string
	undo undoFunc
}

// saga tracks the state of a single checkout run and the stack of committed
// actions that must be undone if a later critical step fails. It is built
// fresh for every run and never persisted — compensation is derived from the
// stack, not re-derived from control flow.
type saga struct {
	state State
	stack []compensation
}

func newSaga() *saga {
	return &saga{state: StateValidating}
}

// advance moves the saga forward to the next state.
func (s *saga) advance(next State) {
	s.state = next
}

// committed records an action that later failures must undo. Actions are
// pushed in commit order and popped in reverse.
func (s *saga) committed(name string, undo undoFunc) {
	s.stack = append(s.stack, compensation{name: name, undo: undo})
}

// compensate unwinds the stack in reverse commit order. It always runs every
// entry, even after one fails: a stuck order delete must not stop the stock
// releases behind it. Undo failures are logged as data-integrity events and
// returned in a CompensationError wrapping cause; when every undo succeeds
// the returned error is nil.
//
// The context passed here must not be tied to the client request — a caller
// disconnect mid-checkout must never strand a reservation.
func (s *saga) compensate(ctx context.Context, cause error) *CompensationError {
	s.state = StateFailing
	lg := zctx.From(ctx)

	var failures map[string]error
	for i := len(s.stack) - 1; i >= 0; i-- {
		c := s.stack[i]
		if err := c.undo(ctx); err != nil {
			lg.Error("compensating action failed, manual reconciliation required",
				zap.String("action", c.name),
				zap.Error(err),
				zap.NamedError("cause", cause),
			)
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[c.name] = err
			continue
		}
		lg.Info("compensated", zap.String("action", c.name))
	}
	s.stack = s.stack[:0]
	s.state = StateFailed

	if len(failures) > 0 {
		return &CompensationError{Cause: cause, Failures: failures}
	}
	return nil
}
