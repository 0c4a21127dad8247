package discount

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// DefaultReloadDelay keeps the success message visible before the order is
// re-fetched.
const DefaultReloadDelay = 3 * time.Second

// Option configures a Workflow.
type Option func(*Workflow)

// WithScheduler replaces the timer used for the post-claim reload.
func WithScheduler(s Scheduler) Option {
	return func(w *Workflow) { w.scheduler = s }
}

// WithReloadDelay sets the delay between a successful claim and the reload.
func WithReloadDelay(d time.Duration) Option {
	return func(w *Workflow) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// Workflow tracks one shopper's discount claim for one order.
type Workflow struct {
	redeemer  Redeemer
	reload    func()
	scheduler Scheduler
	delay     time.Duration

	mu      sync.Mutex
	state   State
	gen     uint64
	stop    func() bool
	stopped bool
}

// NewWorkflow creates a Workflow. reload is invoked once per successful claim
// after the reload delay.
func NewWorkflow(redeemer Redeemer, reload func(), opts ...Option) *Workflow {
	w := &Workflow{
		redeemer:  redeemer,
		reload:    reload,
		scheduler: TimerScheduler{},
		delay:     DefaultReloadDelay,
		state:     State{Phase: PhaseIdle},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// State returns a copy of the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetCode edits the entered code. Ignored while a claim is submitting.
func (w *Workflow) SetCode(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Phase == PhaseSubmitting {
		return
	}
	w.state.Code = code
}

// CanSubmit reports whether a claim may be submitted now.
func (w *Workflow) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canSubmit()
}

func (w *Workflow) canSubmit() bool {
	return len(w.state.Code) > 0 && w.state.Phase != PhaseSubmitting
}

// Submit redeems the entered code. A rejection is returned as *ClaimError
// and leaves the code in place; success clears the code and schedules the
// reload.
func (w *Workflow) Submit(ctx context.Context) (Result, error) {
	w.mu.Lock()
	switch {
	case w.state.Phase == PhaseSubmitting:
		w.mu.Unlock()
		return Result{}, ErrClaimInFlight
	case w.state.Code == "":
		w.mu.Unlock()
		return Result{}, ErrEmptyCode
	}
	code := w.state.Code
	gen := w.gen
	w.state.Phase = PhaseSubmitting
	w.state.Message = ""
	w.state.Error = ""
	w.mu.Unlock()

	lg := zctx.From(ctx).With(zap.String("code", code))

	msg, err := w.redeemer.RedeemCoupon(ctx, code)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		ce := claimError(code, err)
		if gen == w.gen {
			w.state.Phase = PhaseError
			w.state.Error = ce.Message
		}
		lg.Warn("Discount claim rejected", zap.Error(err))
		return Result{}, ce
	}

	if gen == w.gen {
		w.state = State{Phase: PhaseSuccess, Message: msg}
	}
	w.scheduleReload()
	lg.Info("Discount claimed", zap.Duration("reload_in", w.delay))
	return Result{Message: msg}, nil
}

func (w *Workflow) scheduleReload() {
	if w.stopped || w.reload == nil {
		return
	}
	if w.stop != nil {
		w.stop()
	}
	w.stop = w.scheduler.AfterFunc(w.delay, w.reload)
}

// Cancel abandons a scheduled reload. Later claims schedule nothing.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

// Reset returns the workflow to idle. The outcome of a claim still in flight
// is no longer recorded in the state.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.state = State{Phase: PhaseIdle}
}
