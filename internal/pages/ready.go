package pages

import (
	"fmt"
	"time"

	"github.com/kuitang/forge-e2e/internal/errs"
)

// State is a component's position in its load state machine.
type State int

const (
	Loading State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Predicate reports whether a page reached an expected state. Errors count
// as "not yet"; the last one is attached to the eventual ReadinessError.
type Predicate func() (bool, error)

// Timing holds the poll/timeout pairs every wait uses.
type Timing struct {
	// Timeout bounds each readiness wait.
	Timeout time.Duration
	// PollInterval is the delay between predicate checks.
	PollInterval time.Duration
	// Settle bounds the wait for an action's outcome (login, create) to show.
	Settle time.Duration
}

// DefaultTiming returns the standard timing.
func DefaultTiming() Timing {
	return Timing{
		Timeout:      5 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Settle:       2 * time.Second,
	}
}

// Validate requires 0 < PollInterval < Timeout and PollInterval < Settle.
func (t Timing) Validate() error {
	if t.PollInterval <= 0 || t.Timeout <= 0 || t.Settle <= 0 {
		return errs.New(errs.Configuration, fmt.Sprintf("timing must be positive: timeout=%s poll=%s settle=%s", t.Timeout, t.PollInterval, t.Settle))
	}
	if t.PollInterval >= t.Timeout || t.PollInterval >= t.Settle {
		return errs.New(errs.Configuration, fmt.Sprintf("poll interval %s must be smaller than timeout %s and settle %s", t.PollInterval, t.Timeout, t.Settle))
	}
	return nil
}

// WaitUntilReady polls ready every pollInterval until it returns true or
// timeout elapses. The predicate is checked once more at the deadline, so
// the wait always ends within timeout plus one predicate call.
func WaitUntilReady(ready Predicate, timeout, pollInterval time.Duration) error {
	if timeout <= 0 || pollInterval <= 0 || pollInterval >= timeout {
		return errs.New(errs.Configuration, fmt.Sprintf("invalid wait: timeout=%s poll=%s", timeout, pollInterval))
	}

	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		ok, err := ready()
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		time.Sleep(min(pollInterval, remaining))
	}
	return errs.Wrap(errs.Readiness, fmt.Sprintf("not ready after %s", timeout), lastErr)
}

// readiness is the loading -> ready | failed gate every component embeds.
type readiness struct {
	state State
	err   error
}

func (r *readiness) await(name string, ready Predicate, timing Timing) error {
	switch r.state {
	case Ready:
		return nil
	case Failed:
		return r.err
	}
	if err := WaitUntilReady(ready, timing.Timeout, timing.PollInterval); err != nil {
		r.state = Failed
		r.err = errs.Wrap(errs.CodeOf(err), name+" page", err)
		return r.err
	}
	r.state = Ready
	return nil
}

func (r *readiness) reset() {
	r.state = Loading
	r.err = nil
}

func (r *readiness) require(name string) error {
	if r.state == Ready {
		return nil
	}
	return errs.New(errs.Readiness, fmt.Sprintf("%s page is %s, not ready", name, r.state))
}
