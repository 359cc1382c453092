package connect

import (
	"context"
	"errors"
	"sync"
	"time"

	"easyflip-backend/internal/domain"
)

// State is where the opener side of the connect flow currently is.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StatePolling      State = "polling"
	StateConnected    State = "connected"
	StateTimedOut     State = "timed_out"
	StateError        State = "error"
)

const DefaultTimeout = 2 * time.Minute

var (
	ErrNotCheckable = errors.New("status can only be checked while polling or after a timeout")
	ErrNoOpener     = errors.New("no way to open the authorization URL")
)

// API is the server side of the flow.
type API interface {
	StartAuth(ctx context.Context) (*domain.ConnectStart, error)
	Status(ctx context.Context, state string) (*domain.ConnectStatus, error)
}

// Opener shows the authorization URL to the user, usually in a browser.
type Opener interface {
	Open(url string) error
}

type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// Error is a classified flow failure.
type Error struct {
	Class  domain.ConnectErrorClass
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Class)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Remediation() string { return e.Class.Remediation() }

// PollInterval is the delay before the next status check, given the time
// since polling began. Early checks are frequent so a fast sign-in is
// picked up quickly; later ones back off.
func PollInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < time.Second:
		return 50 * time.Millisecond
	case elapsed < 2*time.Second:
		return 100 * time.Millisecond
	case elapsed < 5*time.Second:
		return 250 * time.Millisecond
	case elapsed < 15*time.Second:
		return 500 * time.Millisecond
	case elapsed < 30*time.Second:
		return time.Second
	}
	return 2 * time.Second
}

// Flow drives one connect attempt. It is safe to read State from another
// goroutine while Start is polling.
type Flow struct {
	API      API
	Opener   Opener
	Timeout  time.Duration
	Interval func(elapsed time.Duration) time.Duration
	OnChange func(State, *Error)

	mu        sync.Mutex
	state     State
	authState string
	err       *Error
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return StateDisconnected
	}
	return f.state
}

// Err is the failure that put the flow in StateError or StateTimedOut.
func (f *Flow) Err() *Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) set(s State, e *Error) {
	f.mu.Lock()
	f.state = s
	f.err = e
	cb := f.OnChange
	f.mu.Unlock()
	if cb != nil {
		cb(s, e)
	}
}

func (f *Flow) fail(s State, e *Error) error {
	f.set(s, e)
	return e
}

// Start begins the flow and blocks until it connects, times out, fails or ctx ends.
func (f *Flow) Start(ctx context.Context) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := f.Interval
	if interval == nil {
		interval = PollInterval
	}

	f.set(StateConnecting, nil)
	if err := ctx.Err(); err != nil {
		return f.fail(StateError, classify(err))
	}
	// Checked before StartAuth so no server state is issued for a URL nobody can open.
	if f.Opener == nil {
		return f.fail(StateError, &Error{Class: domain.ErrorPopupBlocked, Err: ErrNoOpener})
	}
	start, err := f.API.StartAuth(ctx)
	if err != nil {
		return f.fail(StateError, classify(err))
	}
	if err := f.Opener.Open(start.AuthURL); err != nil {
		return f.fail(StateError, &Error{Class: domain.ErrorPopupBlocked, Err: err})
	}
	f.mu.Lock()
	f.authState = start.State
	f.mu.Unlock()
	f.set(StatePolling, nil)

	began := time.Now()
	deadline := began.Add(timeout)
	for {
		wait := interval(time.Since(began))
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return f.fail(StateError, &Error{Class: domain.ErrorUnknown, Err: ctx.Err()})
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			return f.fail(StateError, &Error{Class: domain.ErrorUnknown, Err: err})
		}

		done, err := f.check(ctx)
		if done {
			return err
		}
		if !time.Now().Before(deadline) {
			return f.fail(StateTimedOut, &Error{Class: domain.ErrorTimeout, Err: errors.New("no response from eBay before the timeout")})
		}
	}
}

// check performs one status request and applies a terminal answer.
// Transient request failures are not terminal while polling.
func (f *Flow) check(ctx context.Context) (bool, error) {
	f.mu.Lock()
	want := f.authState
	f.mu.Unlock()

	st, err := f.API.Status(ctx, want)
	if err != nil {
		if ctx.Err() != nil {
			return true, f.fail(StateError, &Error{Class: domain.ErrorUnknown, Err: ctx.Err()})
		}
		return false, nil
	}
	if st == nil || st.State != want {
		return false, nil
	}
	switch st.Status {
	case domain.ConnectStatusConnected:
		f.set(StateConnected, nil)
		return true, nil
	case domain.ConnectStatusError:
		return true, f.fail(StateError, statusError(st))
	case domain.ConnectStatusExpired:
		return true, f.fail(StateTimedOut, &Error{Class: domain.ErrorTimeout, Reason: "expired"})
	}
	return false, nil
}

// CheckOnce is the manual "check status" action: exactly one status request,
// run synchronously, from polling or timed out.
func (f *Flow) CheckOnce(ctx context.Context) (State, error) {
	cur := f.State()
	if cur != StatePolling && cur != StateTimedOut {
		return cur, ErrNotCheckable
	}
	if err := ctx.Err(); err != nil {
		return cur, err
	}
	f.mu.Lock()
	want := f.authState
	f.mu.Unlock()

	st, err := f.API.Status(ctx, want)
	if err != nil {
		return cur, classify(err)
	}
	if st == nil || st.State != want {
		return cur, nil
	}
	switch st.Status {
	case domain.ConnectStatusConnected:
		f.set(StateConnected, nil)
	case domain.ConnectStatusError:
		f.set(StateError, statusError(st))
	}
	return f.State(), nil
}

// statusError keeps the server's class when the callback reason names one.
func statusError(st *domain.ConnectStatus) *Error {
	class := domain.ErrorUnknown
	switch domain.ConnectErrorClass(st.Reason) {
	case domain.ErrorAuthConfig, domain.ErrorNetwork, domain.ErrorTimeout:
		class = domain.ConnectErrorClass(st.Reason)
	}
	return &Error{Class: class, Reason: st.Reason}
}

func classify(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: domain.ErrorTimeout, Err: err}
	}
	return &Error{Class: domain.ErrorUnknown, Err: err}
}
