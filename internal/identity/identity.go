package identity

import (
	"context"
	"errors"
	"time"
)

// Principal is the identity attached to a signed-in session.
type Principal struct {
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
	Expiry      time.Time
}

// Expired reports whether the principal's credential expires before now+skew.
func (p *Principal) Expired(now time.Time, skew time.Duration) bool {
	if p == nil || p.Expiry.IsZero() {
		return false
	}
	return !now.Add(skew).Before(p.Expiry)
}

// ChangeEvent is delivered to change listeners.
//
// A nil Principal with a nil Err means no one is signed in. A non-nil Err is transient: the provider could not
// determine the session and the previous state still stands.
type ChangeEvent struct {
	Principal *Principal
	Err       error
}

// Response is the raw outcome of the interactive sign-in step.
type Response struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// NoResponse is returned when the user abandons the sign-in UI without producing anything.
var NoResponse = Response{}

// IsNoResponse reports whether r carries neither a code nor a provider error.
func (r Response) IsNoResponse() bool {
	return r.Code == "" && r.Error == ""
}

// Provider is the identity provider contract consumed by the session store and sign-in flow.
type Provider interface {
	// CurrentPrincipal reads the locally held session. It never contacts the network.
	CurrentPrincipal() (*Principal, error)

	// AddChangeListener registers fn for session changes. The returned function removes the listener.
	AddChangeListener(fn func(ChangeEvent)) (func(), error)

	// BeginInteractiveSignIn starts the external sign-in UI.
	BeginInteractiveSignIn(ctx context.Context) (*Continuation, error)

	// ExchangeCredential trades a sign-in response for a signed-in principal and updates the ambient session.
	ExchangeCredential(ctx context.Context, resp Response) (*Principal, error)

	// SignOut clears the ambient session.
	SignOut() error
}

// Continuation is an in-progress interactive sign-in.
type Continuation struct {
	// AuthURL is the consent page the user was sent to.
	AuthURL string

	results <-chan Response
	stop    func()
}

// NewContinuation wraps a results channel and a cleanup function.
//
// results should yield at most one value. stop may be nil.
func NewContinuation(authURL string, results <-chan Response, stop func()) *Continuation {
	return &Continuation{AuthURL: authURL, results: results, stop: stop}
}

// Await blocks until the sign-in UI produces a response.
//
// A context that ends first (the user walked away, or the sign-in timeout elapsed) yields [NoResponse] with the
// context's error. The continuation is released in every case.
func (c *Continuation) Await(ctx context.Context) (Response, error) {
	defer c.Release()

	select {
	case resp, ok := <-c.results:
		if !ok {
			return NoResponse, nil
		}
		return resp, nil
	case <-ctx.Done():
		return NoResponse, ctx.Err()
	}
}

// Release stops whatever backs the continuation. Safe to call more than once.
func (c *Continuation) Release() {
	if c.stop != nil {
		stop := c.stop
		c.stop = nil
		stop()
	}
}

// ErrNoCredential is returned by the cache when nothing is stored.
var ErrNoCredential = errors.New("no stored credential")
