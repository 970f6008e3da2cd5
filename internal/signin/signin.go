// Package signin drives one explicit, user-initiated sign-in attempt.
//
// A [Flow] starts the provider's interactive sign-in, waits for the response, and exchanges it for a credential.
// It reports a one-shot [Result] to the surface that started it. The flow never publishes session state: the session
// store observes the provider's ambient change on its own.
package signin

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/identity"
	"github.com/desertthunder/capsule/internal/metrics"
	"github.com/desertthunder/capsule/internal/shared"
)

// DefaultTimeout bounds how long [Handle.Await] waits for the user.
const DefaultTimeout = 2 * time.Minute

// ErrorKind classifies a failed sign-in.
type ErrorKind int

const (
	NoError ErrorKind = iota
	NetworkError
	ConfigurationError
	Cancelled
	Unknown
)

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "none"
	case NetworkError:
		return "network_error"
	case ConfigurationError:
		return "configuration_error"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Message is the user-facing text for k.
func (k ErrorKind) Message() string {
	switch k {
	case NoError:
		return ""
	case NetworkError:
		return "Couldn't reach Google. Check your connection and try again."
	case ConfigurationError:
		return "Sign-in is not configured correctly. Check credentials.google in your config."
	case Cancelled:
		return "Sign-in was cancelled."
	default:
		return "Sign-in failed. Please try again."
	}
}

// Result is the terminal outcome of one attempt.
type Result struct {
	Success     bool
	ErrorKind   ErrorKind
	ErrorDetail string
}

// Label is the metrics label for r.
func (r Result) Label() string {
	if r.Success {
		return "success"
	}
	return r.ErrorKind.String()
}

func failure(kind ErrorKind, detail string) Result {
	return Result{ErrorKind: kind, ErrorDetail: detail}
}

// FailureFor converts a provider error into a failed [Result].
func FailureFor(err error) Result {
	return failure(kindFor(identity.Classify(err)), err.Error())
}

func kindFor(k identity.Kind) ErrorKind {
	switch k {
	case identity.KindNetwork:
		return NetworkError
	case identity.KindConfiguration:
		return ConfigurationError
	case identity.KindCancelled:
		return Cancelled
	default:
		return Unknown
	}
}

// Options configures a [Flow].
type Options struct {
	Logger  *log.Logger
	Metrics metrics.Recorder
	// Timeout bounds the wait for the user. Defaults to [DefaultTimeout].
	Timeout time.Duration
}

// Flow runs sign-in attempts against a provider.
type Flow struct {
	provider identity.Provider
	logger   *log.Logger
	metrics  metrics.Recorder
	timeout  time.Duration
}

// NewFlow creates a flow.
func NewFlow(provider identity.Provider, opts Options) *Flow {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Flow{
		provider: provider,
		logger:   shared.WithLogger(opts.Logger, "component", "signin"),
		metrics:  opts.Metrics,
		timeout:  opts.Timeout,
	}
}

// Handle is an in-progress attempt.
type Handle struct {
	cont    *identity.Continuation
	timeout time.Duration
	logger  *log.Logger
}

// AuthURL is the page the user was sent to.
func (h *Handle) AuthURL() string {
	return h.cont.AuthURL
}

// Await waits for the interactive step. An abandoned or timed-out attempt yields [identity.NoResponse].
func (h *Handle) Await(ctx context.Context) identity.Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.cont.Await(ctx)
	if err != nil {
		h.logger.Info("sign-in abandoned", "reason", err)
	}
	return resp
}

// Cancel abandons the attempt.
func (h *Handle) Cancel() {
	h.cont.Release()
}

// BeginSignIn starts the provider's interactive sign-in.
func (f *Flow) BeginSignIn(ctx context.Context) (*Handle, error) {
	cont, err := f.provider.BeginInteractiveSignIn(ctx)
	if err != nil {
		f.logger.Warn("could not start sign-in", "error", err)
		return nil, err
	}
	f.logger.Debug("sign-in started", "url", cont.AuthURL)
	return &Handle{cont: cont, timeout: f.timeout, logger: f.logger}, nil
}

// CompleteSignIn exchanges resp for a credential.
//
// [identity.NoResponse] returns Cancelled without contacting the provider.
func (f *Flow) CompleteSignIn(ctx context.Context, resp identity.Response) Result {
	result := f.complete(ctx, resp)
	f.metrics.RecordSignInResult(result.Label())
	return result
}

func (f *Flow) complete(ctx context.Context, resp identity.Response) Result {
	if resp.IsNoResponse() {
		f.logger.Info("sign-in cancelled")
		return failure(Cancelled, "no response from sign-in")
	}

	principal, err := f.provider.ExchangeCredential(ctx, resp)
	if err != nil {
		result := FailureFor(err)
		f.logger.Warn("sign-in failed", "kind", result.ErrorKind, "error", err)
		return result
	}

	f.logger.Info("sign-in succeeded", "subject", principal.Subject)
	return Result{Success: true}
}

// Failed records and returns the result for an attempt that could not start.
func (f *Flow) Failed(err error) Result {
	result := FailureFor(err)
	f.metrics.RecordSignInResult(result.Label())
	return result
}

// Run performs a whole attempt: begin, wait for the user, complete.
func (f *Flow) Run(ctx context.Context) Result {
	h, err := f.BeginSignIn(ctx)
	if err != nil {
		return f.Failed(err)
	}
	return f.CompleteSignIn(ctx, h.Await(ctx))
}
