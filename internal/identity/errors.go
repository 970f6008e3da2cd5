package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/oauth2"
)

// Kind classifies provider failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindConfiguration
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindConfiguration:
		return "configuration"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProviderError is a classified failure from the identity provider.
type ProviderError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("identity: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("identity: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Op: op, Err: err}
}

// configuration error codes from RFC 6749 section 5.2 and Google's extensions
var configurationCodes = map[string]bool{
	"invalid_client":         true,
	"unauthorized_client":    true,
	"redirect_uri_mismatch":  true,
	"invalid_scope":          true,
	"unsupported_grant_type": true,
}

// Classify reduces err to a [Kind].
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch {
		case configurationCodes[re.ErrorCode]:
			return KindConfiguration
		case re.ErrorCode == "access_denied":
			return KindCancelled
		case re.Response != nil && re.Response.StatusCode >= 500:
			return KindNetwork
		default:
			return KindUnknown
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}

// classifyCallback maps an error returned on the redirect to a [Kind].
func classifyCallback(code string) Kind {
	switch {
	case code == "access_denied":
		return KindCancelled
	case configurationCodes[code], code == "invalid_request":
		return KindConfiguration
	default:
		return KindUnknown
	}
}
