package session

import (
	"github.com/desertthunder/capsule/internal/identity"
)

// Kind identifies the variant of a [State].
type Kind int

const (
	// Loading is reported until the provider has established the initial session.
	Loading Kind = iota
	Unauthenticated
	Authenticated
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Profile describes the signed-in user. Values are never mutated after creation.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Name returns the display name, falling back to the email address.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// State is the authentication state. An Authenticated state always carries its profile.
type State struct {
	kind    Kind
	profile Profile
}

// LoadingState returns the transitional bootstrap state.
func LoadingState() State { return State{kind: Loading} }

// UnauthenticatedState returns the signed-out state.
func UnauthenticatedState() State { return State{kind: Unauthenticated} }

// AuthenticatedState returns a signed-in state for p.
func AuthenticatedState(p Profile) State { return State{kind: Authenticated, profile: p} }

// Kind returns the variant.
func (s State) Kind() Kind { return s.kind }

// Is reports whether s is of kind k.
func (s State) Is(k Kind) bool { return s.kind == k }

// Profile returns a copy of the profile, or nil unless s is Authenticated.
func (s State) Profile() *Profile {
	if s.kind != Authenticated {
		return nil
	}
	p := s.profile
	return &p
}

// Equal reports whether two states are the same variant with the same profile.
func (s State) Equal(o State) bool {
	return s.kind == o.kind && s.profile == o.profile
}

func (s State) String() string {
	if s.kind == Authenticated {
		return s.kind.String() + "(" + s.profile.ID + ")"
	}
	return s.kind.String()
}

// Snapshot is a state stamped with the store's logical clock.
type Snapshot struct {
	Seq   uint64
	State State
}

func stateFromPrincipal(p *identity.Principal) State {
	if p == nil {
		return UnauthenticatedState()
	}
	return AuthenticatedState(Profile{
		ID:          p.Subject,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
	})
}
