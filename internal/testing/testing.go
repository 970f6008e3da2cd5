// package testing contains shared test doubles and helpers
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/desertthunder/capsule/internal/identity"
)

// MockProvider is a test double for [identity.Provider].
//
// Listeners are invoked synchronously from whichever goroutine calls [MockProvider.Emit].
type MockProvider struct {
	mu        sync.Mutex
	principal *identity.Principal
	listeners map[int]func(identity.ChangeEvent)
	nextID    int

	CurrentErr error
	ListenErr  error
	BeginErr   error
	// Responses feeds [identity.Continuation.Await]. Nil yields a continuation that waits for its context.
	Responses chan identity.Response
	// ExchangeFn overrides the default exchange, which signs in Principal and emits the change.
	ExchangeFn func(ctx context.Context, resp identity.Response) (*identity.Principal, error)
	SignOutErr error

	ExchangeCalls atomic.Int32
	BeginCalls    atomic.Int32
	Released      atomic.Int32
}

// NewMockProvider creates a provider whose current principal is p (nil for signed out).
func NewMockProvider(p *identity.Principal) *MockProvider {
	return &MockProvider{principal: p, listeners: make(map[int]func(identity.ChangeEvent))}
}

func (m *MockProvider) CurrentPrincipal() (*identity.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CurrentErr != nil {
		return nil, m.CurrentErr
	}
	return m.principal, nil
}

func (m *MockProvider) AddChangeListener(fn func(identity.ChangeEvent)) (func(), error) {
	if m.ListenErr != nil {
		return nil, m.ListenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}, nil
}

// ListenerCount returns the number of registered listeners.
func (m *MockProvider) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MockProvider) BeginInteractiveSignIn(ctx context.Context) (*identity.Continuation, error) {
	m.BeginCalls.Add(1)
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	results := m.Responses
	if results == nil {
		results = make(chan identity.Response)
	}
	return identity.NewContinuation("https://accounts.example.test/auth", results, func() { m.Released.Add(1) }), nil
}

func (m *MockProvider) ExchangeCredential(ctx context.Context, resp identity.Response) (*identity.Principal, error) {
	m.ExchangeCalls.Add(1)
	if m.ExchangeFn != nil {
		return m.ExchangeFn(ctx, resp)
	}
	p := &identity.Principal{Subject: "u1", Email: "a@b.com", DisplayName: "A"}
	m.SetPrincipal(p)
	return p, nil
}

func (m *MockProvider) SignOut() error {
	if m.SignOutErr != nil {
		return m.SignOutErr
	}
	m.SetPrincipal(nil)
	return nil
}

// SetPrincipal replaces the ambient principal and notifies listeners.
func (m *MockProvider) SetPrincipal(p *identity.Principal) {
	m.mu.Lock()
	m.principal = p
	m.mu.Unlock()
	m.Emit(identity.ChangeEvent{Principal: p})
}

// Emit delivers ev to every listener without changing the ambient principal.
func (m *MockProvider) Emit(ev identity.ChangeEvent) {
	m.mu.Lock()
	listeners := make([]func(identity.ChangeEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// RecordingNavigator records every navigation it is asked to perform.
type RecordingNavigator[T any] struct {
	mu    sync.Mutex
	calls []T
	Err   error
}

func (r *RecordingNavigator[T]) Navigate(target T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, target)
	return r.Err
}

// Calls returns a copy of the recorded targets.
func (r *RecordingNavigator[T]) Calls() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.calls...)
}

// Count returns how many navigations were recorded.
func (r *RecordingNavigator[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// MockChatModel is a test double for an eino [model.BaseChatModel].
type MockChatModel struct {
	mu     sync.Mutex
	Reply  string
	Err    error
	inputs [][]*schema.Message
}

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.Err != nil {
		return nil, m.Err
	}
	return schema.AssistantMessage(m.Reply, nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Inputs returns the message lists passed to Generate.
func (m *MockChatModel) Inputs() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.inputs...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
