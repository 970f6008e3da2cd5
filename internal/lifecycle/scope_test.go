package lifecycle

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

type closer struct {
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

func TestScope(t *testing.T) {
	t.Run("Get Survives Recreation", func(t *testing.T) {
		s := NewScope(log.New(io.Discard))
		calls := 0
		create := func() any {
			calls++
			return &closer{}
		}

		first := s.Get("journal", create)
		second := s.Get("journal", create)

		if first != second {
			t.Error("expected the same value for the same key")
		}
		if calls != 1 {
			t.Errorf("expected create once, got %d", calls)
		}
	})

	t.Run("Keys Are Independent", func(t *testing.T) {
		s := NewScope(nil)
		a := GetTyped(s, "a", func() *closer { return &closer{} })
		b := GetTyped(s, "b", func() *closer { return &closer{} })
		if a == b {
			t.Error("different keys must hold different values")
		}
		if s.Len() != 2 {
			t.Errorf("expected 2 values, got %d", s.Len())
		}
	})

	t.Run("Release Closes And Forgets", func(t *testing.T) {
		s := NewScope(log.New(io.Discard))
		c := GetTyped(s, "signin", func() *closer { return &closer{err: errors.New("ignored")} })

		s.Release("signin")
		if c.closed != 1 {
			t.Errorf("expected Close once, got %d", c.closed)
		}
		if _, ok := s.Lookup("signin"); ok {
			t.Error("released key must be gone")
		}

		fresh := GetTyped(s, "signin", func() *closer { return &closer{} })
		if fresh == c {
			t.Error("a released key must produce a fresh value")
		}

		s.Release("missing")
	})

	t.Run("Clear Closes Everything", func(t *testing.T) {
		s := NewScope(log.New(io.Discard))
		a := GetTyped(s, "a", func() *closer { return &closer{} })
		b := GetTyped(s, "b", func() *closer { return &closer{} })
		s.Get("plain", func() any { return 42 })

		s.Clear()
		if a.closed != 1 || b.closed != 1 {
			t.Errorf("expected both closed, got a=%d b=%d", a.closed, b.closed)
		}
		if s.Len() != 0 {
			t.Errorf("expected empty scope, got %d", s.Len())
		}
	})
}
