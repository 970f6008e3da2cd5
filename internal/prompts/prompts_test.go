package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/schema"
	"github.com/desertthunder/capsule/internal/shared"
	tu "github.com/desertthunder/capsule/internal/testing"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func first(int) int { return 0 }

func TestGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("Uses Model Reply", func(t *testing.T) {
		m := &tu.MockChatModel{Reply: "What made you laugh this week?"}
		g := New(m, Options{Logger: quietLogger(), RateLimit: 100})

		p, err := g.Generate(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Source != SourceModel {
			t.Errorf("expected model source, got %s", p.Source)
		}
		if p.Text != "What made you laugh this week?" {
			t.Errorf("unexpected text %q", p.Text)
		}
	})

	t.Run("Sends System And User Messages", func(t *testing.T) {
		m := &tu.MockChatModel{Reply: "ok"}
		g := New(m, Options{Logger: quietLogger(), RateLimit: 100})

		if _, err := g.Generate(ctx, "gratitude"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		inputs := m.Inputs()
		if len(inputs) != 1 || len(inputs[0]) != 2 {
			t.Fatalf("expected one call with two messages, got %v", inputs)
		}
		if inputs[0][0].Role != schema.System {
			t.Errorf("expected system message first, got %s", inputs[0][0].Role)
		}
		if inputs[0][1].Role != schema.User || !strings.Contains(inputs[0][1].Content, "gratitude") {
			t.Errorf("expected user message mentioning topic, got %+v", inputs[0][1])
		}
	})

	t.Run("Falls Back Without Model", func(t *testing.T) {
		g := New(nil, Options{Logger: quietLogger(), Pick: first})

		p, err := g.Generate(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Source != SourceFallback || p.Text != Fallback[0] {
			t.Errorf("expected first fallback prompt, got %+v", p)
		}
		if p.Err != nil {
			t.Errorf("expected no cause, got %v", p.Err)
		}
		if g.Configured() {
			t.Error("expected unconfigured generator")
		}
	})

	t.Run("Falls Back On Model Error", func(t *testing.T) {
		boom := errors.New("upstream 500")
		m := &tu.MockChatModel{Err: boom}
		g := New(m, Options{Logger: quietLogger(), RateLimit: 100, Pick: first})

		p, err := g.Generate(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Source != SourceFallback {
			t.Errorf("expected fallback, got %s", p.Source)
		}
		if !errors.Is(p.Err, boom) {
			t.Errorf("expected cause %v, got %v", boom, p.Err)
		}
	})

	t.Run("Falls Back On Empty Reply", func(t *testing.T) {
		m := &tu.MockChatModel{Reply: "  \n\n "}
		g := New(m, Options{Logger: quietLogger(), RateLimit: 100, Pick: first})

		p, _ := g.Generate(ctx, "")
		if p.Source != SourceFallback || !errors.Is(p.Err, ErrEmptyReply) {
			t.Errorf("expected empty-reply fallback, got %+v", p)
		}
	})

	t.Run("Uses Custom Fallback List", func(t *testing.T) {
		g := New(nil, Options{
			Logger:   quietLogger(),
			Fallback: []string{"a", "b"},
			Pick:     func(n int) int { return n - 1 },
		})

		p, _ := g.Generate(ctx, "")
		if p.Text != "b" {
			t.Errorf("expected last custom prompt, got %q", p.Text)
		}
	})

	t.Run("Out Of Range Pick Uses First", func(t *testing.T) {
		g := New(nil, Options{Logger: quietLogger(), Pick: func(int) int { return 99 }})

		p, _ := g.Generate(ctx, "")
		if p.Text != Fallback[0] {
			t.Errorf("expected first fallback, got %q", p.Text)
		}
	})

	t.Run("Rate Limiter Honors Context", func(t *testing.T) {
		m := &tu.MockChatModel{Reply: "ok"}
		g := New(m, Options{Logger: quietLogger(), RateLimit: 0.001})

		if _, err := g.Generate(ctx, ""); err != nil {
			t.Fatalf("first call should pass the burst: %v", err)
		}

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if _, err := g.Generate(short, ""); err == nil {
			t.Error("expected rate limit error once burst is spent")
		}
		if got := len(m.Inputs()); got != 1 {
			t.Errorf("expected model to be called once, got %d", got)
		}
	})
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "What went well?", want: "What went well?"},
		{name: "surrounding whitespace", in: "\n  What went well?  \n", want: "What went well?"},
		{name: "quoted", in: `"What went well?"`, want: "What went well?"},
		{name: "numbered", in: "1. What went well?", want: "What went well?"},
		{name: "bulleted", in: "- What went well?", want: "What went well?"},
		{name: "keeps leading number", in: "3 things you noticed today", want: "3 things you noticed today"},
		{name: "first line only", in: "What went well?\nAnd why?", want: "What went well?"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clean(tt.in); got != tt.want {
				t.Errorf("clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("truncates long replies", func(t *testing.T) {
		got := clean(strings.Repeat("a", 400))
		if len([]rune(got)) != maxPromptLen {
			t.Errorf("expected %d runes, got %d", maxPromptLen, len([]rune(got)))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got[len(got)-5:])
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Run("No API Key Serves Fallback", func(t *testing.T) {
		g, err := NewFromConfig(context.Background(), shared.PromptsConfig{}, quietLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.Configured() {
			t.Error("expected fallback-only generator")
		}
	})

	t.Run("Calls OpenAI Compatible Endpoint", func(t *testing.T) {
		var gotModel, gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
				http.NotFound(w, r)
				return
			}
			gotAuth = r.Header.Get("Authorization")

			var body struct {
				Model string `json:"model"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotModel = body.Model

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   body.Model,
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "Who did you miss today?"},
					"finish_reason": "stop",
				}},
				"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
			})
		}))
		defer srv.Close()

		cfg := shared.PromptsConfig{
			BaseURL:   srv.URL,
			APIKey:    "test-key",
			RateLimit: 100,
			Timeout:   shared.Duration{Duration: 5 * time.Second},
		}
		g, err := NewFromConfig(context.Background(), cfg, quietLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		p, err := g.Generate(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Source != SourceModel || p.Text != "Who did you miss today?" {
			t.Errorf("unexpected prompt %+v (cause %v)", p, p.Err)
		}
		if gotModel != DefaultModel {
			t.Errorf("expected default model %q, got %q", DefaultModel, gotModel)
		}
		if gotAuth != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", gotAuth)
		}
	})
}
