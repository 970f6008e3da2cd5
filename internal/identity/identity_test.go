package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestPrincipalExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		principal *Principal
		skew      time.Duration
		want      bool
	}{
		{"nil principal", nil, 0, false},
		{"no expiry", &Principal{Subject: "s"}, 0, false},
		{"future", &Principal{Expiry: now.Add(time.Hour)}, 0, false},
		{"past", &Principal{Expiry: now.Add(-time.Second)}, 0, true},
		{"within skew", &Principal{Expiry: now.Add(10 * time.Second)}, 30 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.principal.Expired(now, tt.skew); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponse(t *testing.T) {
	if !NoResponse.IsNoResponse() {
		t.Error("NoResponse should report IsNoResponse")
	}
	if (Response{Code: "c"}).IsNoResponse() {
		t.Error("a response with a code is not NoResponse")
	}
	if (Response{Error: "access_denied"}).IsNoResponse() {
		t.Error("a response with a provider error is not NoResponse")
	}
}

func TestContinuation(t *testing.T) {
	t.Run("Await Returns Result And Releases", func(t *testing.T) {
		results := make(chan Response, 1)
		results <- Response{Code: "abc"}
		released := 0

		c := NewContinuation("https://example.test", results, func() { released++ })
		resp, err := c.Await(context.Background())
		if err != nil {
			t.Fatalf("Await() error = %v", err)
		}
		if resp.Code != "abc" {
			t.Errorf("expected code abc, got %+v", resp)
		}
		c.Release()
		if released != 1 {
			t.Errorf("expected stop to run once, ran %d times", released)
		}
	})

	t.Run("Context Ends Yields NoResponse", func(t *testing.T) {
		c := NewContinuation("", make(chan Response), nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		resp, err := c.Await(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if !resp.IsNoResponse() {
			t.Errorf("expected NoResponse, got %+v", resp)
		}
	})

	t.Run("Closed Channel Yields NoResponse", func(t *testing.T) {
		results := make(chan Response)
		close(results)
		resp, err := NewContinuation("", results, nil).Await(context.Background())
		if err != nil || !resp.IsNoResponse() {
			t.Errorf("expected NoResponse, got %+v, %v", resp, err)
		}
	})
}

func TestClassify(t *testing.T) {
	retrieve := func(status int, code string) error {
		return &oauth2.RetrieveError{Response: &http.Response{StatusCode: status}, ErrorCode: code}
	}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"provider error", newError(KindConfiguration, "op", nil), KindConfiguration},
		{"wrapped provider error", fmt.Errorf("outer: %w", newError(KindNetwork, "op", nil)), KindNetwork},
		{"cancelled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"invalid client", retrieve(401, "invalid_client"), KindConfiguration},
		{"redirect mismatch", retrieve(400, "redirect_uri_mismatch"), KindConfiguration},
		{"access denied", retrieve(400, "access_denied"), KindCancelled},
		{"server error", retrieve(503, ""), KindNetwork},
		{"invalid grant", retrieve(400, "invalid_grant"), KindUnknown},
		{"url error", &url.Error{Op: "Post", URL: "https://x", Err: errors.New("refused")}, KindNetwork},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyCallback(t *testing.T) {
	tests := map[string]Kind{
		"access_denied":       KindCancelled,
		"unauthorized_client": KindConfiguration,
		"invalid_request":     KindConfiguration,
		"server_error":        KindUnknown,
	}
	for code, want := range tests {
		if got := classifyCallback(code); got != want {
			t.Errorf("classifyCallback(%q) = %v, want %v", code, got, want)
		}
	}
}
