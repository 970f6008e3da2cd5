package server

import (
	"fmt"
	"net/http"
	"sync"
)

// CallbackResult is the single outcome of an authorization redirect.
//
// Exactly one of Code or Error is set.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Denied reports whether the user declined the consent screen.
func (c CallbackResult) Denied() bool {
	return c.Error == "access_denied"
}

// CallbackHandler handles the authorization code redirect for one sign-in attempt.
type CallbackHandler struct {
	path        string
	state       string
	resultChan  chan CallbackResult
	once        sync.Once
	mu          sync.Mutex
	callbackHit bool
}

// NewCallbackHandler creates a handler serving path that accepts only the given state token.
func NewCallbackHandler(path, state string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{
		path:       path,
		state:      state,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the redirect from the provider's consent screen.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	state := query.Get("state")
	if state != h.state {
		h.Send(CallbackResult{State: state, Error: "invalid_state", ErrorDescription: "state parameter mismatch"})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		result := CallbackResult{State: state, Error: query.Get("error"), ErrorDescription: query.Get("error_description")}
		if result.Error == "" {
			result.Error = "missing_code"
		}
		h.Send(result)
		writePage(w, http.StatusBadRequest, "Sign-in not completed", "You can close this window and return to the terminal.")
		return
	}

	h.Send(CallbackResult{Code: code, State: state})
	writePage(w, http.StatusOK, "✓ Signed in", "You can close this window and return to the terminal.")
}

// Send delivers result on the result channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel. It receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func writePage(w http.ResponseWriter, status int, heading, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>capsule</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7D56F4; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, heading, body)
}
