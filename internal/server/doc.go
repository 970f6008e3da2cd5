// Package server provides the loopback HTTP server that receives the identity provider's redirect during an interactive
// sign-in.
//
// # Router
//
// [Router] wraps a gorilla/mux router with method filtering and a [Middleware] stack.
// [Handler] implementations register every route they serve through [Router.Handler].
//
// # Callback Handler
//
// [CallbackHandler] validates the state parameter (CSRF protection) and captures the authorization code, or the
// provider's error, exactly once. It does not exchange the code: the captured [CallbackResult] is handed back to the
// sign-in flow, which owns the credential exchange.
// Only one callback is processed so a replayed redirect cannot produce a second result.
//
// # Loopback
//
// [Loopback] binds the listener synchronously, so "address already in use" surfaces to the caller before the browser is
// opened, and shuts down once the sign-in attempt completes or is abandoned.
package server
