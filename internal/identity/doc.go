// Package identity is the boundary to the external identity provider.
//
// # Provider
//
// [Provider] exposes the ambient session: the currently signed-in [Principal] (a local read, never a network call),
// change notifications, interactive sign-in, credential exchange, and sign-out.
// Change listeners may fire on any goroutine; consumers hand the event off to their own execution context.
//
// # Google
//
// [GoogleProvider] implements [Provider] with OAuth 2.0 authorization code + PKCE against Google. The ID token returned by
// the token endpoint is verified with go-oidc before it is persisted to the [CredentialCache].
// The cache directory is watched with fsnotify so credentials written or erased by another process (a second capsule
// instance, or `capsule auth logout`) are observed as ambient session changes.
//
// # Errors
//
// Every failure that crosses the boundary can be reduced to a [Kind] with [Classify]:
// network, configuration, cancelled, or unknown.
package identity
