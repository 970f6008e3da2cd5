package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/desertthunder/capsule/internal/server"
	"github.com/desertthunder/capsule/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleKeysURL = "https://www.googleapis.com/oauth2/v3/certs"

	renewRetry = time.Minute
)

// GoogleOptions configures a [GoogleProvider].
type GoogleOptions struct {
	Client shared.GoogleConfig
	// ListenAddr is the loopback bind address. Defaults to the redirect URI's host.
	ListenAddr string
	Cache      *CredentialCache
	Logger     *log.Logger
	HTTPClient *http.Client
	// Endpoint, Issuer, and KeysURL default to Google's production values.
	Endpoint   oauth2.Endpoint
	Issuer     string
	KeysURL    string
	ExpirySkew time.Duration
	// RenewRetry is the delay before a failed renewal is attempted again.
	RenewRetry  time.Duration
	OpenBrowser shared.BrowserOpener
	Now         func() time.Time
}

type pendingSignIn struct {
	verifier    string
	redirectURL string
}

// GoogleProvider signs users in with Google using the authorization code flow with PKCE and a loopback redirect.
type GoogleProvider struct {
	opts     GoogleOptions
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	logger   *log.Logger

	// publishMu orders cache reads with the notifications they produce.
	publishMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]pendingSignIn
	listeners map[int]func(ChangeEvent)
	nextID    int
	stopWatch func() error
	renewal   *time.Timer
	last      string
	closed    bool
}

// NewGoogleProvider creates a provider. It does not contact the network.
func NewGoogleProvider(opts GoogleOptions) (*GoogleProvider, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("%w: credential cache is required", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Endpoint.TokenURL == "" {
		opts.Endpoint = endpoints.Google
	}
	if opts.Issuer == "" {
		opts.Issuer = GoogleIssuer
	}
	if opts.KeysURL == "" {
		opts.KeysURL = GoogleKeysURL
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RenewRetry <= 0 {
		opts.RenewRetry = renewRetry
	}

	scopes := opts.Client.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	keyCtx := oidc.ClientContext(context.Background(), opts.HTTPClient)
	keySet := oidc.NewRemoteKeySet(keyCtx, opts.KeysURL)

	return &GoogleProvider{
		opts: opts,
		oauth: oauth2.Config{
			ClientID:     opts.Client.ClientID,
			ClientSecret: opts.Client.ClientSecret,
			RedirectURL:  opts.Client.RedirectURI,
			Endpoint:     opts.Endpoint,
			Scopes:       scopes,
		},
		verifier:  oidc.NewVerifier(opts.Issuer, keySet, &oidc.Config{ClientID: opts.Client.ClientID, Now: opts.Now}),
		logger:    shared.WithLogger(opts.Logger, "component", "identity"),
		pending:   make(map[string]pendingSignIn),
		listeners: make(map[int]func(ChangeEvent)),
	}, nil
}

// CurrentPrincipal reads the cached credential.
//
// An expired credential without a refresh token reads as signed out.
func (p *GoogleProvider) CurrentPrincipal() (*Principal, error) {
	principal, _, err := p.current()
	return principal, err
}

func (p *GoogleProvider) current() (*Principal, Credential, error) {
	cred, err := p.opts.Cache.Load()
	if errors.Is(err, ErrNoCredential) {
		return nil, cred, nil
	}
	if err != nil {
		return nil, cred, err
	}

	principal, err := principalFromIDToken(cred.IDToken)
	if err != nil {
		return nil, cred, err
	}
	if cred.RefreshToken == "" && principal.Expired(p.opts.Now(), p.opts.ExpirySkew) {
		return nil, cred, nil
	}
	return principal, cred, nil
}

// AddChangeListener registers fn and starts watching the credential directory on first use.
func (p *GoogleProvider) AddChangeListener(fn func(ChangeEvent)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, newError(KindUnknown, "listen", shared.ErrSurfaceClosed)
	}

	if p.stopWatch == nil {
		stop, err := p.opts.Cache.Watch(p.publish, func(err error) {
			p.logger.Warn("credential watcher error", "error", err)
		})
		if err != nil {
			return nil, newError(KindUnknown, "listen", err)
		}
		p.stopWatch = stop
		p.scheduleRenewalLocked()
	}

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}, nil
}

// BeginInteractiveSignIn starts a loopback server and opens the consent page in the browser.
//
// When the redirect URI's port is 0 a free port is chosen and the redirect URI is rewritten to match, which Google
// permits for desktop clients.
func (p *GoogleProvider) BeginInteractiveSignIn(ctx context.Context) (*Continuation, error) {
	if err := p.opts.Client.Validate(); err != nil {
		return nil, newError(KindConfiguration, "begin", err)
	}

	redirect, err := url.Parse(p.opts.Client.RedirectURI)
	if err != nil {
		return nil, newError(KindConfiguration, "begin", fmt.Errorf("invalid redirect uri: %w", err))
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, newError(KindUnknown, "begin", err)
	}
	verifier := oauth2.GenerateVerifier()

	callback := server.NewCallbackHandler(redirect.Path, state)
	router := server.NewRouter()
	router.Use(server.RequestLogger(p.logger))
	router.Handler(callback)

	addr := p.opts.ListenAddr
	if addr == "" {
		addr = redirect.Host
	}
	lb, err := server.StartLoopback(addr, router)
	if err != nil {
		return nil, newError(KindConfiguration, "begin", err)
	}

	if _, port, _ := net.SplitHostPort(redirect.Host); port == "0" {
		_, bound, _ := net.SplitHostPort(lb.Addr())
		redirect.Host = net.JoinHostPort(redirect.Hostname(), bound)
	}
	redirectURL := redirect.String()

	p.mu.Lock()
	p.pending[state] = pendingSignIn{verifier: verifier, redirectURL: redirectURL}
	p.mu.Unlock()

	cfg := p.oauth
	cfg.RedirectURL = redirectURL
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	results := make(chan Response, 1)
	forwarded := make(chan struct{})
	var sent Response
	go func() {
		defer close(forwarded)
		defer close(results)
		select {
		case r, ok := <-callback.Result():
			if ok {
				sent = Response{Code: r.Code, State: r.State, Error: r.Error, ErrorDescription: r.ErrorDescription}
				results <- sent
			}
		case err, ok := <-lb.Errors():
			if ok {
				p.logger.Error("loopback server stopped", "error", err)
			}
		}
	}()

	stop := func() {
		callback.Send(server.CallbackResult{})
		<-forwarded

		// Keep the verifier only for a response the caller received and will exchange.
		if _, unread := <-results; unread || sent.IsNoResponse() || sent.State != state {
			p.mu.Lock()
			delete(p.pending, state)
			p.mu.Unlock()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lb.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn("failed to stop loopback server", "error", err)
		}
	}

	p.logger.Info("opening browser for sign-in", "url", authURL)
	if err := p.opts.OpenBrowser(authURL); err != nil {
		p.logger.Warn("could not open browser; visit the URL manually", "url", authURL, "error", err)
	}

	return NewContinuation(authURL, results, stop), nil
}

// ExchangeCredential redeems the authorization code, verifies the ID token, and persists the credential.
func (p *GoogleProvider) ExchangeCredential(ctx context.Context, resp Response) (*Principal, error) {
	if resp.IsNoResponse() {
		return nil, newError(KindCancelled, "exchange", nil)
	}

	p.mu.Lock()
	pending, ok := p.pending[resp.State]
	delete(p.pending, resp.State)
	p.mu.Unlock()

	if resp.Error != "" {
		return nil, newError(classifyCallback(resp.Error), "exchange", fmt.Errorf("%s: %s", resp.Error, resp.ErrorDescription))
	}
	if !ok {
		return nil, newError(KindUnknown, "exchange", fmt.Errorf("%w: unknown sign-in state", shared.ErrAuthFailed))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.opts.HTTPClient)
	cfg := p.oauth
	cfg.RedirectURL = pending.redirectURL

	tok, err := cfg.Exchange(ctx, resp.Code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		return nil, newError(Classify(err), "exchange", err)
	}

	principal, raw, err := p.verify(ctx, tok)
	if err != nil {
		return nil, err
	}

	if err := p.opts.Cache.Save(credentialFromToken(tok, raw)); err != nil {
		return nil, newError(KindUnknown, "exchange", err)
	}

	p.logger.Info("signed in", "subject", principal.Subject, "email", principal.Email)
	p.publish()
	return principal, nil
}

func (p *GoogleProvider) verify(ctx context.Context, tok *oauth2.Token) (*Principal, string, error) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, "", newError(KindConfiguration, "verify", errors.New("token response has no id_token; is the openid scope configured?"))
	}

	idToken, err := p.verifier.Verify(oidc.ClientContext(ctx, p.opts.HTTPClient), raw)
	if err != nil {
		return nil, "", newError(Classify(err), "verify", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, "", newError(KindUnknown, "verify", err)
	}

	principal := claims.principal()
	principal.Subject = idToken.Subject
	principal.Expiry = idToken.Expiry
	return principal, raw, nil
}

// SignOut erases the cached credential and notifies listeners.
func (p *GoogleProvider) SignOut() error {
	if err := p.opts.Cache.Erase(); err != nil {
		return newError(KindUnknown, "sign out", err)
	}
	p.logger.Info("signed out")
	p.publish()
	return nil
}

// Close stops the watcher and any pending renewal.
func (p *GoogleProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.listeners = make(map[int]func(ChangeEvent))
	if p.renewal != nil {
		p.renewal.Stop()
		p.renewal = nil
	}
	if p.stopWatch != nil {
		stop := p.stopWatch
		p.stopWatch = nil
		return stop()
	}
	return nil
}

// publish re-reads the cache and notifies listeners when the session changed.
//
// Publishes run one at a time so listeners see changes in the order the cache went through them.
func (p *GoogleProvider) publish() {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	principal, _, err := p.current()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	event := ChangeEvent{Principal: principal, Err: err}
	if err == nil {
		fp := fingerprint(principal)
		if fp == p.last {
			p.mu.Unlock()
			return
		}
		p.last = fp
	}
	p.scheduleRenewalLocked()
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (p *GoogleProvider) notifyTransient(err error) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.Lock()
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(ChangeEvent{Err: err})
	}
}

func (p *GoogleProvider) snapshotListenersLocked() []func(ChangeEvent) {
	listeners := make([]func(ChangeEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

// scheduleRenewalLocked arms a timer for the cached credential's expiry.
func (p *GoogleProvider) scheduleRenewalLocked() {
	if p.renewal != nil {
		p.renewal.Stop()
		p.renewal = nil
	}

	principal, _, err := p.current()
	if err != nil || principal == nil || principal.Expiry.IsZero() {
		return
	}

	wait := max(principal.Expiry.Sub(p.opts.Now())-p.opts.ExpirySkew, 0)
	p.renewal = time.AfterFunc(wait, p.renew)
}

// renew refreshes an expiring credential.
//
// A rejected refresh token signs the user out. Network failures are reported as transient and retried.
func (p *GoogleProvider) renew() {
	cred, err := p.opts.Cache.Load()
	if err != nil {
		p.publish()
		return
	}
	if cred.RefreshToken == "" {
		p.publish()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.opts.HTTPClient)

	stale := cred.Token()
	stale.Expiry = p.opts.Now().Add(-time.Minute)
	tok, err := p.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			p.logger.Warn("refresh token rejected; signing out", "error", err)
			if err := p.opts.Cache.Erase(); err != nil {
				p.logger.Error("failed to erase credential", "error", err)
			}
			p.publish()
			return
		}

		p.logger.Warn("credential renewal failed; will retry", "error", err, "retry", p.opts.RenewRetry)
		p.retryRenewal()
		p.notifyTransient(newError(Classify(err), "renew", err))
		return
	}

	principal, raw, err := p.verify(ctx, tok)
	if err != nil {
		p.logger.Warn("renewed id token rejected; will retry", "error", err, "retry", p.opts.RenewRetry)
		p.retryRenewal()
		p.notifyTransient(err)
		return
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.RefreshToken
	}
	if err := p.opts.Cache.Save(credentialFromToken(tok, raw)); err != nil {
		p.logger.Error("failed to save renewed credential", "error", err)
		return
	}

	p.logger.Debug("credential renewed", "subject", principal.Subject, "expiry", principal.Expiry)
	p.publish()
}

func (p *GoogleProvider) retryRenewal() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.renewal != nil {
		p.renewal.Stop()
	}
	p.renewal = time.AfterFunc(p.opts.RenewRetry, p.renew)
}

func fingerprint(p *Principal) string {
	if p == nil {
		return "-"
	}
	return p.Subject + "|" + p.Expiry.UTC().Format(time.RFC3339)
}
