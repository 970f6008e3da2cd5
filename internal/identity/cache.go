package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/peterbourgon/diskv/v3"
	"golang.org/x/oauth2"
)

const watchDebounce = 50 * time.Millisecond

// Credential is the persisted form of a signed-in session.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	IDToken      string    `json:"id_token"`
}

// Token converts the credential to an [oauth2.Token].
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

func credentialFromToken(tok *oauth2.Token, idToken string) Credential {
	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		IDToken:      idToken,
	}
}

// CredentialCache stores one credential per key in a flat directory.
//
// The in-memory diskv cache is disabled: other processes write to the same directory and every read must see the disk.
type CredentialCache struct {
	dir string
	key string
	d   *diskv.Diskv
}

// NewCredentialCache opens (creating if needed) the credential directory.
func NewCredentialCache(dir, key string) (*CredentialCache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	d := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 0,
		PathPerm:     0700,
		FilePerm:     0600,
		TempDir:      filepath.Join(dir, ".tmp"),
	})

	return &CredentialCache{dir: dir, key: key, d: d}, nil
}

// Dir returns the directory backing the cache.
func (c *CredentialCache) Dir() string { return c.dir }

// Path returns the file holding the credential.
func (c *CredentialCache) Path() string { return filepath.Join(c.dir, c.key) }

// Load reads the stored credential or returns [ErrNoCredential].
func (c *CredentialCache) Load() (Credential, error) {
	var cred Credential
	if !c.d.Has(c.key) {
		return cred, ErrNoCredential
	}

	data, err := c.d.Read(c.key)
	if err != nil {
		if os.IsNotExist(err) {
			return cred, ErrNoCredential
		}
		return cred, fmt.Errorf("failed to read credential: %w", err)
	}

	if err := json.Unmarshal(data, &cred); err != nil {
		return cred, fmt.Errorf("failed to decode credential: %w", err)
	}
	return cred, nil
}

// Save writes cred atomically.
func (c *CredentialCache) Save(cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := c.d.WriteStream(c.key, bytes.NewReader(data), true); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

// Erase removes the stored credential. Erasing an empty cache is not an error.
func (c *CredentialCache) Erase() error {
	if !c.d.Has(c.key) {
		return nil
	}
	if err := c.d.Erase(c.key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to erase credential: %w", err)
	}
	return nil
}

// Watch calls onChange (debounced) whenever the credential file is created, written, renamed, or removed.
//
// onError receives watcher errors; it may be nil. The returned function stops watching.
func (c *CredentialCache) Watch(onChange func(), onError func(error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, onChange)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) == c.key {
					fire()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return func() error {
		err := watcher.Close()
		<-done
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		return err
	}, nil
}
