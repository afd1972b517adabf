package store

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	// AccessTokenKey holds the bearer token.
	AccessTokenKey = "spotify_access_token"
	// TokenExpiryKey holds the absolute expiry as epoch milliseconds.
	TokenExpiryKey = "spotify_token_expiry"
	// CodeVerifierKey holds the PKCE verifier while an authorization is pending.
	CodeVerifierKey = "code_verifier"
)

// ErrNoCredential is returned by Token when nothing is stored.
var ErrNoCredential = errors.New("no stored credential")

// Credential is a stored access token and the instant it stops being usable.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token is non-empty and not yet expired at now.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// ExpiresWithin reports whether the credential is unusable within d of now.
func (c *Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !c.Valid(now.Add(d))
}

// CredentialStore keeps the Spotify credential and the transient PKCE
// verifier in a key-value area.
type CredentialStore struct {
	kv    KV
	now   func() time.Time
	mutex sync.Mutex
}

// NewCredentialStore creates a credential store over kv.
func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv, now: time.Now}
}

// Now returns the store's notion of the current time.
func (s *CredentialStore) Now() time.Time {
	return s.now()
}

// Save stores token with an expiry of now plus expiresIn, replacing any prior
// credential. If either write fails no credential is left behind, so an old
// token is never paired with the new expiry.
func (s *CredentialStore) Save(token string, expiresIn time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	expiresAt := s.now().Add(expiresIn)
	if err := s.kv.Set(TokenExpiryKey, strconv.FormatInt(expiresAt.UnixMilli(), 10)); err != nil {
		return s.discard(fmt.Errorf("failed to save token expiry: %w", err))
	}
	if err := s.kv.Set(AccessTokenKey, token); err != nil {
		return s.discard(fmt.Errorf("failed to save access token: %w", err))
	}
	return nil
}

func (s *CredentialStore) discard(cause error) error {
	if err := s.kv.Delete(AccessTokenKey, TokenExpiryKey); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to discard partial credential: %w", err))
	}
	return cause
}

// Load returns the stored credential without checking expiry, or nil when
// no token is stored. A missing or unreadable expiry loads as already expired.
func (s *CredentialStore) Load() (*Credential, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.load()
}

func (s *CredentialStore) load() (*Credential, error) {
	token, ok, err := s.kv.Get(AccessTokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}
	if !ok {
		return nil, nil
	}

	credential := &Credential{AccessToken: token}

	rawExpiry, ok, err := s.kv.Get(TokenExpiryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load token expiry: %w", err)
	}
	if ok {
		if ms, err := strconv.ParseInt(rawExpiry, 10, 64); err == nil {
			credential.ExpiresAt = time.UnixMilli(ms)
		}
	}

	return credential, nil
}

// IsValid reports whether credential is present and unexpired, with no buffer.
func (s *CredentialStore) IsValid(credential *Credential) bool {
	return credential.Valid(s.now())
}

// Clear removes token, expiry and verifier in a single delete.
func (s *CredentialStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.kv.Delete(AccessTokenKey, TokenExpiryKey, CodeVerifierKey); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// SaveVerifier stores the PKCE verifier of a pending authorization.
func (s *CredentialStore) SaveVerifier(verifier string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.kv.Set(CodeVerifierKey, verifier); err != nil {
		return fmt.Errorf("failed to save code verifier: %w", err)
	}
	return nil
}

// TakeVerifier returns and removes the pending PKCE verifier. It can succeed
// at most once per SaveVerifier.
func (s *CredentialStore) TakeVerifier() (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	verifier, ok, err := s.kv.Get(CodeVerifierKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to load code verifier: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	if err := s.kv.Delete(CodeVerifierKey); err != nil {
		return "", false, fmt.Errorf("failed to discard code verifier: %w", err)
	}
	return verifier, true, nil
}

// Token implements oauth2.TokenSource. It reads the store on every call so
// clients always send the most recently saved token.
func (s *CredentialStore) Token() (*oauth2.Token, error) {
	credential, err := s.Load()
	if err != nil {
		return nil, err
	}
	if credential == nil || credential.AccessToken == "" {
		return nil, ErrNoCredential
	}

	return &oauth2.Token{
		AccessToken: credential.AccessToken,
		TokenType:   "Bearer",
		Expiry:      credential.ExpiresAt,
	}, nil
}
