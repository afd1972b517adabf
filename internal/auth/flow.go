package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"songseeker/internal/core"
	"songseeker/internal/store"
)

// RefreshBuffer is how long before expiry a credential is treated as expired.
const RefreshBuffer = 60 * time.Second

// Scopes requested on every authorization.
var Scopes = []string{
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadPlaybackState,
}

type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingRedirect
	StateAwaitingCallback
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthError reports a failed authorization attempt.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %s: %v", e.Reason, e.Err)
	}
	return "authorization failed: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Flow runs the authorization code flow with PKCE against Spotify.
type Flow struct {
	oauth          *oauth2.Config
	credentials    *store.CredentialStore
	navigator      Navigator
	verifierLength int
	logger         *zap.Logger

	mutex sync.Mutex
	state State
}

func NewFlow(config *core.SpotifyConfig, credentials *store.CredentialStore, navigator Navigator, logger *zap.Logger) *Flow {
	authURL := spotifyauth.AuthURL
	if config.AuthURL != "" {
		authURL = config.AuthURL
	}
	tokenURL := spotifyauth.TokenURL
	if config.TokenURL != "" {
		tokenURL = config.TokenURL
	}

	verifierLength := config.VerifierLength
	if verifierLength == 0 {
		verifierLength = core.DefaultVerifierLength
	}

	return &Flow{
		oauth: &oauth2.Config{
			ClientID:    config.ClientID,
			RedirectURL: config.RedirectURL,
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		credentials:    credentials,
		navigator:      navigator,
		verifierLength: verifierLength,
		logger:         logger,
	}
}

func (f *Flow) State() State {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.state
}

func (f *Flow) setState(state State) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.state != state {
		f.logger.Debug("Authorization state changed",
			zap.String("from", f.state.String()),
			zap.String("to", state.String()))
	}
	f.state = state
}

// Authenticated reports whether a valid credential is stored.
func (f *Flow) Authenticated() bool {
	credential, err := f.credentials.Load()
	if err != nil {
		f.logger.Warn("Failed to load credential", zap.Error(err))
		return false
	}
	return f.credentials.IsValid(credential)
}

// EnsureAuthenticated returns immediately when a valid credential is stored,
// otherwise it starts a new authorization and hands the URL to the navigator.
func (f *Flow) EnsureAuthenticated(ctx context.Context) error {
	if f.Authenticated() {
		f.setState(StateAuthenticated)
		return nil
	}
	return f.redirect(ctx)
}

// RefreshIfNeeded re-runs the authorization when the credential is absent or
// expires within RefreshBuffer.
func (f *Flow) RefreshIfNeeded(ctx context.Context) error {
	credential, err := f.credentials.Load()
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if credential != nil && !credential.ExpiresWithin(f.credentials.Now(), RefreshBuffer) {
		return nil
	}

	f.logger.Info("Access token expired or about to expire, re-authorizing")
	return f.redirect(ctx)
}

func (f *Flow) redirect(ctx context.Context) error {
	authorizeURL, err := f.BeginAuthorization()
	if err != nil {
		return err
	}
	if err := f.navigator.Navigate(ctx, authorizeURL); err != nil {
		f.setState(StateFailed)
		return fmt.Errorf("failed to navigate to authorization: %w", err)
	}
	return nil
}

// BeginAuthorization stores a fresh verifier and returns the authorize URL.
func (f *Flow) BeginAuthorization() (string, error) {
	f.setState(StateAwaitingRedirect)

	verifier, err := GenerateVerifier(f.verifierLength)
	if err != nil {
		f.setState(StateFailed)
		return "", err
	}
	if err := f.credentials.SaveVerifier(verifier); err != nil {
		f.setState(StateFailed)
		return "", fmt.Errorf("failed to store verifier: %w", err)
	}

	authorizeURL := f.oauth.AuthCodeURL("", oauth2.S256ChallengeOption(verifier))
	f.setState(StateAwaitingCallback)
	return authorizeURL, nil
}

// HandleCallback completes the flow from the query of the callback request.
func (f *Flow) HandleCallback(ctx context.Context, query url.Values) error {
	code := query.Get("code")
	if code == "" {
		if reason := query.Get("error"); reason != "" {
			f.logger.Warn("Authorization denied", zap.String("error", reason))
			f.setState(StateFailed)
			return &AuthError{Reason: reason}
		}
		f.setState(StateFailed)
		return &AuthError{Reason: "missing code"}
	}

	verifier, ok, err := f.credentials.TakeVerifier()
	if err != nil {
		return f.fail(&AuthError{Reason: "verifier unavailable", Err: err})
	}
	if !ok {
		return f.fail(&AuthError{Reason: "missing verifier"})
	}

	token, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return f.fail(&AuthError{Reason: retrieveErr.ErrorCode, Err: err})
		}
		return f.fail(&AuthError{Reason: "token exchange failed", Err: err})
	}

	if err := f.credentials.Save(token.AccessToken, expiresIn(token, f.credentials.Now())); err != nil {
		return f.fail(&AuthError{Reason: "failed to store token", Err: err})
	}

	f.setState(StateAuthenticated)
	f.logger.Info("Spotify authorization completed", zap.Time("expires_at", token.Expiry))
	return nil
}

func (f *Flow) fail(authErr *AuthError) error {
	if err := f.credentials.Clear(); err != nil {
		f.logger.Error("Failed to clear credentials", zap.Error(err))
	}
	f.setState(StateFailed)
	f.logger.Warn("Authorization failed", zap.Error(authErr))
	return authErr
}

// Logout removes every stored credential.
func (f *Flow) Logout() error {
	if err := f.credentials.Clear(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	f.setState(StateUnauthenticated)
	return nil
}

func expiresIn(token *oauth2.Token, now time.Time) time.Duration {
	if token.ExpiresIn > 0 {
		return time.Duration(token.ExpiresIn) * time.Second
	}
	if token.Expiry.IsZero() {
		return 0
	}
	return token.Expiry.Sub(now)
}
