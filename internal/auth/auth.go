package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	// ErrMissingCredentials is returned when the Spotify client ID or
	// secret is empty.
	ErrMissingCredentials = errors.New("missing Spotify client ID or secret")

	// ErrStateMismatch is returned when the OAuth state parameter
	// doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Config holds the Spotify application credentials and callback URL.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// TokenPath overrides where the exchanged token is persisted.
	// Empty means the user config dir.
	TokenPath string
}

// Authenticator wraps the Spotify OAuth2 flows: the authorization-code
// flow for organizer and guest logins, and the client-credentials flow
// for catalog lookups that need no user.
type Authenticator struct {
	cfg   Config
	auth  *spotifyauth.Authenticator
	cache *TokenCache
}

// New creates an Authenticator. The scopes cover reading a guest's
// listening taste and writing the exported playlist.
func New(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		var err error
		tokenPath, err = defaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("resolving token cache path: %w", err)
		}
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserTopRead,
			spotifyauth.ScopeUserReadRecentlyPlayed,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
	)

	return &Authenticator{
		cfg:   cfg,
		auth:  auth,
		cache: NewTokenCache(tokenPath),
	}, nil
}

// AuthURL returns the Spotify authorization URL for the given state.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Exchange completes the authorization-code flow from the callback
// request and persists the token so a restart can reuse it.
func (a *Authenticator) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	if r.URL.Query().Get("state") != state {
		return nil, ErrStateMismatch
	}
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		return nil, fmt.Errorf("spotify auth error: %s", errMsg)
	}

	token, err := a.auth.Token(ctx, state, r)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}

	// A failed cache write does not fail the login.
	_ = a.cache.Save(token)
	return token, nil
}

// ClientFor builds an authenticated API client from a user token.
// oauth2 refreshes the token transparently when it expires.
func (a *Authenticator) ClientFor(ctx context.Context, token *oauth2.Token) *spotify.Client {
	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))
}

// CachedClient builds a client from the persisted token of the last
// completed login, if any. Returns (nil, nil) when no token is cached.
func (a *Authenticator) CachedClient(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if token == nil {
		return nil, nil
	}
	return a.ClientFor(ctx, token), nil
}

// AppClient builds an API client via the client-credentials flow. It
// can read the public catalog (track metadata, audio features) but not
// user data.
func (a *Authenticator) AppClient(ctx context.Context) (*spotify.Client, error) {
	cfg := &clientcredentials.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := cfg.Token(ctx); err != nil {
		return nil, fmt.Errorf("requesting client-credentials token: %w", err)
	}
	return spotify.New(cfg.Client(ctx), spotify.WithRetry(true)), nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
