package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// keycloakDevicePath is appended to the issuer when discovery does not
// advertise a device authorization endpoint.
const keycloakDevicePath = "/protocol/openid-connect/auth/device"

// Device grant error codes that mean the user did not log in.
const (
	errAccessDenied = "access_denied"
	errExpiredToken = "expired_token"
)

var errNotAuthenticated = errors.New("not authenticated")

// OIDCClient is a Client backed by an OpenID Connect provider.
type OIDCClient struct {
	httpClient *http.Client
	prompter   Prompter

	// refreshMu serialises token renewals.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	opts      InitOptions
	oauth2Cfg *oauth2.Config
	verifier  *oidc.IDTokenVerifier
	token     *oauth2.Token
	snapshot  Token
}

var _ Client = (*OIDCClient)(nil)

type Option func(*OIDCClient)

// WithHTTPClient sets the client used for discovery and token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OIDCClient) { o.httpClient = c }
}

// WithPrompter sets where device login prompts are shown.
func WithPrompter(p Prompter) Option {
	return func(o *OIDCClient) { o.prompter = p }
}

func NewOIDCClient(opts ...Option) *OIDCClient {
	c := &OIDCClient{prompter: LogPrompter}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OIDCClient) withHTTPClient(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, c.httpClient)
}

// Initialize discovers the realm and obtains a session according to opts.OnLoad.
func (c *OIDCClient) Initialize(ctx context.Context, opts InitOptions) (bool, error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}
	ctx = c.withHTTPClient(ctx)

	provider, err := oidc.NewProvider(ctx, opts.IssuerURL())
	if err != nil {
		return false, fmt.Errorf("[identity Initialize] failed to create OIDC provider: %w", err)
	}

	endpoint := provider.Endpoint()
	if endpoint.DeviceAuthURL == "" {
		endpoint.DeviceAuthURL = opts.IssuerURL() + keycloakDevicePath
	}
	cfg := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       opts.scopes(),
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: opts.ClientID})

	c.mu.Lock()
	c.opts = opts
	c.oauth2Cfg = cfg
	c.verifier = verifier
	c.mu.Unlock()

	tok, err := c.login(ctx, cfg, opts)
	if errors.Is(err, errNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("[identity Initialize] login: %w", err)
	}

	if err := c.adopt(ctx, tok); err != nil {
		return false, fmt.Errorf("[identity Initialize] %w", err)
	}
	return true, nil
}

func (c *OIDCClient) login(ctx context.Context, cfg *oauth2.Config, opts InitOptions) (*oauth2.Token, error) {
	if opts.ClientSecret != "" {
		return clientCredentialsConfig(cfg).Token(ctx)
	}
	if opts.OnLoad == OnLoadCheckSSO {
		log.Info().Msg("check-sso: no silent session available")
		return nil, errNotAuthenticated
	}
	return c.deviceLogin(ctx, cfg)
}

func (c *OIDCClient) deviceLogin(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}

	if c.prompter != nil {
		c.prompter.Prompt(DevicePrompt{
			VerificationURI:         da.VerificationURI,
			VerificationURIComplete: da.VerificationURIComplete,
			UserCode:                da.UserCode,
			Expiry:                  da.Expiry,
		})
	}

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err == nil {
		return tok, nil
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && (re.ErrorCode == errAccessDenied || re.ErrorCode == errExpiredToken) {
		log.Info().Str("reason", re.ErrorCode).Msg("Device login not completed")
		return nil, errNotAuthenticated
	}
	// The device code expired while the caller's context is still live.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		log.Info().Msg("Device login expired")
		return nil, errNotAuthenticated
	}
	return nil, fmt.Errorf("device access token: %w", err)
}

func clientCredentialsConfig(cfg *oauth2.Config) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.Endpoint.TokenURL,
		Scopes:       cfg.Scopes,
	}
}

// adopt stores tok as the current session, verifying the id_token if one was issued.
func (c *OIDCClient) adopt(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", apperrors.ErrInvalidToken)
	}
	now := NowTimeFunc()

	snap := Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
	if tc, err := parseTokenClaims(tok.AccessToken); err == nil {
		snap.Expiry = tc.Expiry
		snap.IssuedAt = tc.IssuedAt
		snap.ClockSkew = clockSkew(now, tc.IssuedAt)
		snap.Subject = tc.Subject
		snap.Username = tc.Username
		snap.Email = tc.Email
	} else {
		log.Debug().Err(err).Msg("Opaque access token, using token endpoint expiry")
	}

	c.mu.RLock()
	verifier := c.verifier
	c.mu.RUnlock()

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" && verifier != nil {
		idToken, err := verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return fmt.Errorf("%w: id token verification failed: %v", apperrors.ErrInvalidToken, err)
		}
		var claims struct {
			Sub               string `json:"sub"`
			Email             string `json:"email"`
			PreferredUsername string `json:"preferred_username"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return fmt.Errorf("%w: failed to extract claims: %v", apperrors.ErrInvalidToken, err)
		}
		snap.Subject = claims.Sub
		if claims.Email != "" {
			snap.Email = claims.Email
		}
		if claims.PreferredUsername != "" {
			snap.Username = claims.PreferredUsername
		}
	}

	c.mu.Lock()
	c.token = tok
	c.snapshot = snap
	c.mu.Unlock()
	return nil
}

// Refresh renews the session when fewer than minValiditySeconds remain.
func (c *OIDCClient) Refresh(ctx context.Context, minValiditySeconds int) (bool, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	tok, cfg, snap := c.token, c.oauth2Cfg, c.snapshot
	c.mu.RUnlock()

	if cfg == nil {
		return false, apperrors.ErrNotInitialized
	}
	if tok == nil {
		return false, apperrors.ErrNoSession
	}

	if minValiditySeconds >= 0 {
		remaining := snap.ValidFor(NowTimeFunc())
		if remaining.Seconds() >= float64(minValiditySeconds) {
			return false, nil
		}
	}

	ctx = c.withHTTPClient(ctx)
	var (
		renewed *oauth2.Token
		err     error
	)
	switch {
	case tok.RefreshToken != "":
		renewed, err = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	case cfg.ClientSecret != "":
		renewed, err = clientCredentialsConfig(cfg).Token(ctx)
	default:
		return false, fmt.Errorf("[identity Refresh] %w: no refresh token", apperrors.ErrRefreshFailed)
	}
	if err != nil {
		return false, fmt.Errorf("[identity Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}

	if err := c.adopt(ctx, renewed); err != nil {
		return false, fmt.Errorf("[identity Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}
	return true, nil
}

// Token returns a snapshot of the current session.
func (c *OIDCClient) Token() Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}
