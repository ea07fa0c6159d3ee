// Package identity wraps an OpenID Connect provider (Keycloak) behind a small
// session client: initialise once, refresh on demand, read the current token.
package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// OnLoad decides how Initialize obtains a session.
type OnLoad string

const (
	// OnLoadLoginRequired forces an interactive login when no session can be obtained silently.
	OnLoadLoginRequired OnLoad = "login-required"
	// OnLoadCheckSSO only obtains a session when no user interaction is needed.
	OnLoadCheckSSO OnLoad = "check-sso"
)

// InitOptions identify the provider realm and client to authenticate against.
type InitOptions struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
	Scopes       []string
	OnLoad       OnLoad
}

// IssuerURL returns the realm issuer, e.g. https://id.example.com/realms/validator.
func (o InitOptions) IssuerURL() string {
	return strings.TrimRight(o.URL, "/") + "/realms/" + url.PathEscape(o.Realm)
}

func (o InitOptions) Validate() error {
	if o.URL == "" || o.Realm == "" || o.ClientID == "" {
		return fmt.Errorf("%w: url, realm and client id are required", apperrors.ErrInvalidRequest)
	}
	switch o.OnLoad {
	case OnLoadLoginRequired, OnLoadCheckSSO:
		return nil
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnsupportedOnLoad, o.OnLoad)
	}
}

func (o InitOptions) scopes() []string {
	if len(o.Scopes) > 0 {
		return o.Scopes
	}
	return []string{"openid", "profile", "email"}
}

// ParseScopes splits a comma or space separated scope list.
func ParseScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

// Token is a read-only snapshot of the current session.
type Token struct {
	AccessToken string
	Expiry      time.Time
	IssuedAt    time.Time
	// ClockSkew is the local clock minus the provider clock at issue time.
	ClockSkew time.Duration
	Subject   string
	Username  string
	Email     string
}

// Valid reports whether an access token is held.
func (t Token) Valid() bool {
	return t.AccessToken != ""
}

// RemainingValidity is expiry + skew - now.
func RemainingValidity(expiry time.Time, skew time.Duration, now time.Time) time.Duration {
	return expiry.Add(skew).Sub(now)
}

// ValidFor returns how long the token remains valid at now, corrected for clock skew.
func (t Token) ValidFor(now time.Time) time.Duration {
	return RemainingValidity(t.Expiry, t.ClockSkew, now)
}

// Client is the identity session client consumed by the session controller.
type Client interface {
	// Initialize resolves true iff an authenticated session exists or login succeeded.
	Initialize(ctx context.Context, opts InitOptions) (bool, error)
	// Refresh renews the token if fewer than minValiditySeconds remain.
	// A negative value forces a refresh. It resolves true when a new token was obtained.
	Refresh(ctx context.Context, minValiditySeconds int) (bool, error)
	// Token returns the current session snapshot.
	Token() Token
}
