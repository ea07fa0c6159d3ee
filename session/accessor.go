package session

import (
	"time"

	"github.com/jrsteele09/xlsx-validator-shell/identity"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"golang.org/x/oauth2"
)

// Accessor is the read-only view of the live session handed to views.
// It also satisfies oauth2.TokenSource so API clients always send the current token.
type Accessor interface {
	Authenticated() bool
	State() State
	Snapshot() identity.Token
	ValidFor() time.Duration
	Token() (*oauth2.Token, error)
}

type accessor struct {
	c *Controller
}

var _ oauth2.TokenSource = accessor{}

// Accessor returns a read-only view of the controller's session.
func (c *Controller) Accessor() Accessor {
	return accessor{c: c}
}

func (a accessor) State() State {
	return a.c.State()
}

// Authenticated also requires the token to be unexpired, skew included.
func (a accessor) Authenticated() bool {
	if a.c.State() != Authenticated {
		return false
	}
	tok := a.c.client.Token()
	return tok.Valid() && tok.ValidFor(identity.NowTimeFunc()) > 0
}

func (a accessor) Snapshot() identity.Token {
	return a.c.client.Token()
}

func (a accessor) ValidFor() time.Duration {
	return a.c.client.Token().ValidFor(identity.NowTimeFunc())
}

func (a accessor) Token() (*oauth2.Token, error) {
	if !a.Authenticated() {
		return nil, apperrors.ErrNoSession
	}
	snap := a.c.client.Token()
	return &oauth2.Token{
		AccessToken: snap.AccessToken,
		TokenType:   "Bearer",
		Expiry:      snap.Expiry.Add(snap.ClockSkew),
	}, nil
}
