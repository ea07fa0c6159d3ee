package identity

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
)

// tokenClaims are the access token fields the session reads. The signature is
// not checked.
type tokenClaims struct {
	Expiry   time.Time
	IssuedAt time.Time
	Subject  string
	Username string
	Email    string
}

func parseTokenClaims(raw string) (tokenClaims, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return tokenClaims{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return tokenClaims{}, fmt.Errorf("%w: unexpected claims type", apperrors.ErrInvalidToken)
	}

	var tc tokenClaims
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return tokenClaims{}, fmt.Errorf("%w: missing exp", apperrors.ErrInvalidToken)
	}
	tc.Expiry = exp.Time
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	tc.Subject, _ = claims.GetSubject()
	tc.Username, _ = claims["preferred_username"].(string)
	tc.Email, _ = claims["email"].(string)
	return tc, nil
}

// clockSkew follows the provider convention: whole seconds of local time minus issue time.
func clockSkew(localNow, issuedAt time.Time) time.Duration {
	if issuedAt.IsZero() {
		return 0
	}
	return time.Duration(localNow.Unix()-issuedAt.Unix()) * time.Second
}
