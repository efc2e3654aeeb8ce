package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// Claims are the token claims the portal client relies on. The client does
// not hold the server's signing key, so tokens are decoded without signature
// verification; rejecting forged or revoked tokens is the server's job and
// shows up here as a 401.
type Claims struct {
	Role      string `mapstructure:"role"`
	UserID    string `mapstructure:"user_id"`
	Email     string `mapstructure:"email"`
	Exp       int64  `mapstructure:"exp"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

// DecodeToken extracts claims from a bearer token string.
func DecodeToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, ErrInvalidToken.Err(err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	var claims Claims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &claims,
		WeaklyTypedInput: true, // user_id and exp arrive as JSON numbers
	})
	if err != nil {
		return nil, ErrInvalidToken.Err(err)
	}
	if err := decoder.Decode(map[string]any(mapClaims)); err != nil {
		return nil, ErrInvalidToken.Err(err)
	}

	if claims.Role == "" || claims.UserID == "" || claims.Exp == 0 {
		return nil, ErrInvalidToken.Msg("token is missing required claims")
	}

	return &claims, nil
}

// Expiry returns the token expiration time.
func (c *Claims) Expiry() time.Time {
	return time.Unix(c.Exp, 0)
}

// Expired reports whether the token has expired as of now.
func (c *Claims) Expired(now time.Time) bool {
	return !now.Before(c.Expiry())
}

// DisplayName is the learner-facing name stored in the learner envelope.
func (c *Claims) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
