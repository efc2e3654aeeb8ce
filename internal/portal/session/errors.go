package session

import (
	"net/http"

	"github.com/qualtrack/qualtrack/internal/common/apperrors"
)

var (
	ErrAuth          = apperrors.New("authentication failed").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidToken  = ErrAuth.New("Invalid access_token")
	ErrTokenExpired  = ErrAuth.New("access_token expired")
	ErrNoSession     = apperrors.New("no active session").SetStatusCode(http.StatusUnauthorized)
	ErrResetRequired = apperrors.New("password reset required before sign-in")
)

// Auto-logout reasons carried on session.autologout events.
const (
	ReasonTokenExpired = "access_token expired"
	ReasonInvalidToken = "Invalid access_token"
)
