package portalsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/qualtrack/qualtrack/internal/common/httpx"
	"github.com/qualtrack/qualtrack/internal/portalsrv/config"
	"github.com/qualtrack/qualtrack/internal/portalsrv/store"
)

const msgInvalidCredentials = "Invalid email or password."

type authContextKey string

const accountContextKey = authContextKey("account")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *PortalServer) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, ok := s.store.AccountByEmail(req.Email)
	if !ok {
		httpx.SendErrorMsg(ctx, w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	token, err := mintToken(acct, acct.Role)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to sign token")
		httpx.SendErrorMsg(ctx, w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	log.Ctx(ctx).Info().Str("user_id", acct.UserID).Bool("password_changed", acct.PasswordChanged).Msg("login")
	httpx.SendSuccess(ctx, w, http.StatusOK, "", map[string]any{
		"accessToken":      token,
		"password_changed": acct.PasswordChanged,
	})
}

func (s *PortalServer) changeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct := accountFromContext(ctx)

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "role is required")
		return
	}

	if !roleAllowed(acct, req.Role) {
		httpx.SendErrorMsg(ctx, w, http.StatusForbidden, "You do not have access to the requested role.")
		return
	}

	token, err := mintToken(acct, req.Role)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to sign token")
		httpx.SendErrorMsg(ctx, w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	log.Ctx(ctx).Info().Str("user_id", acct.UserID).Str("role", req.Role).Msg("role changed")
	httpx.SendSuccess(ctx, w, http.StatusOK, "", map[string]any{
		"accessToken": token,
	})
}

func (s *PortalServer) resetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct := accountFromContext(ctx)

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Password) < 8 {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusInternalServerError, "unable to store password")
		return
	}
	if err := s.store.SetPassword(acct.Email, string(hash)); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusInternalServerError, "unable to store password")
		return
	}

	token, err := mintToken(acct, acct.Role)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to sign token")
		httpx.SendErrorMsg(ctx, w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	log.Ctx(ctx).Info().Str("user_id", acct.UserID).Msg("password reset completed")
	httpx.SendSuccess(ctx, w, http.StatusOK, "Password updated successfully.", map[string]any{
		"accessToken": token,
	})
}

// authenticate verifies the bearer token and attaches the account to the
// request context.
func (s *PortalServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httpx.SendErrorMsg(ctx, w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(config.Config().Auth.SigningSecret), nil
		})
		if err != nil {
			httpx.SendErrorMsg(ctx, w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		userID, _ := claims["user_id"].(string)
		acct, ok := s.store.AccountByID(userID)
		if !ok {
			httpx.SendErrorMsg(ctx, w, http.StatusUnauthorized, "unknown account")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, accountContextKey, acct)))
	})
}

func accountFromContext(ctx context.Context) store.Account {
	acct, _ := ctx.Value(accountContextKey).(store.Account)
	return acct
}

// roleAllowed ignores case: role claims are lowercase in fixtures but the
// client sends canonical names.
func roleAllowed(acct store.Account, role string) bool {
	if strings.EqualFold(role, acct.Role) {
		return true
	}
	for _, allowed := range acct.AllowedRoles {
		if strings.EqualFold(allowed, role) {
			return true
		}
	}
	return false
}

func mintToken(acct store.Account, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"role":       role,
		"user_id":    acct.UserID,
		"email":      acct.Email,
		"first_name": acct.FirstName,
		"last_name":  acct.LastName,
		"iat":        now.Unix(),
		"exp":        now.Add(config.Config().Auth.GetTokenValidityOrDefault()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.Config().Auth.SigningSecret))
}
