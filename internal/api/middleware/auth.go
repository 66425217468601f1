package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	appErr "github.com/uml-studio/engine/pkg/errors"
)

type userKeyType string

const (
	UserIDKey userKeyType = "user_id"
	TokenKey  userKeyType = "access_token"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*jwt.RegisteredClaims, error)
}

// Auth validates the Bearer token and adds the caller's user id and the raw
// token to the context. Failures are answered with a JSON 401.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
				writeError(w, r, appErr.New(appErr.CodeUnauthorized, "missing bearer token"))
				return
			}
			tokenStr := strings.TrimSpace(ah[len("Bearer "):])
			if tokenStr == "" {
				writeError(w, r, appErr.New(appErr.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := verifier.VerifyToken(r.Context(), tokenStr)
			if err != nil {
				if !appErr.IsCode(err, appErr.CodeUnavailable) {
					err = appErr.Wrap(err, appErr.CodeUnauthorized, "invalid or expired token")
				}
				writeError(w, r, err)
				return
			}
			uid, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, r, appErr.New(appErr.CodeUnauthorized, "invalid token subject"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, uid)
			ctx = context.WithValue(ctx, TokenKey, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated caller, or uuid.Nil outside Auth.
func GetUserID(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// GetToken returns the bearer token accepted by Auth.
func GetToken(ctx context.Context) string {
	if v, ok := ctx.Value(TokenKey).(string); ok {
		return v
	}
	return ""
}
