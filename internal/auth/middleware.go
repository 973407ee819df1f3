package auth

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/logger"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Middleware rejects requests whose bearer token is not a valid token of kind
// and puts the claims on the request context.
func Middleware(tokens *Tokens, kind Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Verify(kind, r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, ErrMissingSecret) {
					apperrors.WriteError(w, logger.RequestID(r.Context()), apperrors.InternalError("token secret is not configured").WithCause(err))
					return
				}
				apperrors.WriteError(w, logger.RequestID(r.Context()), apperrors.Unauthorized("Authorization failed").WithCause(err))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// RequireUser returns a 403 error unless the token on ctx belongs to userID.
func RequireUser(ctx context.Context, userID string) error {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return apperrors.Unauthorized("Authorization failed")
	}
	if claims.UserID != userID {
		return apperrors.Forbidden("Token does not belong to this user")
	}
	return nil
}
