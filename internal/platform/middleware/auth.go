package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates operator bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*OperatorClaims, error)
}

// OperatorClaims identifies the operator behind a validated token.
type OperatorClaims struct {
	OperatorID string
	Role       string
}

type contextKeyOperatorID struct{}

// GetOperatorID retrieves the authenticated operator id from the context.
func GetOperatorID(ctx context.Context) string {
	operatorID, ok := ctx.Value(contextKeyOperatorID{}).(string)
	if !ok {
		return ""
	}
	return operatorID
}

// RequireAuth guards the read side of the operator API with bearer tokens.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyOperatorID{}, claims.OperatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
