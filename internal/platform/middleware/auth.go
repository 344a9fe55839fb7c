package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sproutmarket/pkg/requestcontext"
)

// TokenValidator validates an already-issued access token and returns the
// identity claims the engine trusts. Token issuance lives elsewhere.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is the validated (actor, role, farm) triple attached to requests.
type Claims struct {
	ActorID string
	Role    string
	FarmID  string
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity on the context for services to authorize against.
func RequireAuth(validator TokenValidator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")

			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				log.Warn("unauthorized access - missing token",
					zap.String("request_id", requestcontext.RequestID(r.Context())),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				log.Warn("unauthorized access - invalid token",
					zap.Error(err),
					zap.String("request_id", requestcontext.RequestID(r.Context())),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx, err := contextWithClaims(r.Context(), claims)
			if err != nil {
				log.Warn("unauthorized access - malformed claims",
					zap.Error(err),
					zap.String("request_id", requestcontext.RequestID(r.Context())),
				)
				writeUnauthorized(w, "Invalid token claims")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + desc + `"}`))
}
