package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/observability"
	"github.com/patrickwarner/floodwatch/internal/token"
)

const (
	msgNoToken      = "Unauthorized: No token provided"
	msgInvalidToken = "Unauthorized: Invalid token"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (token.Claims, error)
}

type identityKey struct{}

// RequireIdentity rejects requests without a valid bearer token and stores the
// verified claims in the request context for downstream handlers.
func RequireIdentity(verifier TokenVerifier, logger *zap.Logger, metrics observability.MetricsRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				metrics.IncrementAuthRejections("missing_token")
				writeUnauthorized(w, msgNoToken)
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				LoggerFromRequest(r, logger).Warn("token verification failed", zap.Error(err))
				metrics.IncrementAuthRejections("invalid_token")
				writeUnauthorized(w, msgInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// WithIdentity returns a copy of ctx carrying claims.
func WithIdentity(ctx context.Context, claims token.Claims) context.Context {
	return context.WithValue(ctx, identityKey{}, claims)
}

// IdentityFromContext returns the caller's claims set by RequireIdentity.
func IdentityFromContext(ctx context.Context) (token.Claims, bool) {
	claims, ok := ctx.Value(identityKey{}).(token.Claims)
	return claims, ok
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
