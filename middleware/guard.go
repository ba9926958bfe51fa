package middleware

import (
	"context"
	"net/http"
	"strings"

	goQR "github.com/MrEthical07/goQR"
	"github.com/MrEthical07/goQR/jwt"
)

// TokenParser verifies a device access token. [*jwt.Manager] satisfies it.
type TokenParser interface {
	ParseAccess(token string) (*jwt.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return claims, ok
}

// IdentityFromContext returns the caller identity established by [Identity]
// or [RequireIdentity]. Requests that passed through neither are anonymous.
func IdentityFromContext(ctx context.Context) goQR.Identity {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims == nil {
		return goQR.Anonymous()
	}
	return goQR.Principal(claims.Subject)
}

// Identity lets anonymous requests through and attaches the principal of
// requests carrying a valid bearer token. A present but invalid token is
// rejected rather than treated as anonymous, since an anonymous confirmer
// can complete a login for the session owner.
func Identity(parser TokenParser) func(http.Handler) http.Handler {
	return guard(parser, false)
}

// RequireIdentity rejects requests without a valid bearer token.
func RequireIdentity(parser TokenParser) func(http.Handler) http.Handler {
	return guard(parser, true)
}

func guard(parser TokenParser, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if parser == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.ParseAccess(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
