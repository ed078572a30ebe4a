package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser    = "USER"
	RoleAdmin   = "ADMIN"
	RoleService = "SERVICE"
)

// Principal is the authenticated caller. ID is the JWT subject and becomes
// the seat holder.
type Principal struct {
	ID   string
	Role string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTMiddleware accepts HS256 bearer tokens signed with secret.
func JWTMiddleware(secret string) func(next http.Handler) http.Handler {
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "missing bearer token"})
				return
			}

			var claims Claims
			tok, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil || !tok.Valid || claims.Subject == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "invalid token"})
				return
			}

			role := claims.Role
			if role == "" {
				role = RoleUser
			}
			ctx := WithPrincipal(r.Context(), Principal{ID: claims.Subject, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated"})
				return
			}
			if !allowed[p.Role] {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
