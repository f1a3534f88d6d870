package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battlejwt "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "battle.claims"

// callerClaims returns the authenticated identity, or nil outside the auth
// middleware.
func callerClaims(r *http.Request) *battlejwt.Claims {
	claims, _ := r.Context().Value(claimsKey).(*battlejwt.Claims)
	return claims
}

// Authenticate validates the bearer token and stashes the claims on the
// request context.
func Authenticate(provider battlejwt.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := provider.ValidateToken(token)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityLimiter hands out one token-bucket limiter per user.
type identityLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[battletypes.UserID]*rate.Limiter
}

func newIdentityLimiter(limit rate.Limit, burst int) *identityLimiter {
	return &identityLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[battletypes.UserID]*rate.Limiter),
	}
}

func (l *identityLimiter) allow(userID battletypes.UserID) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// RateLimit throttles the wrapped handler per authenticated identity. Must
// run inside Authenticate.
func RateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := newIdentityLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := callerClaims(r)
			if claims == nil {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}
			if !limiter.allow(claims.UserID) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
