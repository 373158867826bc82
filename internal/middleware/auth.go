package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// User is the authenticated principal the cart core cares about. Token
// storage and credential handling live outside the storefront.
type User struct {
	ID         string
	Email      string
	IsAgent    bool
	SavingsPct float64 // agent commission percentage, zero for customers
}

// AuthMiddleware loads the logged-in user from the session, if any
type AuthMiddleware struct {
	store sessions.Store
}

// NewAuthMiddleware creates an auth middleware over the session store
func NewAuthMiddleware(store sessions.Store) *AuthMiddleware {
	return &AuthMiddleware{store: store}
}

// LoadUser adds the session's user to the request context. Requests without
// a valid user proceed as guest.
func (m *AuthMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, "session")
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		userID, ok := session.Values["user_id"].(string)
		if !ok || userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		user := &User{ID: userID}
		if email, ok := session.Values["user_email"].(string); ok {
			user.Email = email
		}
		if isAgent, ok := session.Values["is_agent"].(bool); ok {
			user.IsAgent = isAgent
		}
		if pct, ok := session.Values["agent_savings_pct"].(float64); ok {
			user.SavingsPct = pct
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext returns the authenticated user, or nil for guests
func GetUserFromContext(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// RequireAuth rejects requests without an authenticated user
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
