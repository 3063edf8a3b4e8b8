package http

import (
	"context"
	"net/http"

	"fleet-track/ingestion/internal/auth"
)

type contextKey string

const bindingKey contextKey = "binding"

type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing X-API-Key header"}`))
			return
		}

		binding, ok := m.auth.Authenticate(r.Context(), apiKey)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid API key"}`))
			return
		}

		ctx := context.WithValue(r.Context(), bindingKey, binding)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BindingFromContext returns the asset binding the auth middleware attached.
func BindingFromContext(ctx context.Context) (auth.Binding, bool) {
	b, ok := ctx.Value(bindingKey).(auth.Binding)
	return b, ok
}
