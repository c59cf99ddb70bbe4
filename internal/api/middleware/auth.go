package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/cloo-solutions/newsweave/internal/api"
)

type contextKey string

const ClientKey contextKey = "client"

// ClientHeader carries the authenticated client back out to the middleware
// that wraps authentication.
const ClientHeader = "X-Newsweave-Client"

var errInvalidToken = errors.New("invalid api token")

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts exactly one shared API token and names its bearer.
type StaticToken struct {
	Token  string
	Client string
}

func (s StaticToken) ValidateToken(_ context.Context, token string) (string, error) {
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return "", errInvalidToken
	}
	client := s.Client
	if client == "" {
		client = "api-token"
	}
	return client, nil
}

func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			client, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			r.Header.Set(ClientHeader, client)
			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClient(ctx context.Context) string {
	client, _ := ctx.Value(ClientKey).(string)
	return client
}

func requestClient(r *http.Request) string {
	if client := GetClient(r.Context()); client != "" {
		return client
	}
	return r.Header.Get(ClientHeader)
}
