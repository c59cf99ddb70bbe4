package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestBearerAuth_Success(t *testing.T) {
	mockValidator := new(MockTokenValidator)
	mockValidator.On("ValidateToken", mock.Anything, "nw_0123456789abcdef").Return("newsroom", nil)

	var capturedClient string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedClient = GetClient(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := BearerAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nw_0123456789abcdef")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "newsroom", capturedClient)
	mockValidator.AssertExpectations(t)
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	mockValidator := new(MockTokenValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := BearerAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestBearerAuth_InvalidFormat(t *testing.T) {
	mockValidator := new(MockTokenValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := BearerAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestBearerAuth_ValidationFails(t *testing.T) {
	mockValidator := new(MockTokenValidator)
	mockValidator.On("ValidateToken", mock.Anything, "nw_bad").Return("", errors.New("invalid token"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := BearerAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nw_bad")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api token")
	mockValidator.AssertExpectations(t)
}

func TestStaticToken(t *testing.T) {
	v := StaticToken{Token: "secret"}

	client, err := v.ValidateToken(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "api-token", client)

	_, err = v.ValidateToken(context.Background(), "secreT")
	assert.Error(t, err)

	_, err = StaticToken{}.ValidateToken(context.Background(), "")
	assert.Error(t, err, "an unset token never authenticates")
}

func TestGetClient_MissingContext(t *testing.T) {
	assert.Equal(t, "", GetClient(context.Background()))
}
