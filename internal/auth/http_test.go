// ABOUTME: Tests for HTTP bearer token middleware
// ABOUTME: Covers header extraction, query-param fallback, rejection paths

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   string
	}{
		{name: "valid", header: "Bearer abc123", wantToken: "abc123"},
		{name: "missing header", header: "", wantErr: "missing authorization header"},
		{name: "wrong scheme", header: "Basic abc123", wantErr: "invalid authorization header format"},
		{name: "empty token", header: "Bearer ", wantErr: "empty token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := ExtractBearerToken(tt.header)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantErr, errMsg)
		})
	}
}

func TestTokenFromRequest_QueryParamFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=abc123", nil)
	token, errMsg := TokenFromRequest(r)
	assert.Empty(t, errMsg)
	assert.Equal(t, "abc123", token)
}

func TestTokenFromRequest_HeaderWins(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")

	token, errMsg := TokenFromRequest(r)
	assert.Empty(t, errMsg)
	assert.Equal(t, "from-header", token)
}

func TestHTTPMiddleware(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	token, err := v.Generate("user-42", time.Hour)
	require.NoError(t, err)

	var gotCaller string
	handler := HTTPMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/messages/1", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-42", gotCaller)
	})

	t.Run("missing token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/messages/1", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/messages/1", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCallerFromContext_Empty(t *testing.T) {
	assert.Empty(t, CallerFromContext(context.Background()))
}
