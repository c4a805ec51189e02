package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchGoogleUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"42","email":"ada@example.com","email_verified":true,"name":"Ada","picture":"https://img/ada.png"}`))
	}))
	defer server.Close()

	user, err := fetchGoogleUser(context.Background(), server.Client(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "Ada", user.Name)
}

func TestFetchGoogleUser_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer server.Close()

	user, err := fetchGoogleUser(context.Background(), server.Client(), server.URL)

	assert.Nil(t, user)
	assert.ErrorContains(t, err, "401")
}
