package iam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIAM(t *testing.T, h http.HandlerFunc) *Verifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	v, err := NewVerifier(Config{VerifyURL: srv.URL + "/v1/tokens/verify", APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)
	return v
}

func TestVerify_OK(t *testing.T) {
	v := newIAM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tokens/verify", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok", body["token"])

		_, _ = w.Write([]byte(`{"user_id":" patient-1 ","email":"p@x.io"}`))
	})

	c, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "patient-1", c.UserID)
	assert.Equal(t, "p@x.io", c.Email)
}

func TestVerify_Unauthorized(t *testing.T) {
	v := newIAM(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := v.Verify(context.Background(), "tok")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = v.Verify(context.Background(), "  ")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestVerify_Upstream(t *testing.T) {
	v := newIAM(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := v.Verify(context.Background(), "tok")
	assert.True(t, errors.Is(err, ErrUpstream))

	v = newIAM(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"email":"x"}`))
	})
	_, err = v.Verify(context.Background(), "tok")
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestNewVerifier_Config(t *testing.T) {
	_, err := NewVerifier(Config{VerifyURL: "", APIKey: "k"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = NewVerifier(Config{VerifyURL: "https://iam.local/verify"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
