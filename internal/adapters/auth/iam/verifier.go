// Package iam verifica bearer tokens contra un IAM externo por HTTP.
package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starstech/medtrack-sub001/internal/platform/httpclient"
	"github.com/starstech/medtrack-sub001/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("iam verifier not configured")
	ErrUnauthorized  = errors.New("iam unauthorized")
	ErrUpstream      = errors.New("iam upstream error")
)

const defaultAPIKeyHeader = "X-Api-Key"

type Config struct {
	// VerifyURL es el endpoint completo, p.ej. https://iam.local/v1/tokens/verify.
	VerifyURL    string
	APIKey       string
	APIKeyHeader string // default X-Api-Key
	Timeout      time.Duration

	Client *httpclient.Client // opcional (tests)
}

// Verifier implementa auth.AuthVerifier.
type Verifier struct {
	url          string
	apiKey       string
	apiKeyHeader string
	client       *httpclient.Client
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if err := httpclient.ValidateURL(cfg.VerifyURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: missing api key", ErrNotConfigured)
	}
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = defaultAPIKeyHeader
	}
	client := cfg.Client
	if client == nil {
		client = httpclient.New(cfg.Timeout)
	}
	return &Verifier{
		url:          strings.TrimSpace(cfg.VerifyURL),
		apiKey:       key,
		apiKeyHeader: h,
		client:       client,
	}, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	headers := map[string]string{
		v.apiKeyHeader:  v.apiKey,
		"Authorization": "Bearer " + token,
	}

	var out verifyResponse
	err := v.client.PostJSON(ctx, v.url, headers, verifyRequest{Token: token}, &out)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return auth.Claims{}, ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	userID := strings.TrimSpace(out.UserID)
	if userID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}

	return auth.Claims{
		UserID:   userID,
		Email:    strings.TrimSpace(out.Email),
		TenantID: strings.TrimSpace(out.TenantID),
	}, nil
}
