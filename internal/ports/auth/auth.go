// Package auth define lo que el servicio necesita de la identidad del caller.
// El paciente y sus cuidadores se identifican por UserID.
package auth

import (
	"context"
	"strings"
)

type Claims struct {
	UserID   string
	Email    string
	TenantID string
}

// Valid exige un UserID no vacío.
func (c Claims) Valid() bool {
	return strings.TrimSpace(c.UserID) != ""
}

// AuthVerifier resuelve un bearer token a Claims.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
