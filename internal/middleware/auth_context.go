package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/starstech/medtrack-sub001/internal/platform/logger"
	"github.com/starstech/medtrack-sub001/internal/ports/auth"
)

type ctxKey struct{}

// DebugUserHeader solo se acepta cuando no hay verifier configurado.
const DebugUserHeader = "X-Debug-User-ID"

// AuthContext resuelve las claims del request y las deja en el contexto.
// Nunca corta el request: cada handler decide si exige usuario (401).
func AuthContext(verifier auth.AuthVerifier, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				claims auth.Claims
				ok     bool
			)
			if verifier == nil {
				claims, ok = debugClaims(r)
			} else {
				claims, ok = verifiedClaims(r, verifier, log)
			}
			if ok {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func debugClaims(r *http.Request) (auth.Claims, bool) {
	c := auth.Claims{UserID: strings.TrimSpace(r.Header.Get(DebugUserHeader))}
	return c, c.Valid()
}

func verifiedClaims(r *http.Request, verifier auth.AuthVerifier, log logger.Logger) (auth.Claims, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return auth.Claims{}, false
	}
	c, err := verifier.Verify(r.Context(), token)
	if err != nil {
		log.Debug("bearer token rejected", map[string]any{"path": r.URL.Path, "error": err})
		return auth.Claims{}, false
	}
	return c, c.Valid()
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(auth.Claims)
	return c, ok
}

// bearerToken extrae el token de "Bearer <token>" (case-insensitive).
func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
