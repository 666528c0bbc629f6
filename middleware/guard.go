package middleware

import (
	"net"
	"net/http"
	"strings"

	gosession "github.com/MrEthical07/goSession"
)

// RequireAuth verifies the Authorization bearer token on every request
// and stores the resulting principal in the request context, where
// [gosession.PrincipalFromContext] retrieves it. Any failure is a
// uniform 401 with no detail.
func RequireAuth(engine *gosession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			ctx := gosession.WithClientIP(r.Context(), clientIP(r))
			ctx = gosession.WithUserAgent(ctx, r.UserAgent())

			principal, err := engine.Verify(ctx, token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx = gosession.WithPrincipal(ctx, *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps RequireAuth and additionally rejects principals
// whose role claim is not in the allowed set. 403 on role mismatch.
func RequireRole(engine *gosession.Engine, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	auth := RequireAuth(engine)
	return func(next http.Handler) http.Handler {
		return auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := gosession.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
