package middleware

import (
	"net/http"
	"strings"

	"chatrelay/internal/auth"
	"chatrelay/internal/httputil"
)

// AuthMiddleware verifies the access token and stores the owner identity in
// the request context. The token comes from the Authorization header or,
// because EventSource cannot set headers, from a "token" query parameter.
func AuthMiddleware(verifier auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health check stays open
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "token not provided")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
