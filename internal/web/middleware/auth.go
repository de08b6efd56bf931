package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/conduit-lang/modelmig/internal/web/auth"
	"github.com/conduit-lang/modelmig/internal/web/response"
)

// Auth requires a valid bearer token and stores its subject in the context
func Auth(tokens *auth.TokenService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.RenderUnauthorized(w, "Authorization required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				response.RenderUnauthorized(w, "Invalid authorization format")
				return
			}

			subject, err := tokens.Validate(parts[1])
			if err != nil {
				response.RenderUnauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject extracts the authenticated subject from the context
func GetSubject(ctx context.Context) string {
	if subject, ok := ctx.Value(SubjectKey).(string); ok {
		return subject
	}
	return ""
}
