package middleware

import (
	"net/http"

	"farmlink-be/internal/auth"
	"farmlink-be/internal/utils"
)

// AuthMiddleware verifies the session token and, when valid, attaches the
// caller identity to the request context. Requests without a token pass
// through anonymously; handlers decide whether identity is required.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := auth.ParseToken(tokenStr, secret)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := utils.SetActorContext(r.Context(), identity.ID, identity.Email, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose authenticated role is not in the allowed
// set. An empty allowed set only requires authentication.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := utils.GetActorIDFromContext(r.Context()); !ok {
				utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
				return
			}

			if len(allowed) > 0 {
				role := utils.GetActorRoleFromContext(r.Context())
				if !allowed[role] {
					utils.WriteJSONError(w, "insufficient role", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
