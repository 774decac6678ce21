package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"privacyhub/internal/auth"
	"privacyhub/internal/requestctx"
	"privacyhub/internal/transport/http/api"
)

// Auth rejects requests without a valid bearer token and stores the token's
// principal on the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				slog.DebugContext(r.Context(), "token rejected", "err", err, "requestId", GetRequestID(r.Context()))
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			ctx := requestctx.WithPrincipal(r.Context(), claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	return requestctx.GetPrincipal(ctx)
}
