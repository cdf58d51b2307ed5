package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "ulp-gateway/pkg/domain-errors"
	"ulp-gateway/pkg/platform/httputil"
	"ulp-gateway/pkg/requestcontext"
)

// RequireBearer rejects requests without a bearer token and places the token
// in the request context. The token itself is validated by the directory when
// the session is resolved, not here.
func RequireBearer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerFromHeader(r.Header.Get("Authorization"))
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithBearerToken(ctx, token)))
		})
	}
}

// BearerFromHeader extracts the token from an "Authorization: Bearer <token>" value.
func BearerFromHeader(header string) (string, bool) {
	const bearerPrefix = "Bearer "
	after, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return "", false
	}
	token := strings.TrimSpace(after)
	return token, token != ""
}
