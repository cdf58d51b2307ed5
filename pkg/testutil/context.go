package testutil

import (
	"net/http"

	"ulp-gateway/pkg/requestcontext"
)

// WithBearer adds a bearer token to the request, both as the Authorization
// header and in the context, matching what the auth middleware does.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req.WithContext(requestcontext.WithBearerToken(req.Context(), token))
}
