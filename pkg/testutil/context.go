package testutil

import (
	"net/http"

	id "citadel/pkg/domain"
	"citadel/pkg/requestcontext"
)

// AsPrincipal adds the acting principal to the request context.
// This simulates what the auth middleware does for authenticated requests.
func AsPrincipal(req *http.Request, p id.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// AtHeight stamps the request with a height, as the height middleware would.
func AtHeight(req *http.Request, h id.Height) *http.Request {
	return req.WithContext(requestcontext.WithHeight(req.Context(), h))
}

// WithCaller is AsPrincipal plus AtHeight, the typical state of a request that
// reached a handler.
func WithCaller(req *http.Request, p id.Principal, h id.Height) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), p)
	ctx = requestcontext.WithHeight(ctx, h)
	return req.WithContext(ctx)
}
