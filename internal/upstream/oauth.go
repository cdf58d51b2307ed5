package upstream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// FromOAuth2 classifies an error returned by golang.org/x/oauth2. Token
// endpoint answers (*oauth2.RetrieveError) are classified by status; an
// invalid_grant is a rejection unless the server answered 5xx, which stays a
// transport failure. Anything else is a transport failure.
func FromOAuth2(service, op string, err error) *Error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return FromTransport(service, op, err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	e := FromStatus(service, op, status, re.Body)
	e.Underlying = err
	switch {
	case status >= http.StatusInternalServerError:
		e.Category = CategoryTransport
	case re.ErrorCode == "invalid_grant":
		e.Category = CategoryRejected
	case status == 0:
		e.Category = CategoryTransport
	}
	return e
}

// OAuth2Context returns a context that makes oauth2 use c's transport and
// bounds the token call by c's timeout.
func OAuth2Context(ctx context.Context, c *Client) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout())
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient()), cancel
}

// Observe reports an externally driven call (oauth2 token requests) to the
// client's observer.
func (c *Client) Observe(op string, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveUpstream(c.service, op, time.Since(start), err)
	}
}
