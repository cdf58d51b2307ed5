// Package registry is a typed wrapper over the Sunbird-RC style registry
// that is the sole store of student, teacher and school records.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"ulp-gateway/internal/upstream"
)

const service = "registry"

// Client issues search, invite and update calls. Errors are *upstream.Error:
// transport and 5xx are CategoryTransport (registry unavailable), 4xx is
// CategoryRejected, a duplicate invite is CategoryConflict.
type Client struct {
	baseURL string
	http    *upstream.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUpstream(u *upstream.Client) Option {
	return func(c *Client) {
		c.http = u
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = upstream.NewClient(service)
	}
	return c
}

func (c *Client) url(kind Kind, suffix string) string {
	return fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, url.PathEscape(kind.String()), suffix)
}

// Search returns every record of kind matching filter, in registry order.
// No match is an empty slice and a nil error.
func (c *Client) Search(ctx context.Context, kind Kind, filter Filter) ([]Record, error) {
	var docs []json.RawMessage
	err := c.http.Do(ctx, upstream.Request{
		Op:     "search",
		Method: http.MethodPost,
		URL:    c.url(kind, "search"),
		Body:   filter.body(),
	}, &docs)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		var id struct {
			OSID string `json:"osid"`
		}
		if err := json.Unmarshal(doc, &id); err != nil {
			return nil, upstream.NewError(upstream.CategoryBadData, service, "search",
				fmt.Sprintf("%s search returned a non-object entry", kind), err)
		}
		records = append(records, Record{OSID: id.OSID, Raw: doc})
	}
	return records, nil
}

// Invite creates a record of kind from shape and returns it with the minted
// osid. A registry that refuses the document as a duplicate (HTTP 409 or a
// non-SUCCESSFUL status) yields CategoryConflict.
func (c *Client) Invite(ctx context.Context, kind Kind, shape any) (Record, error) {
	var env envelope
	err := c.http.Do(ctx, upstream.Request{
		Op:     "invite",
		Method: http.MethodPost,
		URL:    c.url(kind, "invite"),
		Body:   shape,
	}, &env)
	if err != nil {
		return Record{}, err
	}
	if env.Params.Status != statusSuccessful {
		c.logger.WarnContext(ctx, "registry invite not successful",
			"kind", kind,
			"status", env.Params.Status,
			"errmsg", env.Params.ErrMsg,
		)
		return Record{}, upstream.NewError(upstream.CategoryConflict, service, "invite",
			fmt.Sprintf("%s invite status %q", kind, env.Params.Status), nil)
	}

	var created struct {
		OSID string `json:"osid"`
	}
	if raw, ok := env.Result[kind.String()]; ok {
		if err := json.Unmarshal(raw, &created); err != nil {
			return Record{}, upstream.NewError(upstream.CategoryBadData, service, "invite",
				fmt.Sprintf("decode %s invite result", kind), err)
		}
	}
	if created.OSID == "" {
		return Record{}, upstream.NewError(upstream.CategoryBadData, service, "invite",
			fmt.Sprintf("%s invite returned no osid", kind), nil)
	}

	raw, err := withOSID(shape, created.OSID)
	if err != nil {
		return Record{}, upstream.NewError(upstream.CategoryBadData, service, "invite", "merge osid", err)
	}
	return Record{OSID: created.OSID, Raw: raw}, nil
}

// Update applies partial to the record osid of kind. The registry's status
// discriminator is returned as is; a non-SUCCESSFUL status is not an error.
func (c *Client) Update(ctx context.Context, kind Kind, osid string, partial any) (UpdateResult, error) {
	if osid == "" {
		return UpdateResult{}, upstream.NewError(upstream.CategoryRejected, service, "update", "osid is required", nil)
	}
	var env envelope
	err := c.http.Do(ctx, upstream.Request{
		Op:     "update",
		Method: http.MethodPut,
		URL:    c.url(kind, url.PathEscape(osid)),
		Body:   partial,
	}, &env)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Status: env.Params.Status}, nil
}

func withOSID(shape any, osid string) (json.RawMessage, error) {
	raw, err := json.Marshal(shape)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc["osid"] = osid
	return json.Marshal(doc)
}
