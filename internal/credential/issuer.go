// Package credential issues and searches verifiable credentials and resolves
// the JSON-LD schemas they are issued against.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ulp-gateway/internal/credential/cache"
	"ulp-gateway/internal/upstream"
	"ulp-gateway/pkg/platform/sentinel"
	"ulp-gateway/pkg/requestcontext"
)

const (
	serviceCredentials = "credentials"
	serviceSchema      = "schema"
)

// Schema is a credential schema document as served by the schema service.
type Schema struct {
	ID  string
	Raw json.RawMessage
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

// IssueRequest describes one credential to issue.
type IssueRequest struct {
	IssuerDID      string
	SchemaID       string
	Subject        map[string]any
	IssuanceDate   string
	ExpirationDate string
	Types          []string
	Tags           []string
}

// CacheObserver receives schema cache hits and misses. *metrics.Metrics implements it.
type CacheObserver interface {
	ObserveSchemaCache(hit bool)
}

type Issuer struct {
	baseURL   string
	schemaURL string
	creds     *upstream.Client
	schemas   *upstream.Client
	cache     cache.Cache
	observer  CacheObserver
	logger    *slog.Logger
}

type Option func(*Issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// WithSchemaCache caches schema documents in c.
func WithSchemaCache(c cache.Cache) Option {
	return func(i *Issuer) {
		i.cache = c
	}
}

func WithCacheObserver(o CacheObserver) Option {
	return func(i *Issuer) {
		i.observer = o
	}
}

// WithUpstream replaces the transports for the credential and schema services.
func WithUpstream(creds, schemas *upstream.Client) Option {
	return func(i *Issuer) {
		i.creds = creds
		i.schemas = schemas
	}
}

func New(baseURL, schemaURL string, opts ...Option) *Issuer {
	i := &Issuer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		schemaURL: strings.TrimRight(schemaURL, "/"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.creds == nil {
		i.creds = upstream.NewClient(serviceCredentials)
	}
	if i.schemas == nil {
		i.schemas = upstream.NewClient(serviceSchema)
	}
	return i
}

// Search returns every credential whose subject is subjectDID. An empty
// result is not an error.
func (i *Issuer) Search(ctx context.Context, subjectDID string) ([]json.RawMessage, error) {
	body := map[string]any{"subject": map[string]string{"id": subjectDID}}
	var out []json.RawMessage
	if err := i.creds.Do(ctx, upstream.Request{
		Op:     "search",
		Method: http.MethodPost,
		URL:    i.baseURL + "/credentials/search",
		Body:   body,
	}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

// SearchRaw forwards a caller-built search body unchanged.
func (i *Issuer) SearchRaw(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := i.creds.Do(ctx, upstream.Request{
		Op:     "search",
		Method: http.MethodPost,
		URL:    i.baseURL + "/credentials/search",
		Body:   body,
	}, &out)
	return out, err
}

// IssueRaw forwards a caller-built issue body unchanged.
func (i *Issuer) IssueRaw(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := i.creds.Do(ctx, upstream.Request{
		Op:     "issue",
		Method: http.MethodPost,
		URL:    i.baseURL + "/credentials/issue",
		Body:   body,
	}, &out)
	return out, err
}

// Issue builds a W3C credential from req and issues it.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (json.RawMessage, error) {
	if req.IssuerDID == "" || req.SchemaID == "" {
		return nil, upstream.NewError(upstream.CategoryRejected, serviceCredentials, "issue",
			"issuer and schema are required", nil)
	}
	types := req.Types
	if len(types) == 0 {
		types = []string{"VerifiableCredential"}
	}
	body := map[string]any{
		"credential": map[string]any{
			"@context": []string{
				"https://www.w3.org/2018/credentials/v1",
				"https://www.w3.org/2018/credentials/examples/v1",
			},
			"id":                "did:ulp:" + uuid.NewString(),
			"type":              types,
			"issuer":            req.IssuerDID,
			"issuanceDate":      req.IssuanceDate,
			"expirationDate":    req.ExpirationDate,
			"credentialSubject": req.Subject,
			"options": map[string]any{
				"created":          requestcontext.Now(ctx).UTC().Format(time.RFC3339),
				"credentialStatus": map[string]string{"type": "RevocationList2020Status"},
			},
		},
		"credentialSchemaId": req.SchemaID,
		"tags":               req.Tags,
	}
	var out json.RawMessage
	err := i.creds.Do(ctx, upstream.Request{
		Op:     "issue",
		Method: http.MethodPost,
		URL:    i.baseURL + "/credentials/issue",
		Body:   body,
	}, &out)
	return out, err
}

// Schema resolves a schema document by id, through the cache when one is
// configured. Cache failures degrade to a direct fetch.
func (i *Issuer) Schema(ctx context.Context, schemaID string) (Schema, error) {
	if schemaID == "" {
		return Schema{}, upstream.NewError(upstream.CategoryRejected, serviceSchema, "get", "schema id is required", nil)
	}
	if i.cache != nil {
		raw, err := i.cache.Get(ctx, schemaID)
		switch {
		case err == nil:
			i.observe(true)
			return newSchema(schemaID, raw), nil
		case !errors.Is(err, sentinel.ErrNotFound):
			i.logger.WarnContext(ctx, "schema cache read failed", "schema_id", schemaID, "error", err)
		}
		i.observe(false)
	}

	var raw json.RawMessage
	if err := i.schemas.Do(ctx, upstream.Request{
		Op:     "get",
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/schema/jsonld?id=%s", i.schemaURL, url.QueryEscape(schemaID)),
	}, &raw); err != nil {
		return Schema{}, err
	}

	if i.cache != nil {
		if err := i.cache.Set(ctx, schemaID, raw); err != nil {
			i.logger.WarnContext(ctx, "schema cache write failed", "schema_id", schemaID, "error", err)
		}
	}
	return newSchema(schemaID, raw), nil
}

// newSchema prefers the id the document declares over the id it was fetched by.
func newSchema(requested string, raw json.RawMessage) Schema {
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &doc); err == nil && doc.ID != "" {
		return Schema{ID: doc.ID, Raw: raw}
	}
	return Schema{ID: requested, Raw: raw}
}

func (i *Issuer) observe(hit bool) {
	if i.observer != nil {
		i.observer.ObserveSchemaCache(hit)
	}
}
