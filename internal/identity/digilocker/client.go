// Package digilocker exchanges DigiLocker authorization codes for identity
// claims. One OAuth application is registered per role.
package digilocker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/platform/config"
	"ulp-gateway/internal/upstream"
)

const service = "digilocker"

// idTokenClaims is the subset of the DigiLocker id_token we consume.
type idTokenClaims struct {
	Subject     string `json:"sub"`
	GivenName   string `json:"given_name"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Birthdate   string `json:"birthdate"`
	DOB         string `json:"dob"`
	jwt.RegisteredClaims
}

// Client exchanges codes with the provider. It returns identity facts only.
type Client struct {
	apps      map[identity.Role]*oauth2.Config
	verifiers map[identity.Role]*oidc.IDTokenVerifier
	http      *upstream.Client
	logger    *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUpstream replaces the outbound transport.
func WithUpstream(u *upstream.Client) Option {
	return func(c *Client) {
		c.http = u
	}
}

// New builds one oauth2 configuration per role. When a JWKS URL is
// configured, id_token signatures are verified against it; otherwise claims
// are read from the token as returned by the token endpoint over TLS.
func New(ctx context.Context, cfg config.DigiLocker, opts ...Option) *Client {
	c := &Client{
		apps:      make(map[identity.Role]*oauth2.Config, 2),
		verifiers: make(map[identity.Role]*oidc.IDTokenVerifier, 2),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = upstream.NewClient(service)
	}

	endpoint := oauth2.Endpoint{
		AuthURL:   cfg.AuthURL,
		TokenURL:  cfg.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	apps := map[identity.Role]config.Application{
		identity.RoleStudent: cfg.Student,
		identity.RoleStaff:   cfg.Staff,
	}
	var keySet oidc.KeySet
	if cfg.JWKSURL != "" {
		keySet = oidc.NewRemoteKeySet(oidc.ClientContext(ctx, c.http.HTTPClient()), cfg.JWKSURL)
	}
	for role, app := range apps {
		c.apps[role] = &oauth2.Config{
			ClientID:     app.ClientID,
			ClientSecret: app.ClientSecret,
			RedirectURL:  app.RedirectURL,
			Endpoint:     endpoint,
		}
		if keySet != nil {
			c.verifiers[role] = oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
				ClientID:        app.ClientID,
				SkipIssuerCheck: cfg.Issuer == "",
			})
		}
	}
	return c
}

// AuthCodeURL returns the provider authorization URL for role.
func (c *Client) AuthCodeURL(role identity.Role, state string) (string, error) {
	app, ok := c.apps[role]
	if !ok {
		return "", fmt.Errorf("no provider application for role %q", role)
	}
	return app.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for the holder's claims.
// Failures are *upstream.Error: a refused code is CategoryRejected, a token
// without a subject is CategoryBadData.
func (c *Client) Exchange(ctx context.Context, role identity.Role, code string) (claims identity.Claims, err error) {
	app, ok := c.apps[role]
	if !ok {
		return identity.Claims{}, upstream.NewError(upstream.CategoryRejected, service, "exchange",
			fmt.Sprintf("no provider application for role %q", role), nil)
	}

	start := time.Now()
	defer func() { c.http.Observe("exchange", start, err) }()

	octx, cancel := upstream.OAuth2Context(ctx, c.http)
	defer cancel()

	token, err := app.Exchange(octx, code)
	if err != nil {
		c.logger.WarnContext(ctx, "digilocker token exchange failed", "role", role, "error", err)
		return identity.Claims{}, upstream.FromOAuth2(service, "exchange", err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return identity.Claims{}, upstream.NewError(upstream.CategoryBadData, service, "exchange",
			"token response carried no id_token", nil)
	}

	parsed, err := c.decode(octx, role, rawIDToken)
	if err != nil {
		return identity.Claims{}, upstream.NewError(upstream.CategoryBadData, service, "exchange",
			"id_token could not be decoded", err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return identity.Claims{}, upstream.NewError(upstream.CategoryBadData, service, "exchange",
			"id_token has no subject", nil)
	}

	return toClaims(parsed), nil
}

func (c *Client) decode(ctx context.Context, role identity.Role, raw string) (idTokenClaims, error) {
	var out idTokenClaims
	if v, ok := c.verifiers[role]; ok {
		tok, err := v.Verify(ctx, raw)
		if err != nil {
			return out, fmt.Errorf("verify id_token: %w", err)
		}
		if err := tok.Claims(&out); err != nil {
			return out, fmt.Errorf("parse id_token claims: %w", err)
		}
		return out, nil
	}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func toClaims(t idTokenClaims) identity.Claims {
	name := t.GivenName
	if name == "" {
		name = t.Name
	}
	dob := t.Birthdate
	if dob == "" {
		dob = t.DOB
	}
	return identity.Claims{
		SubjectID:   strings.TrimSpace(t.Subject),
		DisplayName: strings.TrimSpace(name),
		PhoneNumber: identity.NormalizePhone(t.PhoneNumber),
		BirthDate:   identity.NormalizeBirthDate(dob),
	}
}
