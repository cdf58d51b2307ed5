// Package directory wraps the IAM realm (Keycloak) that owns user accounts:
// service tokens, password-grant login, user creation and token introspection.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"ulp-gateway/internal/platform/config"
	"ulp-gateway/internal/upstream"
	"ulp-gateway/pkg/platform/sentinel"
)

const service = "directory"

// ErrUserExists is returned by CreateUser when the username is already taken.
// It wraps sentinel.ErrConflict.
var ErrUserExists = fmt.Errorf("directory user already exists: %w", sentinel.ErrConflict)

// UserInfo is the introspected identity behind a bearer token.
type UserInfo struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name,omitempty"`
}

type Client struct {
	baseURL  string
	realm    string
	service  *clientcredentials.Config
	password *oauth2.Config
	http     *upstream.Client
	logger   *slog.Logger
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

func New(cfg config.Directory, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		realm:   cfg.Realm,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = upstream.NewClient(service)
	}

	tokenURL := c.realmURL("protocol/openid-connect/token")
	c.service = &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	c.password = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return c
}

func (c *Client) realmURL(path string) string {
	return fmt.Sprintf("%s/realms/%s/%s", c.baseURL, c.realm, path)
}

// ServiceToken fetches a client-credentials token for admin calls.
func (c *Client) ServiceToken(ctx context.Context) (token string, err error) {
	start := time.Now()
	defer func() { c.http.Observe("service_token", start, err) }()

	octx, cancel := upstream.OAuth2Context(ctx, c.http)
	defer cancel()

	tok, err := c.service.Token(octx)
	if err != nil {
		return "", upstream.FromOAuth2(service, "service_token", err)
	}
	return tok.AccessToken, nil
}

// Login performs a password-grant login and returns the access token.
// Wrong credentials or an unknown user are CategoryRejected.
func (c *Client) Login(ctx context.Context, username, password string) (token string, err error) {
	start := time.Now()
	defer func() { c.http.Observe("login", start, err) }()

	octx, cancel := upstream.OAuth2Context(ctx, c.http)
	defer cancel()

	tok, err := c.password.PasswordCredentialsToken(octx, username, password)
	if err != nil {
		ue := upstream.FromOAuth2(service, "login", err)
		if ue.Category == upstream.CategoryUnauthorized {
			ue.Category = upstream.CategoryRejected
		}
		return "", ue
	}
	return tok.AccessToken, nil
}

type credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type userRepresentation struct {
	Username    string       `json:"username"`
	Enabled     bool         `json:"enabled"`
	Credentials []credential `json:"credentials"`
}

// CreateUser provisions an enabled user with a permanent password.
// A username that already exists yields ErrUserExists.
func (c *Client) CreateUser(ctx context.Context, serviceToken, username, password string) error {
	err := c.http.Do(ctx, upstream.Request{
		Op:     "create_user",
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/admin/realms/%s/users", c.baseURL, c.realm),
		Header: upstream.Bearer(serviceToken),
		Body: userRepresentation{
			Username: username,
			Enabled:  true,
			Credentials: []credential{
				{Type: "password", Value: password, Temporary: false},
			},
		},
	}, nil)
	if upstream.IsConflict(err) {
		c.logger.InfoContext(ctx, "directory user already exists", "username", username)
		return fmt.Errorf("%w: %w", ErrUserExists, err)
	}
	return err
}

// Introspect resolves a bearer token through the userinfo endpoint.
// A refused token is CategoryUnauthorized.
func (c *Client) Introspect(ctx context.Context, token string) (UserInfo, error) {
	var info UserInfo
	err := c.http.Do(ctx, upstream.Request{
		Op:     "introspect",
		Method: http.MethodGet,
		URL:    c.realmURL("protocol/openid-connect/userinfo"),
		Header: upstream.Bearer(token),
	}, &info)
	if err != nil {
		return UserInfo{}, err
	}
	return info, nil
}
