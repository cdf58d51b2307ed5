// Package wallet serves a learner's verifiable credentials and forwards
// credential search and issue requests on behalf of a valid session.
package wallet

import (
	"context"
	"encoding/json"
	"log/slog"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/platform/metrics"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) linking.SessionResult
}

type CredentialStore interface {
	Search(ctx context.Context, subjectDID string) ([]json.RawMessage, error)
	SearchRaw(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	IssueRaw(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
}

// Outcome is the result of a wallet operation. Credentials is set by
// Credentials, Payload by the pass-through operations.
type Outcome struct {
	Status      string            `json:"status"`
	Credentials []json.RawMessage `json:"credentials,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Failure     *linking.Failure  `json:"failure,omitempty"`
}

// Found reports whether the operation produced credentials or a payload.
func (o Outcome) Found() bool {
	return o.Failure == nil && o.Status == linking.StatusCredentialSuccess
}

type Service struct {
	sessions SessionResolver
	store    CredentialStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(sessions SessionResolver, store CredentialStore, opts ...Option) *Service {
	s := &Service{sessions: sessions, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns every credential issued to the learner behind token.
func (s *Service) Credentials(ctx context.Context, token string) Outcome {
	out := s.credentials(ctx, token)
	s.metrics.ObserveLink("wallet_credentials", out.Status)
	return out
}

func (s *Service) credentials(ctx context.Context, token string) Outcome {
	sess, f := s.session(ctx, token)
	if f != nil {
		return failed(f)
	}
	if sess.Role != identity.RoleStudent {
		return failed(linking.NewFailure(linking.KindUnauthorized, linking.StepIntrospect, "wallet credentials require a learner session"))
	}
	did := sess.Record.Field("DID")
	if did == "" {
		return failed(linking.NewFailure(linking.KindNotFound, linking.StepSearchCredentials, "learner account has no DID"))
	}

	creds, err := s.store.Search(ctx, did)
	if err != nil {
		return failed(s.failure(ctx, linking.StepSearchCredentials, err))
	}
	if len(creds) == 0 {
		return Outcome{Status: linking.StatusCredentialSearchMissing}
	}
	return Outcome{Status: linking.StatusCredentialSuccess, Credentials: creds}
}

// Search forwards body to the credential search endpoint.
func (s *Service) Search(ctx context.Context, token string, body json.RawMessage) Outcome {
	out := s.forward(ctx, token, linking.StepSearchCredentials, body, s.store.SearchRaw)
	s.metrics.ObserveLink("wallet_search", out.Status)
	return out
}

// Issue forwards body to the credential issue endpoint.
func (s *Service) Issue(ctx context.Context, token string, body json.RawMessage) Outcome {
	out := s.forward(ctx, token, linking.StepIssueCredential, body, s.store.IssueRaw)
	s.metrics.ObserveLink("wallet_issue", out.Status)
	return out
}

func (s *Service) forward(ctx context.Context, token string, step linking.Step, body json.RawMessage,
	fn func(context.Context, json.RawMessage) (json.RawMessage, error)) Outcome {
	if _, f := s.session(ctx, token); f != nil {
		return failed(f)
	}
	if len(body) == 0 || !json.Valid(body) {
		return failed(linking.NewFailure(linking.KindInvalidRequest, linking.StepValidate, "request body must be JSON"))
	}
	payload, err := fn(ctx, body)
	if err != nil {
		return failed(s.failure(ctx, step, err))
	}
	return Outcome{Status: linking.StatusCredentialSuccess, Payload: payload}
}

// session requires token to resolve to exactly one registry account.
func (s *Service) session(ctx context.Context, token string) (linking.SessionResult, *linking.Failure) {
	sess := s.sessions.ResolveSession(ctx, token)
	switch sess.State {
	case linking.LookupFound:
		return sess, nil
	case linking.LookupNotFound:
		return sess, linking.NewFailure(linking.KindNotFound, linking.StepSearchAccount, "no registry account for this session")
	default:
		return sess, sess.Failure
	}
}

func (s *Service) failure(ctx context.Context, step linking.Step, err error) *linking.Failure {
	f := linking.FailureAt(step, err)
	s.logger.WarnContext(ctx, "credential service call failed",
		"step", string(step),
		"kind", string(f.Kind),
		"error", err.Error(),
	)
	return f
}

func failed(f *linking.Failure) Outcome {
	return Outcome{Status: f.Status, Failure: f}
}
