// Package enrollment lets a school staff session manage its roster: list a
// class, register learners in bulk and issue their credentials in bulk.
package enrollment

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/credential"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/platform/metrics"
	"ulp-gateway/internal/registry"
	"ulp-gateway/internal/upstream"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) linking.SessionResult
}

type Registry interface {
	Search(ctx context.Context, kind registry.Kind, filter registry.Filter) ([]registry.Record, error)
	Invite(ctx context.Context, kind registry.Kind, shape any) (registry.Record, error)
}

type DIDGenerator interface {
	Generate(ctx context.Context, subject string) (string, error)
}

type CredentialIssuer interface {
	Schema(ctx context.Context, schemaID string) (credential.Schema, error)
	Issue(ctx context.Context, req credential.IssueRequest) (json.RawMessage, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

const (
	defaultConcurrency = 4
	defaultStepTimeout = 10 * time.Second
)

// Service runs roster operations on behalf of a staff session.
type Service struct {
	sessions       SessionResolver
	registry       Registry
	dids           DIDGenerator
	issuer         CredentialIssuer
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	concurrency    int
	stepTimeout    time.Duration
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

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithConcurrency bounds how many roster items are processed at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithStepTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stepTimeout = d
		}
	}
}

func New(sessions SessionResolver, reg Registry, dids DIDGenerator, issuer CredentialIssuer, opts ...Option) *Service {
	s := &Service{
		sessions:    sessions,
		registry:    reg,
		dids:        dids,
		issuer:      issuer,
		logger:      slog.Default(),
		tracer:      otel.Tracer("ulp-gateway/enrollment"),
		concurrency: defaultConcurrency,
		stepTimeout: defaultStepTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// staffSession resolves token to the staff member's TeacherAccount.
func (s *Service) staffSession(ctx context.Context, token string) (linking.SessionResult, *linking.Failure) {
	sess := s.sessions.ResolveSession(ctx, token)
	switch {
	case sess.State == linking.LookupNotFound:
		return sess, linking.NewFailure(linking.KindNotFound, linking.StepSearchAccount, "no registry account for this session")
	case sess.State != linking.LookupFound:
		return sess, sess.Failure
	case sess.Role != identity.RoleStaff:
		return sess, linking.NewFailure(linking.KindUnauthorized, linking.StepIntrospect, "roster operations require a staff session")
	}
	return sess, nil
}

// call runs one collaborator step under its own timeout. Like the linking
// orchestrator it stops at step boundaries once ctx is cancelled.
func call[T any](ctx context.Context, s *Service, step linking.Step, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, upstream.NewError(upstream.CategoryTransport, "enrollment", string(step),
			"request cancelled before "+string(step), err)
	}
	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stepTimeout)
	defer cancel()
	stepCtx, span := s.tracer.Start(stepCtx, "enrollment."+string(step))
	defer span.End()

	v, err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(upstream.CategoryOf(err)))
	}
	return v, err
}

func (s *Service) search(ctx context.Context, step linking.Step, kind registry.Kind, filter registry.Filter) ([]registry.Record, error) {
	return call(ctx, s, step, func(ctx context.Context) ([]registry.Record, error) {
		return s.registry.Search(ctx, kind, filter)
	})
}

func (s *Service) itemFailure(ctx context.Context, operation string, index int, step linking.Step, err error) *linking.Failure {
	f := linking.FailureAt(step, err)
	s.logger.WarnContext(ctx, "roster item failed",
		"operation", operation,
		"index", index,
		"step", string(step),
		"kind", string(f.Kind),
		"error", err.Error(),
	)
	return f
}

func (s *Service) finish(ctx context.Context, action, subject string, res BatchResult) {
	outcome := "ok"
	if !res.OK() {
		outcome = "failed"
	}
	detail := map[string]string{
		"items":  strconv.Itoa(len(res.Items)),
		"failed": strconv.Itoa(res.Failed),
	}
	if res.Failure != nil {
		detail["step"] = string(res.Failure.Step)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:  action,
		Role:    identity.RoleStaff.String(),
		Subject: subject,
		Status:  res.Status,
		Outcome: outcome,
		Detail:  detail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err.Error())
	}
}
