// Package linking reconciles a DigiLocker identity with the directory
// account and registry records that represent the same person.
//
// The orchestrator keeps no linkage state. Every call rebuilds the answer
// from fresh collaborator calls: it searches before it writes, updates an
// existing record rather than inviting a duplicate, and reports where a
// registration stopped so the next attempt can resume from there.
package linking

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/directory"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/platform/metrics"
	"ulp-gateway/internal/registry"
	"ulp-gateway/internal/upstream"
)

type IdentityProvider interface {
	AuthCodeURL(role identity.Role, state string) (string, error)
	Exchange(ctx context.Context, role identity.Role, code string) (identity.Claims, error)
}

type AccountDirectory interface {
	ServiceToken(ctx context.Context) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	CreateUser(ctx context.Context, serviceToken, username, password string) error
	Introspect(ctx context.Context, token string) (directory.UserInfo, error)
}

type Registry interface {
	Search(ctx context.Context, kind registry.Kind, filter registry.Filter) ([]registry.Record, error)
	Invite(ctx context.Context, kind registry.Kind, shape any) (registry.Record, error)
	Update(ctx context.Context, kind registry.Kind, osid string, partial any) (registry.UpdateResult, error)
}

type DIDGenerator interface {
	Generate(ctx context.Context, subject string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

const defaultStepTimeout = 10 * time.Second

// Service is the identity-linking orchestrator.
type Service struct {
	idp            IdentityProvider
	directory      AccountDirectory
	registry       Registry
	dids           DIDGenerator
	deriver        identity.Deriver
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
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

// WithStepTimeout bounds each collaborator call.
func WithStepTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stepTimeout = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs the orchestrator.
func New(idp IdentityProvider, dir AccountDirectory, reg Registry, dids DIDGenerator, deriver identity.Deriver, opts ...Option) *Service {
	s := &Service{
		idp:         idp,
		directory:   dir,
		registry:    reg,
		dids:        dids,
		deriver:     deriver,
		logger:      slog.Default(),
		tracer:      otel.Tracer("ulp-gateway/linking"),
		stepTimeout: defaultStepTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// call runs one collaborator step. The step runs on a context detached from
// the caller's cancellation under its own timeout, so a cancelled request
// stops before the next step and never inside one.
func call[T any](ctx context.Context, s *Service, step Step, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, upstream.NewError(upstream.CategoryTransport, "linking", string(step),
			"request cancelled before "+string(step), err)
	}

	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stepTimeout)
	defer cancel()
	stepCtx, span := s.tracer.Start(stepCtx, "linking."+string(step))
	defer span.End()

	v, err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kindOf(err)))
		return zero, err
	}
	return v, nil
}

func run(ctx context.Context, s *Service, step Step, fn func(context.Context) error) error {
	_, err := call(ctx, s, step, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// search runs a registry search as step.
func (s *Service) search(ctx context.Context, step Step, kind registry.Kind, filter registry.Filter) ([]registry.Record, error) {
	return call(ctx, s, step, func(ctx context.Context) ([]registry.Record, error) {
		return s.registry.Search(ctx, kind, filter)
	})
}

// failure converts a collaborator error at step into a Failure and logs it.
func (s *Service) failure(ctx context.Context, step Step, err error) *Failure {
	f := newFailure(kindOf(err), step, err.Error())
	s.logger.WarnContext(ctx, "orchestration step failed",
		"step", string(step),
		"kind", string(f.Kind),
		"status", f.Status,
		"error", err.Error(),
	)
	return f
}

func (s *Service) ambiguous(ctx context.Context, step Step, kind registry.Kind, n int) *Failure {
	s.logger.ErrorContext(ctx, "registry integrity violation",
		"step", string(step),
		"kind", kind.String(),
		"matches", n,
	)
	return newFailure(KindAmbiguous, step, kind.String()+" business key matched more than one record")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}

func (s *Service) record(ctx context.Context, operation, action string, role identity.Role, subject, state, status string, detail map[string]string) {
	s.metrics.ObserveLink(operation, status)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("linking.operation", operation),
		attribute.String("linking.status", status),
	)
	s.emit(ctx, audit.Event{
		Action:  action,
		Role:    role.String(),
		Subject: subject,
		Status:  status,
		Outcome: state,
		Detail:  detail,
	})
}
