// Package handler exposes the identity linking operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/platform/middleware"
	"ulp-gateway/internal/registry"
	dErrors "ulp-gateway/pkg/domain-errors"
	"ulp-gateway/pkg/platform/httputil"
	"ulp-gateway/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the linking orchestrator as seen by the HTTP layer.
type Service interface {
	AuthorizationURL(role identity.Role, state string) (string, *linking.Failure)
	LinkExternalIdentity(ctx context.Context, authCode string, role identity.Role) linking.LinkResult
	RegisterLinkedIdentity(ctx context.Context, role identity.Role, claims identity.Claims, payload linking.RegistrationPayload) linking.RegistrationOutcome
	ResolveSession(ctx context.Context, token string) linking.SessionResult
	ResolveRecord(ctx context.Context, token string, kind registry.Kind, field, value string) linking.LookupResult
}

// Handler serves /v1/identity and /v1/schools.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a linking Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the linking routes on r.
//
// /v1/identity/register is unauthenticated and trusts the claims in its
// body, the way the portal and wallet front ends have always called it: the
// claims are the ones an unlinked /v1/identity/link answer echoed back.
// A caller who knows a subject id can therefore register, or resume, that
// subject. Deployments must keep the route behind the front ends' gateway.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/identity/authorize", h.handleAuthorize)
	r.Post("/v1/identity/link", h.handleLink)
	r.Post("/v1/identity/register", h.handleRegister)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBearer(h.logger))
		r.Get("/v1/identity/session", h.handleSession)
		r.Get("/v1/schools/{udise}", h.handleSchool)
	})
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	role, err := parseRole(q.Get("role"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	u, f := h.service.AuthorizationURL(role, q.Get("state"))
	if f != nil {
		h.writeFailure(ctx, w, f, nil)
		return
	}
	httputil.WriteEnvelope(w, http.StatusOK, success(linking.StatusAuthorizeURL, AuthorizeResponse{URL: u}))
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res := h.service.LinkExternalIdentity(ctx, req.AuthCode, req.role)
	if res.State == linking.LinkFailed {
		h.writeFailure(ctx, w, res.Failure, res)
		return
	}
	httputil.WriteEnvelope(w, http.StatusOK, success(res.Status, res))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	out := h.service.RegisterLinkedIdentity(ctx, req.role, req.Claims, req.Payload)
	switch out.State {
	case linking.RegistrationFailed:
		h.writeFailure(ctx, w, out.Failure, out)
	case linking.RegistrationCreated:
		httputil.WriteEnvelope(w, http.StatusCreated, success(out.Status, out))
	default:
		httputil.WriteEnvelope(w, http.StatusOK, success(out.Status, out))
	}
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := h.service.ResolveSession(ctx, requestcontext.BearerToken(ctx))
	h.writeLookup(ctx, w, res)
}

func (h *Handler) handleSchool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	udise := chi.URLParam(r, "udise")
	res := h.service.ResolveRecord(ctx, requestcontext.BearerToken(ctx),
		registry.KindSchoolProfile, registry.FieldUdiseCode, udise)
	h.writeLookup(ctx, w, res)
}

func (h *Handler) writeLookup(ctx context.Context, w http.ResponseWriter, res linking.LookupResult) {
	switch res.State {
	case linking.LookupFound:
		httputil.WriteEnvelope(w, http.StatusOK, success(res.Status, res))
	case linking.LookupNotFound:
		httputil.WriteEnvelope(w, http.StatusNotFound, httputil.Envelope{
			Status:  res.Status,
			Message: linking.MessageFor(res.Status),
		})
	default:
		h.writeFailure(ctx, w, res.Failure, res)
	}
}

// writeFailure reports f with its mapped HTTP status. The result is echoed
// so callers see the step and any partial registration state.
func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, f *linking.Failure, result any) {
	if f == nil {
		h.logger.ErrorContext(ctx, "failed outcome without failure detail",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}
	httputil.WriteEnvelope(w, dErrors.ToHTTPStatus(f.Code()), httputil.Envelope{
		Status:  f.Status,
		Message: linking.MessageFor(f.Status),
		Result:  result,
	})
}

func success(status string, result any) httputil.Envelope {
	return httputil.Envelope{
		Success: true,
		Status:  status,
		Message: linking.MessageFor(status),
		Result:  result,
	}
}
