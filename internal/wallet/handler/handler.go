// Package handler exposes the learner wallet over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/platform/middleware"
	"ulp-gateway/internal/wallet"
	dErrors "ulp-gateway/pkg/domain-errors"
	"ulp-gateway/pkg/platform/httputil"
	"ulp-gateway/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	Credentials(ctx context.Context, token string) wallet.Outcome
	Search(ctx context.Context, token string, body json.RawMessage) wallet.Outcome
	Issue(ctx context.Context, token string, body json.RawMessage) wallet.Outcome
}

const maxPassThroughBytes = 1 << 20

type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/wallet/credentials", func(r chi.Router) {
		r.Use(middleware.RequireBearer(h.logger))
		r.Get("/", h.handleCredentials)
		r.Post("/search", h.handleSearch)
		r.Post("/issue", h.handleIssue)
	})
}

func (h *Handler) handleCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := h.service.Credentials(ctx, requestcontext.BearerToken(ctx))
	writeOutcome(w, out, out.Credentials)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.service.Search)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.service.Issue)
}

// forward passes the request body through untouched; the service checks it
// is JSON.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, json.RawMessage) wallet.Outcome) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPassThroughBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read pass-through body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "invalid request body"))
		return
	}
	out := fn(ctx, requestcontext.BearerToken(ctx), body)
	writeOutcome(w, out, out.Payload)
}

func writeOutcome(w http.ResponseWriter, out wallet.Outcome, result any) {
	env := httputil.Envelope{
		Success: out.Found(),
		Status:  out.Status,
		Message: linking.MessageFor(out.Status),
	}
	switch {
	case out.Failure != nil:
		env.Result = out.Failure
		httputil.WriteEnvelope(w, dErrors.ToHTTPStatus(out.Failure.Code()), env)
	case !out.Found():
		httputil.WriteEnvelope(w, http.StatusNotFound, env)
	default:
		env.Result = result
		httputil.WriteEnvelope(w, http.StatusOK, env)
	}
}
