// Package handler exposes the roster operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ulp-gateway/internal/enrollment"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/platform/middleware"
	dErrors "ulp-gateway/pkg/domain-errors"
	"ulp-gateway/pkg/platform/httputil"
	"ulp-gateway/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	ListStudents(ctx context.Context, token, grade, academicYear string) enrollment.ClassList
	BulkRegister(ctx context.Context, token string, batch enrollment.BulkRegistration) enrollment.BatchResult
	BulkIssue(ctx context.Context, token string, batch enrollment.BulkIssuance) enrollment.BatchResult
}

// Handler serves /v1/roster. Every route needs a staff bearer token.
type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/roster", func(r chi.Router) {
		r.Use(middleware.RequireBearer(h.logger))
		r.Get("/students", h.handleListStudents)
		r.Post("/students/bulk", h.handleBulkRegister)
		r.Post("/credentials/bulk", h.handleBulkIssue)
	})
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	list := h.service.ListStudents(ctx, requestcontext.BearerToken(ctx), q.Get("grade"), q.Get("academic_year"))

	switch {
	case list.State == linking.LookupFound:
		httputil.WriteEnvelope(w, http.StatusOK, httputil.Envelope{
			Success: true,
			Status:  list.Status,
			Message: linking.MessageFor(list.Status),
			Result:  list.Students,
		})
	case list.Failure != nil:
		httputil.WriteEnvelope(w, dErrors.ToHTTPStatus(list.Failure.Code()), httputil.Envelope{
			Status:  list.Status,
			Message: linking.MessageFor(list.Status),
			Result:  list.Failure,
		})
	default:
		httputil.WriteEnvelope(w, http.StatusNotFound, httputil.Envelope{
			Status:  list.Status,
			Message: linking.MessageFor(list.Status),
		})
	}
}

func (h *Handler) handleBulkRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkRegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeBatch(w, h.service.BulkRegister(ctx, requestcontext.BearerToken(ctx), req.BulkRegistration))
}

func (h *Handler) handleBulkIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkIssueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeBatch(w, h.service.BulkIssue(ctx, requestcontext.BearerToken(ctx), req.BulkIssuance))
}

// writeBatch reports a batch that could not start with the failure's
// status, and a batch with failed items as 207.
func (h *Handler) writeBatch(w http.ResponseWriter, res enrollment.BatchResult) {
	status := http.StatusOK
	switch {
	case res.Failure != nil:
		status = dErrors.ToHTTPStatus(res.Failure.Code())
	case res.Failed > 0:
		status = http.StatusMultiStatus
	}
	httputil.WriteEnvelope(w, status, httputil.Envelope{
		Success: res.OK(),
		Status:  res.Status,
		Message: batchMessage(res.Status),
		Result:  res,
	})
}

func batchMessage(status string) string {
	switch status {
	case enrollment.StatusBulkRegisterSuccess:
		return "Student Register Bulk API Success"
	case enrollment.StatusBulkRegisterError:
		return "Student Register Bulk API Error"
	case enrollment.StatusBulkIssueSuccess:
		return "Student Cred Bulk API Success"
	case enrollment.StatusBulkIssueError:
		return "Student Cred Bulk API Error"
	default:
		return linking.MessageFor(status)
	}
}
