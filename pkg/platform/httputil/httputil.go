// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "ulp-gateway/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies decoded by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// Envelope is the body of every gateway response. Status carries the
// vocabulary status (or the error code for request-level failures).
type Envelope struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteEnvelope writes env with the given HTTP status.
func WriteEnvelope(w http.ResponseWriter, status int, env Envelope) {
	WriteJSON(w, status, env)
}

// WriteError translates a domain error into an unsuccessful envelope.
// Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	env := Envelope{Status: string(code), Message: "internal error"}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			env.Message = de.Message
		}
	}
	WriteEnvelope(w, dErrors.ToHTTPStatus(code), env)
}

// Validatable request bodies normalise and check themselves after decoding.
type Validatable[T any] interface {
	*T
	Validate() error
}

// DecodeAndPrepare decodes the JSON body into T and runs its Validate method.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT Validatable[T]](
	w http.ResponseWriter,
	r *http.Request,
	logger *slog.Logger,
	ctx context.Context,
	requestID string,
) (*T, bool) {
	req := new(T)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "invalid request body"))
		return nil, false
	}
	if err := PT(req).Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			err = dErrors.Wrap(err, dErrors.CodeInvalidRequest, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
