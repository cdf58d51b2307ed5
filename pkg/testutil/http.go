// Package testutil holds helpers shared by handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest marshals body (when non-nil) as the JSON request body.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "marshal request body")
		r = bytes.NewReader(raw)
	}
	return jsonRequest(method, path, r)
}

// NewRequestWithBody sends body verbatim, for pass-through and malformed input.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	return jsonRequest(method, path, strings.NewReader(body))
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func jsonRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Envelope is the gateway response body with the result left raw.
type Envelope struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// UnmarshalEnvelope decodes the response body. The recorder is not drained,
// so it may be called more than once per response.
func UnmarshalEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "decode envelope: %s", rr.Body.String())
	return env
}

// UnmarshalResult decodes the envelope result into T.
func UnmarshalResult[T any](t *testing.T, env Envelope) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(env.Result, &result), "decode result")
	return &result
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
}

// AssertStatusAndError checks the HTTP code and that the envelope reports
// failure with status.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, code int, status string) {
	t.Helper()
	assert.Equal(t, code, rr.Code, "body: %s", rr.Body.String())
	env := UnmarshalEnvelope(t, rr)
	assert.False(t, env.Success, "expected success=false")
	assert.Equal(t, status, env.Status)
}
