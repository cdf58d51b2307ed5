package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesCodeAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, CodeBadGateway, "registry unavailable")

	assert.True(t, HasCode(err, CodeBadGateway))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "registry unavailable: dial tcp: refused", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestCodeOfWrappedChain(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeNotFound, "school not found"))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeBadGateway:   http.StatusBadGateway,
		CodeTimeout:      http.StatusGatewayTimeout,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
