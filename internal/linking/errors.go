package linking

import (
	"errors"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/upstream"
	"ulp-gateway/pkg/platform/sentinel"
)

// kindOf converts a collaborator error into an error kind. Errors that did
// not come from a collaborator (cancellation, timeouts) are transport
// failures.
func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, identity.ErrMissingDisplayName),
		errors.Is(err, identity.ErrMissingBirthDate),
		errors.Is(err, identity.ErrMissingSubject):
		return KindInvalidRequest
	case errors.Is(err, sentinel.ErrConflict):
		return KindAlreadyLinked
	}

	switch upstream.CategoryOf(err) {
	case upstream.CategoryRejected, upstream.CategoryBadData:
		return KindRejected
	case upstream.CategoryUnauthorized:
		return KindUnauthorized
	case upstream.CategoryConflict:
		return KindAlreadyLinked
	default:
		return KindTransportFailure
	}
}

// isBenignDuplicate reports whether err is the directory refusing a
// username it already holds.
func isBenignDuplicate(err error) bool {
	return errors.Is(err, sentinel.ErrConflict) || upstream.IsConflict(err)
}

// FailureAt classifies err as the failure of step.
func FailureAt(step Step, err error) *Failure {
	return newFailure(kindOf(err), step, err.Error())
}

// NewFailure builds a failure of an explicit kind.
func NewFailure(kind ErrorKind, step Step, message string) *Failure {
	return newFailure(kind, step, message)
}
