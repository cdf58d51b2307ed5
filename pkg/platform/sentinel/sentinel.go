// Package sentinel holds infrastructure facts shared by caches and
// collaborator clients. Services match them with errors.Is and turn them into
// outcomes; input problems belong in pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound: the key or entity is absent (cache miss, unknown schema).
	ErrNotFound = errors.New("not found")
	// ErrConflict: the write duplicates an existing account or record.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the backing service could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
