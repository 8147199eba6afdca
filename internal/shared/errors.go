package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist upstream.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed or incomplete record.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream indicates an ERP communication failure other than 404.
	ErrUpstream = errors.New("upstream error")
)
