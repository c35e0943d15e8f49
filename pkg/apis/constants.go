package apis

import (
	"errors"
)

const (
	// HTTP request fields
	IfMatch = "If-Match"

	// HTTP response fields
	Location = "Location"
	ETag     = "ETag"

	// Query parameters
	Filter = "filter"
)

var (
	ErrMismatch = errors.New("resource mismatch")
	ErrInternal = errors.New("internal error")
)
