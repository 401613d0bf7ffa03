package catalog

import "errors"

var (
	// ErrNotFound indicates the requested title doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the catalog database could not be read.
	ErrUnavailable = errors.New("catalog unavailable")
)
