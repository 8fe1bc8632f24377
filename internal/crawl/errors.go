package crawl

import "errors"

// Sentinel errors shared across the service and its stores.
var (
	// ErrNotFound signals that a crawl id does not resolve to any
	// record. It maps to a client-visible 404, never a generic error.
	ErrNotFound = errors.New("crawl not found")

	// ErrEmptyURL rejects submissions with a blank URL.
	ErrEmptyURL = errors.New("url must not be empty")
)
