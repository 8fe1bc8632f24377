package crawl

import (
	"context"
	"time"
)

// RecordStore persists crawl records. The store is the single source
// of truth; callers never cache record state across requests.
type RecordStore interface {
	// Create persists a new record. When another record with the same
	// ContentHash already exists, the existing record is returned and
	// created is false; the caller must not dispatch in that case.
	Create(ctx context.Context, rec Record) (out Record, created bool, err error)
	GetByID(ctx context.Context, id string) (Record, error)
	// GetByHash resolves the dedup index: the most recently created
	// record for the hash, or ErrNotFound.
	GetByHash(ctx context.Context, hash string) (Record, error)
	// UpdateStatus transitions the record. ArtifactRef is stored only
	// when status is Complete and cleared otherwise.
	UpdateStatus(ctx context.Context, id string, status Status, artifactRef string) error
	SetTaskID(ctx context.Context, id, taskID string) error
}

// Queue provides enqueue/dequeue semantics for crawl tasks.
// Delivery is at-least-once; consumers must tolerate re-delivery.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}

// Fetcher performs a single HTTP GET. A response with a non-2xx
// status code is returned without error; err is reserved for
// transport-level failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// ArtifactStore writes fetched content and returns an opaque
// reference to where it lives.
type ArtifactStore interface {
	Put(ctx context.Context, path string, contentType string, body []byte) (string, error)
}

// Publisher pushes terminal-transition events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes the dedup digest of a raw URL string.
type Hasher interface {
	Hash(url string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record and task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
