// Package cache stores responses of write requests carrying an Idempotency-Key
// so a client retrying after a dropped connection gets the original answer
// instead of recording the same field event twice.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyInFlight is returned by Load while the first request for a key is still running
var ErrKeyInFlight = errors.New("idempotency key in flight")

// StoredResponse is a captured HTTP response
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// ResponseStore keeps responses per idempotency key
type ResponseStore interface {
	// Claim reserves key for ttl. Returns false when the key is already claimed or stored.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Store saves the response under a claimed key
	Store(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error

	// Load returns the stored response, nil when the key is unknown,
	// or ErrKeyInFlight while the claim holder has not stored yet
	Load(ctx context.Context, key string) (*StoredResponse, error)

	// Release drops a claim so the request can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources
	Close() error
}
