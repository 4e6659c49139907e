package idempotency

import (
	"context"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
// Purchase sync uses the purchase id.
type Key string

// Fingerprint identifies a request uniquely for idempotency purposes:
// key + client + method + route + request body hash.
type Fingerprint struct {
	Key      Key
	Client   domain.ClientID
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response we can replay for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying safe responses on retries.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
