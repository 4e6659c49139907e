package purchaserepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

var (
	ErrNotFound      = errors.New("purchase not found")
	ErrAlreadyExists = errors.New("purchase already exists")
)

// Purchase is the persistence shape of a purchase received from a worker.
// Payload is stored verbatim.
type Purchase struct {
	ID         domain.PurchaseID
	Client     domain.ClientID
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Repository persists purchases.
//
// List returns purchases ordered by ReceivedAt ascending, then ID.
type Repository interface {
	Create(ctx context.Context, p Purchase) error
	GetByID(ctx context.Context, id domain.PurchaseID) (Purchase, error)
	List(ctx context.Context) ([]Purchase, error)
}
