package catalog

import (
	"context"
	"errors"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// ErrUnavailable indicates the catalog could not be fetched or decoded.
var ErrUnavailable = errors.New("catalog unavailable")

// Source loads the pass and attraction catalogs. The two are fetched independently.
type Source interface {
	Passes(ctx context.Context) ([]domain.Pass, error)
	Attractions(ctx context.Context) ([]domain.Attraction, error)
}
