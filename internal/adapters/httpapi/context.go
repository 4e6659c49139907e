package httpapi

import (
	"context"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

type clientKey struct{}

func WithClient(ctx context.Context, id domain.ClientID) context.Context {
	return context.WithValue(ctx, clientKey{}, id)
}

func ClientFromContext(ctx context.Context) (domain.ClientID, bool) {
	v, ok := ctx.Value(clientKey{}).(domain.ClientID)
	return v, ok && v != ""
}
