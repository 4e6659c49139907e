package httpcatalog

import "github.com/palm-beach-pass/pass-api/internal/domain"

func passWithBadge(badge *string) domain.Pass {
	return domain.Pass{
		ID:       "7-day",
		Name:     "7 Day Pass",
		Duration: 7,
		Prices:   domain.Prices{Adult: 329, Child: 259},
		Badge:    badge,
	}
}
