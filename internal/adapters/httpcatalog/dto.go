package httpcatalog

import (
	"fmt"

	"github.com/oapi-codegen/nullable"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// PassDTO is the wire form of a pass in /data/passes.json.
type PassDTO struct {
	ID       string                   `json:"id"`
	Name     string                   `json:"name"`
	Duration int                      `json:"duration"`
	Prices   PricesDTO                `json:"prices"`
	Features []string                 `json:"features"`
	Badge    nullable.Nullable[string] `json:"badge"`
}

type PricesDTO struct {
	Adult float64 `json:"adult"`
	Child float64 `json:"child"`
}

// AttractionDTO is the wire form of an attraction in /data/attractions.json.
type AttractionDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	RegularPrice float64         `json:"regularPrice"`
	Coordinates  *CoordinatesDTO `json:"coordinates"`
	Image        string          `json:"image"`
	Gradient     string          `json:"gradient"`
	Featured     bool            `json:"featured"`
}

type CoordinatesDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func PassFromDTO(in PassDTO) (domain.Pass, error) {
	p := domain.Pass{
		ID:       domain.PassID(in.ID),
		Name:     domain.NormalizeHumanName(in.Name),
		Duration: in.Duration,
		Prices:   domain.Prices{Adult: in.Prices.Adult, Child: in.Prices.Child},
		Features: append([]string(nil), in.Features...),
	}
	if in.Badge.IsSpecified() && !in.Badge.IsNull() {
		if v, err := in.Badge.Get(); err == nil && v != "" {
			p.Badge = &v
		}
	}
	if err := p.Validate(); err != nil {
		return domain.Pass{}, fmt.Errorf("pass %q: %w", in.ID, err)
	}
	return p, nil
}

func PassToDTO(p domain.Pass) PassDTO {
	out := PassDTO{
		ID:       string(p.ID),
		Name:     p.Name,
		Duration: p.Duration,
		Prices:   PricesDTO{Adult: p.Prices.Adult, Child: p.Prices.Child},
		Features: append([]string{}, p.Features...),
		Badge:    nullable.NewNullNullable[string](),
	}
	if p.Badge != nil {
		out.Badge = nullable.NewNullableWithValue(*p.Badge)
	}
	return out
}

func AttractionFromDTO(in AttractionDTO) (domain.Attraction, error) {
	a := domain.Attraction{
		ID:           domain.AttractionID(in.ID),
		Name:         domain.NormalizeHumanName(in.Name),
		Category:     domain.Category(in.Category),
		Description:  in.Description,
		RegularPrice: in.RegularPrice,
		Image:        in.Image,
		Gradient:     in.Gradient,
		Featured:     in.Featured,
	}
	if in.Coordinates != nil {
		a.Coordinates = &domain.Coordinates{Lat: in.Coordinates.Lat, Lng: in.Coordinates.Lng}
	}
	if err := a.Validate(); err != nil {
		return domain.Attraction{}, fmt.Errorf("attraction %q: %w", in.ID, err)
	}
	return a, nil
}

func AttractionToDTO(a domain.Attraction) AttractionDTO {
	out := AttractionDTO{
		ID:           string(a.ID),
		Name:         a.Name,
		Category:     string(a.Category),
		Description:  a.Description,
		RegularPrice: a.RegularPrice,
		Image:        a.Image,
		Gradient:     a.Gradient,
		Featured:     a.Featured,
	}
	if a.Coordinates != nil {
		out.Coordinates = &CoordinatesDTO{Lat: a.Coordinates.Lat, Lng: a.Coordinates.Lng}
	}
	return out
}
