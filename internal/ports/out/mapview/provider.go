package mapview

import (
	"context"
	"errors"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// ErrUnavailable indicates the external mapping capability could not be loaded.
var ErrUnavailable = errors.New("map provider unavailable")

// MarkerSpec describes a marker to place.
type MarkerSpec struct {
	AttractionID domain.AttractionID
	Title        string
	Position     domain.Coordinates
	Category     domain.Category
	Icon         string
	Color        string
	InfoWindow   string
}

// Marker is a placed marker handle.
type Marker interface {
	SetVisible(visible bool)
	Visible() bool
	CloseInfoWindow()
}

// Map is an initialized map widget.
type Map interface {
	AddMarker(ctx context.Context, spec MarkerSpec) (Marker, error)
}

// Provider creates maps. Implementations return ErrUnavailable when the capability is missing.
type Provider interface {
	NewMap(ctx context.Context, center domain.Coordinates, zoom int) (Map, error)
}
