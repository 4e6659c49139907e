package mapview

import (
	"context"
	"sync"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/mapview"
)

// Provider is an in-memory map provider. It records every map and marker so the
// page controller can run without a real mapping service.
type Provider struct {
	// Unavailable makes NewMap fail with mapview.ErrUnavailable.
	Unavailable bool

	mu   sync.Mutex
	maps []*Map
}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) NewMap(ctx context.Context, center domain.Coordinates, zoom int) (mapview.Map, error) {
	_ = ctx
	if p == nil || p.Unavailable {
		return nil, mapview.ErrUnavailable
	}
	m := &Map{Center: center, Zoom: zoom}
	p.mu.Lock()
	p.maps = append(p.maps, m)
	p.mu.Unlock()
	return m, nil
}

// LastMap returns the most recently created map, or nil.
func (p *Provider) LastMap() *Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.maps) == 0 {
		return nil
	}
	return p.maps[len(p.maps)-1]
}

// Map records placed markers.
type Map struct {
	Center domain.Coordinates
	Zoom   int

	mu      sync.Mutex
	markers []*Marker
}

func (m *Map) AddMarker(ctx context.Context, spec mapview.MarkerSpec) (mapview.Marker, error) {
	_ = ctx
	mk := &Marker{Spec: spec, visible: true}
	m.mu.Lock()
	m.markers = append(m.markers, mk)
	m.mu.Unlock()
	return mk, nil
}

// Markers returns the placed markers in placement order.
func (m *Map) Markers() []*Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Marker(nil), m.markers...)
}

type Marker struct {
	Spec mapview.MarkerSpec

	mu             sync.Mutex
	visible        bool
	infoWindowOpen bool
}

func (m *Marker) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = visible
}

func (m *Marker) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// OpenInfoWindow simulates a marker click.
func (m *Marker) OpenInfoWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoWindowOpen = true
}

func (m *Marker) InfoWindowOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoWindowOpen
}

func (m *Marker) CloseInfoWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoWindowOpen = false
}
