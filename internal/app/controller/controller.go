package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/catalog"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/mapview"
)

// FeaturedLimit caps the featured attraction list.
const FeaturedLimit = 6

var (
	// MapCenter is the initial map centre over Palm Beach County.
	MapCenter = domain.Coordinates{Lat: 26.7000, Lng: -80.0500}
	MapZoom   = 11
)

// Credentials is the demo account the login flow accepts.
type Credentials struct {
	Email    string
	Password string
}

// DefaultCredentials is the built-in demo account.
var DefaultCredentials = Credentials{Email: "demo@palmbeachpass.com", Password: "demo123"}

var demoUser = domain.User{
	ID:       "demo-user",
	Name:     "Demo User",
	JoinDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

// State is the page-session state. Snapshot returns a copy of it.
type State struct {
	Passes      []domain.Pass
	Attractions []domain.Attraction
	Cart        domain.Cart
	Session     *domain.AuthSession
	Filter      domain.Category

	// PassesFallback and AttractionsFallback report which catalogs came from the built-in lists.
	PassesFallback      bool
	AttractionsFallback bool

	MapReady    bool
	MapFallback bool
	Markers     []MarkerState

	InstallDismissed bool
}

// MarkerState is the visibility of one placed marker.
type MarkerState struct {
	AttractionID domain.AttractionID
	Visible      bool
}

type placedMarker struct {
	attraction domain.Attraction
	marker     mapview.Marker
}

// Controller drives one page session.
type Controller struct {
	client  domain.ClientID
	catalog catalog.Source
	kv      kvstore.Store
	maps    mapview.Provider
	clk     clock.Clock
	demo    Credentials

	mu      sync.Mutex
	state   State
	markers []placedMarker
}

func New(client domain.ClientID, src catalog.Source, kv kvstore.Store, maps mapview.Provider, clk clock.Clock, demo Credentials) *Controller {
	if demo.Email == "" && demo.Password == "" {
		demo = DefaultCredentials
	}
	return &Controller{
		client:  client,
		catalog: src,
		kv:      kv,
		maps:    maps,
		clk:     clk,
		demo:    demo,
		state:   State{Filter: domain.CategoryAll},
	}
}

func (c *Controller) ClientID() domain.ClientID { return c.client }

// Init loads the catalogs and restores persisted session state.
func (c *Controller) Init(ctx context.Context) error {
	c.Load(ctx)
	return c.Restore(ctx)
}

// Load fetches both catalogs. Each one falls back to its built-in list on its own.
func (c *Controller) Load(ctx context.Context) {
	passes, err := c.catalog.Passes(ctx)
	passesFallback := err != nil
	if err != nil {
		log.Printf("controller: %s: passes catalog unavailable, using defaults: %v", c.client, err)
		passes = DefaultPasses()
	}

	attractions, err := c.catalog.Attractions(ctx)
	attractionsFallback := err != nil
	if err != nil {
		log.Printf("controller: %s: attractions catalog unavailable, using defaults: %v", c.client, err)
		attractions = DefaultAttractions()
	}

	c.mu.Lock()
	c.state.Passes = passes
	c.state.PassesFallback = passesFallback
	c.state.Attractions = attractions
	c.state.AttractionsFallback = attractionsFallback
	c.mu.Unlock()
}

// Restore reads the persisted session and cart. Values that cannot be parsed are discarded and
// their keys deleted.
func (c *Controller) Restore(ctx context.Context) error {
	var (
		session   *domain.AuthSession
		cart      domain.Cart
		dismissed bool
	)

	raw, err := c.kv.Get(ctx, KeyAuth)
	switch {
	case err == nil:
		s, derr := decodeAuth(raw)
		if derr != nil {
			log.Printf("controller: %s: failed to parse saved auth: %v", c.client, derr)
			if err := c.kv.Delete(ctx, KeyAuth); err != nil {
				return err
			}
		} else {
			session = s
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		return err
	}

	raw, err = c.kv.Get(ctx, KeyCart)
	switch {
	case err == nil:
		cc, derr := decodeCart(raw)
		if derr != nil {
			log.Printf("controller: %s: failed to parse saved cart: %v", c.client, derr)
			if err := c.kv.Delete(ctx, KeyCart); err != nil {
				return err
			}
		} else {
			cart = cc
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		return err
	}

	raw, err = c.kv.Get(ctx, KeyInstallDismissed)
	switch {
	case err == nil:
		dismissed = raw == "true"
	case !errors.Is(err, kvstore.ErrNotFound):
		return err
	}

	c.mu.Lock()
	c.state.Session = session
	c.state.Cart = cart
	c.state.InstallDismissed = dismissed
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Passes = append([]domain.Pass(nil), c.state.Passes...)
	s.Attractions = append([]domain.Attraction(nil), c.state.Attractions...)
	s.Cart = append(domain.Cart(nil), c.state.Cart...)
	if c.state.Session != nil {
		sess := *c.state.Session
		s.Session = &sess
	}
	s.Markers = c.markerStatesLocked()
	return s
}

func (c *Controller) markerStatesLocked() []MarkerState {
	out := make([]MarkerState, 0, len(c.markers))
	for _, m := range c.markers {
		out = append(out, MarkerState{AttractionID: m.attraction.ID, Visible: m.marker.Visible()})
	}
	return out
}

func (c *Controller) Passes() []domain.Pass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Pass(nil), c.state.Passes...)
}

func (c *Controller) Attractions() []domain.Attraction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Attraction(nil), c.state.Attractions...)
}

func (c *Controller) FeaturedAttractions() []domain.Attraction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.FeaturedAttractions(c.state.Attractions, FeaturedLimit)
}

// AttractionDetails is an attraction plus its one-line summary.
type AttractionDetails struct {
	Attraction domain.Attraction
	Summary    string
}

func (c *Controller) AttractionDetails(id domain.AttractionID) (AttractionDetails, error) {
	c.mu.Lock()
	a, ok := domain.FindAttraction(c.state.Attractions, id)
	c.mu.Unlock()
	if !ok {
		return AttractionDetails{}, &Error{Status: 404, Code: "ATTRACTION_NOT_FOUND", Message: "attraction not found"}
	}
	price := ""
	if a.RegularPrice > 0 {
		price = "Regular: " + formatPrice(a.RegularPrice)
	}
	return AttractionDetails{
		Attraction: a,
		Summary:    fmt.Sprintf("🎫 %s | %s | FREE with Palm Beach Pass! | %s", a.Name, price, a.Description),
	}, nil
}

// Login checks the credentials against the demo account and persists the session.
func (c *Controller) Login(ctx context.Context, email, password string) (domain.AuthSession, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.AuthSession{}, &Error{Status: 422, Code: "MISSING_CREDENTIALS", Message: "Please fill in all fields"}
	}
	if domain.NormalizeEmail(email) != domain.NormalizeEmail(c.demo.Email) || password != c.demo.Password {
		return domain.AuthSession{}, &Error{Status: 401, Code: "INVALID_CREDENTIALS", Message: "Invalid credentials"}
	}

	user := demoUser
	user.Email = c.demo.Email
	session := domain.AuthSession{User: user, LoginAt: c.clk.Now().UTC()}
	raw, err := encodeAuth(session)
	if err != nil {
		return domain.AuthSession{}, err
	}
	if err := c.kv.Set(ctx, KeyAuth, raw); err != nil {
		return domain.AuthSession{}, err
	}

	c.mu.Lock()
	c.state.Session = &session
	c.mu.Unlock()
	return session, nil
}

// Logout ends the session. Logging out without a session is a no-op.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.kv.Delete(ctx, KeyAuth); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Session = nil
	c.mu.Unlock()
	return nil
}

func (c *Controller) Session() *domain.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Session == nil {
		return nil
	}
	s := *c.state.Session
	return &s
}

// SelectPass replaces the cart with a single line for the pass and persists it.
func (c *Controller) SelectPass(ctx context.Context, id domain.PassID) (domain.CartLine, error) {
	c.mu.Lock()
	pass, found := domain.FindPass(c.state.Passes, id)
	loggedIn := c.state.Session != nil
	c.mu.Unlock()

	if !found {
		return domain.CartLine{}, &Error{Status: 404, Code: "PASS_NOT_FOUND", Message: "Pass not found"}
	}
	if !loggedIn {
		return domain.CartLine{}, &Error{Status: 401, Code: "AUTH_REQUIRED", Message: "Please sign in to purchase a pass"}
	}

	line := domain.NewCartLine(pass, c.clk.Now().UTC())
	cart := domain.Cart{line}
	raw, err := encodeCart(cart)
	if err != nil {
		return domain.CartLine{}, err
	}
	if err := c.kv.Set(ctx, KeyCart, raw); err != nil {
		return domain.CartLine{}, err
	}

	c.mu.Lock()
	c.state.Cart = cart
	c.mu.Unlock()
	return line, nil
}

func (c *Controller) Cart() domain.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(domain.Cart(nil), c.state.Cart...)
}

func (c *Controller) CartCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Cart.Count()
}

// FilterAttractions shows the markers and attractions of one category ("all" shows everything)
// and returns the attractions now visible. Hidden markers have their info window closed.
func (c *Controller) FilterAttractions(category domain.Category) []domain.Attraction {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Filter = category
	c.applyFilterLocked()

	visible := make([]domain.Attraction, 0, len(c.state.Attractions))
	for _, a := range c.state.Attractions {
		if category.Matches(a.Category) {
			visible = append(visible, a)
		}
	}
	return visible
}

func (c *Controller) applyFilterLocked() {
	for _, m := range c.markers {
		show := c.state.Filter.Matches(m.attraction.Category)
		m.marker.SetVisible(show)
		if !show {
			m.marker.CloseInfoWindow()
		}
	}
}

// InitMap places one marker per attraction with coordinates. When the provider is unavailable or
// fails, the controller switches to the map fallback state instead.
func (c *Controller) InitMap(ctx context.Context) State {
	m, err := c.maps.NewMap(ctx, MapCenter, MapZoom)
	if err != nil {
		if !errors.Is(err, mapview.ErrUnavailable) {
			log.Printf("controller: %s: failed to initialize map: %v", c.client, err)
		}
		c.mu.Lock()
		c.state.MapReady = false
		c.state.MapFallback = true
		c.markers = nil
		c.mu.Unlock()
		return c.Snapshot()
	}

	attractions := c.Attractions()
	placed := make([]placedMarker, 0, len(attractions))
	for _, a := range attractions {
		if a.Coordinates == nil {
			continue
		}
		mk, err := m.AddMarker(ctx, mapview.MarkerSpec{
			AttractionID: a.ID,
			Title:        a.Name,
			Position:     *a.Coordinates,
			Category:     a.Category,
			Icon:         a.Category.Icon(),
			Color:        a.Category.MarkerColor(),
			InfoWindow:   InfoWindowText(a),
		})
		if err != nil {
			log.Printf("controller: %s: failed to create marker for %s: %v", c.client, a.Name, err)
			continue
		}
		placed = append(placed, placedMarker{attraction: a, marker: mk})
	}

	c.mu.Lock()
	c.markers = placed
	c.state.MapReady = true
	c.state.MapFallback = false
	c.applyFilterLocked()
	c.mu.Unlock()
	return c.Snapshot()
}

// InfoWindowText is the marker popup content for an attraction.
func InfoWindowText(a domain.Attraction) string {
	var b strings.Builder
	b.WriteString(a.Name)
	b.WriteString("\n")
	b.WriteString(a.Category.Icon() + " " + strings.ToUpper(string(a.Category)))
	if a.Description != "" {
		b.WriteString("\n")
		b.WriteString(a.Description)
	}
	b.WriteString("\n")
	if a.RegularPrice > 0 {
		b.WriteString("Regular $" + formatPrice(a.RegularPrice) + " ")
	}
	b.WriteString("FREE with Pass")
	return b.String()
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// DismissInstall remembers that the install banner was dismissed.
func (c *Controller) DismissInstall(ctx context.Context) error {
	if err := c.kv.Set(ctx, KeyInstallDismissed, "true"); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.InstallDismissed = true
	c.mu.Unlock()
	return nil
}
