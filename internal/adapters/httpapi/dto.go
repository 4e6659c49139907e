package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/palm-beach-pass/pass-api/internal/adapters/httpcatalog"
	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/domain"
)

type UserDTO struct {
	ID       string              `json:"id"`
	Email    openapi_types.Email `json:"email"`
	Name     string              `json:"name"`
	JoinDate openapi_types.Date  `json:"joinDate"`
}

type SessionDTO struct {
	IsLoggedIn bool      `json:"isLoggedIn"`
	User       UserDTO   `json:"user"`
	LoginAt    time.Time `json:"loginAt"`
}

type CartLineDTO struct {
	PassID     string  `json:"passId"`
	Name       string  `json:"name"`
	Duration   int     `json:"duration"`
	AdultPrice float64 `json:"adultPrice"`
	ChildPrice float64 `json:"childPrice"`
	AdultQty   int     `json:"adultQty"`
	ChildQty   int     `json:"childQty"`
	Total      float64 `json:"total"`
	// Timestamp is in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`
}

type CartDTO struct {
	Items []CartLineDTO `json:"items"`
	Count int           `json:"count"`
	Total float64       `json:"total"`
}

type MarkerDTO struct {
	AttractionID string `json:"attractionId"`
	Visible      bool   `json:"visible"`
}

// StateDTO is the full page-session state.
type StateDTO struct {
	Passes              []httpcatalog.PassDTO         `json:"passes"`
	Attractions         []httpcatalog.AttractionDTO   `json:"attractions"`
	Cart                CartDTO                       `json:"cart"`
	Session             nullable.Nullable[SessionDTO] `json:"session"`
	Filter              string                        `json:"filter"`
	PassesFallback      bool                          `json:"passesFallback"`
	AttractionsFallback bool                          `json:"attractionsFallback"`
	MapReady            bool                          `json:"mapReady"`
	MapFallback         bool                          `json:"mapFallback"`
	Markers             []MarkerDTO                   `json:"markers"`
	InstallDismissed    bool                          `json:"installDismissed"`
}

type AttractionDetailsDTO struct {
	Attraction httpcatalog.AttractionDTO `json:"attraction"`
	Summary    string                    `json:"summary"`
	InfoWindow string                    `json:"infoWindow"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type selectPassRequest struct {
	PassID string `json:"passId"`
}

type filterRequest struct {
	Category string `json:"category"`
}

func sessionToDTO(s domain.AuthSession) SessionDTO {
	return SessionDTO{
		IsLoggedIn: true,
		User: UserDTO{
			ID:       string(s.User.ID),
			Email:    openapi_types.Email(s.User.Email),
			Name:     s.User.Name,
			JoinDate: openapi_types.Date{Time: s.User.JoinDate},
		},
		LoginAt: s.LoginAt,
	}
}

func cartLineToDTO(l domain.CartLine) CartLineDTO {
	return CartLineDTO{
		PassID:     string(l.PassID),
		Name:       l.Name,
		Duration:   l.Duration,
		AdultPrice: l.AdultPrice,
		ChildPrice: l.ChildPrice,
		AdultQty:   l.AdultQty,
		ChildQty:   l.ChildQty,
		Total:      l.Total(),
		Timestamp:  l.CreatedAt.UnixMilli(),
	}
}

func cartToDTO(c domain.Cart) CartDTO {
	items := make([]CartLineDTO, 0, len(c))
	for _, l := range c {
		items = append(items, cartLineToDTO(l))
	}
	return CartDTO{Items: items, Count: c.Count(), Total: c.Total()}
}

func passesToDTO(list []domain.Pass) []httpcatalog.PassDTO {
	out := make([]httpcatalog.PassDTO, 0, len(list))
	for _, p := range list {
		out = append(out, httpcatalog.PassToDTO(p))
	}
	return out
}

func attractionsToDTO(list []domain.Attraction) []httpcatalog.AttractionDTO {
	out := make([]httpcatalog.AttractionDTO, 0, len(list))
	for _, a := range list {
		out = append(out, httpcatalog.AttractionToDTO(a))
	}
	return out
}

func stateToDTO(s controller.State) StateDTO {
	out := StateDTO{
		Passes:              passesToDTO(s.Passes),
		Attractions:         attractionsToDTO(s.Attractions),
		Cart:                cartToDTO(s.Cart),
		Session:             nullable.NewNullNullable[SessionDTO](),
		Filter:              string(s.Filter),
		PassesFallback:      s.PassesFallback,
		AttractionsFallback: s.AttractionsFallback,
		MapReady:            s.MapReady,
		MapFallback:         s.MapFallback,
		Markers:             make([]MarkerDTO, 0, len(s.Markers)),
		InstallDismissed:    s.InstallDismissed,
	}
	if s.Session != nil {
		out.Session = nullable.NewNullableWithValue(sessionToDTO(*s.Session))
	}
	for _, m := range s.Markers {
		out.Markers = append(out.Markers, MarkerDTO{AttractionID: string(m.AttractionID), Visible: m.Visible})
	}
	return out
}
