package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// ControllerHandlers exposes page controllers over JSON. Every route is client-scoped.
type ControllerHandlers struct {
	Registry *controller.Registry
}

func (h ControllerHandlers) mount(r chi.Router) {
	r.Get("/state", h.state)
	r.Get("/passes", h.passes)
	r.Get("/attractions", h.attractions)
	r.Get("/attractions/featured", h.featured)
	r.Get("/attractions/{attractionID}", h.attractionDetails)
	r.Post("/attractions/filter", h.filter)
	r.Post("/map", h.initMap)
	r.Get("/session", h.session)
	r.Post("/session", h.login)
	r.Delete("/session", h.logout)
	r.Get("/cart", h.cart)
	r.Post("/cart", h.selectPass)
	r.Post("/install/dismiss", h.dismissInstall)
	r.Delete("/", h.drop)
}

func (h ControllerHandlers) controller(w http.ResponseWriter, r *http.Request) (*controller.Controller, bool) {
	c, err := h.Registry.Get(r.Context(), clientID(r))
	if err != nil {
		writeAppError(w, r, err)
		return nil, false
	}
	return c, true
}

func (h ControllerHandlers) state(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateToDTO(c.Snapshot()))
}

func (h ControllerHandlers) passes(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passes": passesToDTO(c.Passes())})
}

func (h ControllerHandlers) attractions(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attractions": attractionsToDTO(c.Attractions())})
}

func (h ControllerHandlers) featured(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attractions": attractionsToDTO(c.FeaturedAttractions())})
}

func (h ControllerHandlers) attractionDetails(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	d, err := c.AttractionDetails(domain.AttractionID(chi.URLParam(r, "attractionID")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AttractionDetailsDTO{
		Attraction: attractionsToDTO([]domain.Attraction{d.Attraction})[0],
		Summary:    d.Summary,
		InfoWindow: controller.InfoWindowText(d.Attraction),
	})
}

func (h ControllerHandlers) filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid category", map[string]any{"category": "must be non-empty"})
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	visible := c.FilterAttractions(domain.Category(category))
	writeJSON(w, http.StatusOK, map[string]any{
		"filter":      category,
		"attractions": attractionsToDTO(visible),
		"markers":     stateToDTO(c.Snapshot()).Markers,
	})
}

func (h ControllerHandlers) initMap(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateToDTO(c.InitMap(r.Context())))
}

func (h ControllerHandlers) session(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	s := c.Session()
	if s == nil {
		writeJSON(w, http.StatusOK, map[string]any{"isLoggedIn": false})
		return
	}
	writeJSON(w, http.StatusOK, sessionToDTO(*s))
}

func (h ControllerHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	s, err := c.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToDTO(s))
}

func (h ControllerHandlers) logout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.Logout(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h ControllerHandlers) cart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cartToDTO(c.Cart()))
}

func (h ControllerHandlers) selectPass(w http.ResponseWriter, r *http.Request) {
	var req selectPassRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if _, err := c.SelectPass(r.Context(), domain.PassID(strings.TrimSpace(req.PassID))); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartToDTO(c.Cart()))
}

func (h ControllerHandlers) dismissInstall(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.DismissInstall(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// drop forgets the in-memory page session; persisted state survives for the next visit.
func (h ControllerHandlers) drop(w http.ResponseWriter, r *http.Request) {
	h.Registry.Drop(clientID(r))
	w.WriteHeader(http.StatusNoContent)
}
