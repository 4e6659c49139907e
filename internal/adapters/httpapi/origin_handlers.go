package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/palm-beach-pass/pass-api/internal/app/origin"
	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// OriginHandlers is the server side of the worker's sync tasks plus the catalog data files.
type OriginHandlers struct {
	Service     *origin.Service
	Passes      []domain.Pass
	Attractions []domain.Attraction
}

type purchaseDTO struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"clientId"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

func (h OriginHandlers) mount(r chi.Router) {
	r.Get("/data/passes.json", h.passesFile)
	r.Get("/data/attractions.json", h.attractionsFile)
	r.Get("/api/passes/check-updates", h.checkUpdates)
	r.Get("/api/purchases", h.listPurchases)

	r.Group(func(r chi.Router) {
		r.Use(NewClientMiddleware(""))
		r.Post("/api/cart/sync", h.syncCart)
		r.Post("/api/passes/sync", h.syncPasses)
		r.Post("/api/purchases", h.recordPurchase)
	})
}

func (h OriginHandlers) passesFile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, passesToDTO(h.Passes))
}

func (h OriginHandlers) attractionsFile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, attractionsToDTO(h.Attractions))
}

func (h OriginHandlers) syncCart(w http.ResponseWriter, r *http.Request) {
	b, ok := readBody(w, r)
	if !ok {
		return
	}
	snap, err := h.Service.SyncCart(r.Context(), clientID(r), b)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "receivedAt": snap.ReceivedAt})
}

func (h OriginHandlers) syncPasses(w http.ResponseWriter, r *http.Request) {
	b, ok := readBody(w, r)
	if !ok {
		return
	}
	snap, err := h.Service.SyncPasses(r.Context(), clientID(r), b)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "receivedAt": snap.ReceivedAt})
}

func (h OriginHandlers) recordPurchase(w http.ResponseWriter, r *http.Request) {
	b, ok := readBody(w, r)
	if !ok {
		return
	}
	rec, created, err := h.Service.RecordPurchase(r.Context(), clientID(r), r.Header.Get("Idempotency-Key"), b)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, rec)
}

func (h OriginHandlers) listPurchases(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.Purchases(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]purchaseDTO, 0, len(list))
	for _, p := range list {
		out = append(out, purchaseDTO{
			ID:         string(p.ID),
			ClientID:   string(p.Client),
			Payload:    p.Payload,
			ReceivedAt: p.ReceivedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": out})
}

// checkUpdates does not require a client id; without one only an explicit since is compared.
func (h OriginHandlers) checkUpdates(w http.ResponseWriter, r *http.Request) {
	client := domain.ClientID(strings.TrimSpace(r.Header.Get(ClientHeader)))
	u, err := h.Service.CheckUpdates(r.Context(), client, r.URL.Query().Get("since"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
