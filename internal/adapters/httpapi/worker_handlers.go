package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/palm-beach-pass/pass-api/internal/app/offline"
	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/notifier"
)

// Mailboxes is the receive side of page-context messages, drained by the event stream.
type Mailboxes interface {
	Messages(client domain.ClientID) <-chan notifier.Message
	Drop(client domain.ClientID)
}

// WorkerHandlers exposes the worker's control surface: messages, sync registration, storage,
// push, and the page-context registry with its event stream.
type WorkerHandlers struct {
	Worker    *offline.Worker
	Scheduler *offline.Scheduler
	Mailboxes Mailboxes

	// Heartbeat is the event-stream keepalive interval; zero uses 25s.
	Heartbeat time.Duration
}

type registerClientRequest struct {
	URL string `json:"url"`
}

type syncRequest struct {
	Tag string `json:"tag"`
}

type clickRequest struct {
	Action string `json:"action"`
}

type clientDTO struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Controlled   bool      `json:"controlled"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (h WorkerHandlers) mount(r chi.Router) {
	r.Get("/version", h.version)
	r.Post("/messages", h.message)
	r.Post("/sync", h.registerSync)
	r.Get("/sync", h.pendingSync)
	r.Put("/storage/{key}", h.storeData)
	r.Get("/storage/{key}", h.loadData)
	r.Post("/push", h.push)
	r.Get("/notifications", h.notifications)
	r.Post("/notifications/{notificationID}/click", h.click)
	r.Get("/clients", h.listClients)

	r.Group(func(r chi.Router) {
		r.Use(NewClientMiddleware(""))
		r.Post("/clients", h.registerClient)
		r.Delete("/clients", h.unregisterClient)
		r.Get("/events", h.events)
	})
}

func (h WorkerHandlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": h.Worker.Version(),
		"state":   string(h.Worker.State()),
	})
}

func (h WorkerHandlers) message(w http.ResponseWriter, r *http.Request) {
	b, ok := readBody(w, r)
	if !ok {
		return
	}
	m, err := offline.DecodeMessage(b)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	reply, err := h.Worker.Handle(r.Context(), m)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if reply != nil {
		writeJSON(w, http.StatusOK, reply)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h WorkerHandlers) registerSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Scheduler.Register(strings.TrimSpace(req.Tag)); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tag": req.Tag, "pending": h.Scheduler.Pending()})
}

func (h WorkerHandlers) pendingSync(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pending": h.Scheduler.Pending()})
}

func (h WorkerHandlers) storeData(w http.ResponseWriter, r *http.Request) {
	b, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := h.Worker.StoreData(r.Context(), chi.URLParam(r, "key"), b); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h WorkerHandlers) loadData(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.Worker.LoadData(r.Context(), key)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if v == nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "nothing stored", map[string]any{"key": key})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v)
}

func (h WorkerHandlers) push(w http.ResponseWriter, r *http.Request) {
	b, ok := readBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, h.Worker.Push(r.Context(), b))
}

func (h WorkerHandlers) notifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": h.Worker.Notifications()})
}

func (h WorkerHandlers) click(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if b, ok := readBody(w, r); !ok {
		return
	} else if len(b) > 0 {
		if err := json.Unmarshal(b, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", nil)
			return
		}
	}
	res, err := h.Worker.ClickNotification(r.Context(), chi.URLParam(r, "notificationID"), req.Action)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h WorkerHandlers) listClients(w http.ResponseWriter, r *http.Request) {
	controlledOnly := r.URL.Query().Get("controlled") == "true"
	list := h.Worker.Clients().List(controlledOnly)
	out := make([]clientDTO, 0, len(list))
	for _, c := range list {
		out = append(out, clientToDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": out})
}

func (h WorkerHandlers) registerClient(w http.ResponseWriter, r *http.Request) {
	var req registerClientRequest
	if b, ok := readBody(w, r); !ok {
		return
	} else if len(b) > 0 {
		if err := json.Unmarshal(b, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", nil)
			return
		}
	}
	c, err := h.Worker.Clients().Register(clientID(r), req.URL)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientToDTO(c))
}

func (h WorkerHandlers) unregisterClient(w http.ResponseWriter, r *http.Request) {
	id := clientID(r)
	h.Worker.Clients().Unregister(id)
	if h.Mailboxes != nil {
		h.Mailboxes.Drop(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// events streams the client's messages as server-sent events until the client goes away.
// A client that is not registered yet is registered with the url query parameter.
func (h WorkerHandlers) events(w http.ResponseWriter, r *http.Request) {
	if h.Mailboxes == nil {
		writeError(w, r, http.StatusNotImplemented, "EVENTS_UNAVAILABLE", "event stream not configured", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "streaming unsupported", nil)
		return
	}
	id := clientID(r)
	if _, known := h.Worker.Clients().Get(id); !known {
		if _, err := h.Worker.Clients().Register(id, r.URL.Query().Get("url")); err != nil {
			writeAppError(w, r, err)
			return
		}
	}

	msgs := h.Mailboxes.Messages(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	tick := time.NewTicker(heartbeat)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b, err := json.Marshal(msg)
			if err != nil {
				log.Printf("httpapi: encode event for %s: %v", id, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, b); err != nil {
				return
			}
			flusher.Flush()
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func clientToDTO(c offline.Client) clientDTO {
	return clientDTO{
		ID:           string(c.ID),
		URL:          c.URL,
		Controlled:   c.Controlled,
		RegisteredAt: c.RegisteredAt,
	}
}
