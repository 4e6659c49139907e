package offline

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/notifier"
)

// Message types delivered to page contexts.
const (
	EventControllerChanged    = "CONTROLLER_CHANGED"
	EventCartSynced           = "CART_SYNCED"
	EventPassesSynced         = "PASSES_SYNCED"
	EventPurchasesSynced      = "PURCHASES_SYNCED"
	EventPassUpdatesAvailable = "PASS_UPDATES_AVAILABLE"
	EventFocus                = "FOCUS"
)

// Client is an open page context.
type Client struct {
	ID           domain.ClientID
	URL          string
	Controlled   bool
	RegisteredAt time.Time
}

// Clients tracks open page contexts and delivers messages to them.
type Clients struct {
	notifier notifier.Notifier
	clk      clock.Clock

	mu      sync.RWMutex
	order   []domain.ClientID
	byID    map[domain.ClientID]*Client
	claimed bool
}

func NewClients(n notifier.Notifier, clk clock.Clock) *Clients {
	return &Clients{
		notifier: n,
		clk:      clk,
		byID:     map[domain.ClientID]*Client{},
	}
}

// Register adds a page context or updates the URL of a known one. Contexts opened after the
// worker has claimed clients are controlled immediately.
func (c *Clients) Register(id domain.ClientID, pageURL string) (Client, error) {
	if strings.TrimSpace(string(id)) == "" {
		return Client{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid client", Details: map[string]any{"clientId": "must be non-empty"}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byID[id]; ok {
		existing.URL = pageURL
		return *existing, nil
	}
	cl := &Client{ID: id, URL: pageURL, Controlled: c.claimed, RegisteredAt: c.clk.Now().UTC()}
	c.byID[id] = cl
	c.order = append(c.order, id)
	return *cl, nil
}

// Unregister removes a page context. It reports whether the context was known.
func (c *Clients) Unregister(id domain.ClientID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *Clients) Get(id domain.ClientID) (Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.byID[id]
	if !ok {
		return Client{}, false
	}
	return *cl, true
}

// List returns page contexts in registration order. When controlledOnly is set, contexts the
// worker does not control are left out.
func (c *Clients) List(controlledOnly bool) []Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Client, 0, len(c.order))
	for _, id := range c.order {
		cl := c.byID[id]
		if controlledOnly && !cl.Controlled {
			continue
		}
		out = append(out, *cl)
	}
	return out
}

// Claim takes control of every registered page context and tells each one. It returns the number
// of contexts claimed.
func (c *Clients) Claim(ctx context.Context, version string) int {
	c.mu.Lock()
	c.claimed = true
	ids := make([]domain.ClientID, 0, len(c.order))
	for _, id := range c.order {
		c.byID[id].Controlled = true
		ids = append(ids, id)
	}
	c.mu.Unlock()

	msg := notifier.Message{Type: EventControllerChanged, Data: map[string]any{"version": version}}
	for _, id := range ids {
		c.send(ctx, id, msg)
	}
	return len(ids)
}

// Broadcast delivers msg to every controlled page context and returns the number of successful
// deliveries. Delivery failures are logged.
func (c *Clients) Broadcast(ctx context.Context, msgType string, data any) int {
	msg := notifier.Message{Type: msgType, Data: data}
	n := 0
	for _, cl := range c.List(true) {
		if c.send(ctx, cl.ID, msg) {
			n++
		}
	}
	return n
}

// Send delivers one message to one page context.
func (c *Clients) Send(ctx context.Context, id domain.ClientID, msgType string, data any) error {
	return c.notifier.Notify(ctx, id, notifier.Message{Type: msgType, Data: data})
}

func (c *Clients) send(ctx context.Context, id domain.ClientID, msg notifier.Message) bool {
	if err := c.notifier.Notify(ctx, id, msg); err != nil {
		log.Printf("offline: notify %s %s: %v", id, msg.Type, err)
		return false
	}
	return true
}
