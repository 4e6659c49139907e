package notifier

import (
	"context"
	"errors"
	"sync"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/notifier"
)

// ErrMailboxFull is returned when a page context is not draining its messages.
var ErrMailboxFull = errors.New("client mailbox full")

const defaultMailboxSize = 32

// Hub is an in-memory implementation of notifier.Notifier.
// Each page context gets a buffered mailbox that its event stream drains.
type Hub struct {
	mu        sync.Mutex
	size      int
	mailboxes map[domain.ClientID]chan notifier.Message
}

func NewHub() *Hub {
	return &Hub{
		size:      defaultMailboxSize,
		mailboxes: make(map[domain.ClientID]chan notifier.Message),
	}
}

func (h *Hub) mailbox(client domain.ClientID) chan notifier.Message {
	mb, ok := h.mailboxes[client]
	if !ok {
		mb = make(chan notifier.Message, h.size)
		h.mailboxes[client] = mb
	}
	return mb
}

func (h *Hub) Notify(ctx context.Context, client domain.ClientID, msg notifier.Message) error {
	_ = ctx
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case h.mailbox(client) <- msg:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Messages returns the receive side of a client's mailbox. The channel is closed by Drop.
func (h *Hub) Messages(client domain.ClientID) <-chan notifier.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mailbox(client)
}

// Drop closes and forgets a client's mailbox; pending messages are discarded.
func (h *Hub) Drop(client domain.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if mb, ok := h.mailboxes[client]; ok {
		close(mb)
		delete(h.mailboxes, client)
	}
}
