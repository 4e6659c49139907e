package notifier

import (
	"context"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// Message is the structured {type, data} message exchanged between the worker and page contexts.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Notifier delivers a message to one page context.
type Notifier interface {
	Notify(ctx context.Context, client domain.ClientID, msg Message) error
}

type fanout []Notifier

// Fanout delivers every message to each notifier in turn. All notifiers are tried; the first
// error is returned.
func Fanout(ns ...Notifier) Notifier {
	return fanout(ns)
}

func (f fanout) Notify(ctx context.Context, client domain.ClientID, msg Message) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, client, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
