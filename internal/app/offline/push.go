package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

const (
	DefaultNotificationTitle = "Palm Beach Pass"
	DefaultNotificationBody  = "New update available!"
	DefaultNotificationIcon  = "/icons/icon-192x192.png"
	DefaultNotificationBadge = "/icons/badge-72x72.png"
	DefaultNotificationURL   = "/"

	notificationTag = "palm-beach-pass"

	ActionView    = "view"
	ActionDismiss = "dismiss"
)

type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

type NotificationData struct {
	// Timestamp is in milliseconds since the epoch.
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url"`
}

// Notification is a displayed push notification. A new notification replaces any shown one with the same tag.
type Notification struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon"`
	Badge   string               `json:"badge"`
	Tag     string               `json:"tag"`
	Vibrate []int                `json:"vibrate"`
	Actions []NotificationAction `json:"actions"`
	Data    NotificationData     `json:"data"`
}

type ClickOutcome string

const (
	ClickNone  ClickOutcome = "none"
	ClickFocus ClickOutcome = "focus"
	ClickOpen  ClickOutcome = "open"
)

// ClickResult tells the caller what the click did: nothing, focused an existing page context, or
// asks for a new one at URL.
type ClickResult struct {
	Outcome  ClickOutcome    `json:"outcome"`
	ClientID domain.ClientID `json:"clientId,omitempty"`
	URL      string          `json:"url,omitempty"`
}

// Push shows a notification built from payload. Fields of a JSON object payload override the
// defaults; a payload that is not JSON becomes the body text.
func (w *Worker) Push(_ context.Context, payload []byte) Notification {
	fields := map[string]string{
		"title": DefaultNotificationTitle,
		"body":  DefaultNotificationBody,
		"icon":  DefaultNotificationIcon,
		"badge": DefaultNotificationBadge,
		"url":   "",
	}
	if len(payload) > 0 {
		var raw any
		if err := json.Unmarshal(payload, &raw); err != nil {
			fields["body"] = string(payload)
		} else if obj, ok := raw.(map[string]any); ok {
			for k := range fields {
				v, present := obj[k]
				if !present {
					continue
				}
				switch v := v.(type) {
				case string:
					fields[k] = v
				case nil:
					fields[k] = ""
				default:
					fields[k] = fmt.Sprint(v)
				}
			}
		}
	}

	target := fields["url"]
	if target == "" {
		target = DefaultNotificationURL
	}
	n := Notification{
		ID:      w.newID(),
		Title:   fields["title"],
		Body:    fields["body"],
		Icon:    fields["icon"],
		Badge:   fields["badge"],
		Tag:     notificationTag,
		Vibrate: []int{100, 50, 100},
		Actions: []NotificationAction{
			{Action: ActionView, Title: "View", Icon: "/icons/action-view.png"},
			{Action: ActionDismiss, Title: "Dismiss"},
		},
		Data: NotificationData{
			Timestamp: w.clk.Now().UnixMilli(),
			URL:       target,
		},
	}

	w.mu.Lock()
	w.notifications[n.Tag] = n
	w.mu.Unlock()
	return n
}

// Notifications lists the notifications currently shown.
func (w *Worker) Notifications() []Notification {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Notification, 0, len(w.notifications))
	for _, n := range w.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Data.Timestamp < out[j].Data.Timestamp })
	return out
}

// ClickNotification closes the notification and, unless action is dismiss, focuses the first page
// context whose URL contains the notification URL or asks for a new one.
func (w *Worker) ClickNotification(ctx context.Context, id, action string) (ClickResult, error) {
	w.mu.Lock()
	var (
		n     Notification
		found bool
	)
	for tag, cur := range w.notifications {
		if cur.ID == id {
			n, found = cur, true
			delete(w.notifications, tag)
			break
		}
	}
	w.mu.Unlock()
	if !found {
		return ClickResult{}, &Error{Status: 404, Code: "NOTIFICATION_NOT_FOUND", Message: "notification not found"}
	}

	if action == ActionDismiss {
		return ClickResult{Outcome: ClickNone}, nil
	}

	target := n.Data.URL
	if target == "" {
		target = DefaultNotificationURL
	}
	for _, c := range w.clients.List(false) {
		if strings.Contains(c.URL, target) {
			if err := w.clients.Send(ctx, c.ID, EventFocus, map[string]any{"url": target}); err != nil {
				return ClickResult{}, err
			}
			return ClickResult{Outcome: ClickFocus, ClientID: c.ID, URL: c.URL}, nil
		}
	}
	return ClickResult{Outcome: ClickOpen, URL: target}, nil
}
