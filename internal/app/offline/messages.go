package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

type MessageType string

const (
	MessageSkipWaiting MessageType = "SKIP_WAITING"
	MessageGetVersion  MessageType = "GET_VERSION"
	MessageCacheURLs   MessageType = "CACHE_URLS"
	MessageClearCache  MessageType = "CLEAR_CACHE"
)

// ClearAll is the CLEAR_CACHE target that drops every partition.
const ClearAll = "all"

// Message is one decoded control-channel message: a command, or the version query.
type Message interface {
	Type() MessageType
}

type SkipWaiting struct{}

type CacheURLs struct {
	URLs []string `json:"urls"`
}

type ClearCache struct {
	CacheType string `json:"cacheType"`
}

// VersionQuery asks for the worker version. The reply echoes CorrelationID.
type VersionQuery struct {
	CorrelationID string `json:"correlationId"`
}

type VersionReply struct {
	Version       string `json:"version"`
	CorrelationID string `json:"correlationId"`
}

func (SkipWaiting) Type() MessageType { return MessageSkipWaiting }

func (CacheURLs) Type() MessageType { return MessageCacheURLs }

func (ClearCache) Type() MessageType { return MessageClearCache }

func (VersionQuery) Type() MessageType { return MessageGetVersion }

// Envelope is the wire form of a control-channel message.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeMessage parses a {type, data} envelope into its typed message.
func DecodeMessage(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Status: 400, Code: "INVALID_MESSAGE", Message: "message must be a JSON object with a type"}
	}
	decode := func(dst any) error {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return &Error{Status: 400, Code: "INVALID_MESSAGE", Message: "invalid message data", Details: map[string]any{"type": string(env.Type)}}
		}
		return nil
	}

	switch env.Type {
	case MessageSkipWaiting:
		return SkipWaiting{}, nil
	case MessageGetVersion:
		var q VersionQuery
		if err := decode(&q); err != nil {
			return nil, err
		}
		return q, nil
	case MessageCacheURLs:
		var c CacheURLs
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case MessageClearCache:
		var c ClearCache
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &Error{Status: 400, Code: "UNKNOWN_MESSAGE_TYPE", Message: "unknown message type", Details: map[string]any{"type": string(env.Type)}}
	}
}

// Handle applies a control message. Only VersionQuery produces a reply. Every command is
// idempotent.
func (w *Worker) Handle(ctx context.Context, m Message) (*VersionReply, error) {
	log.Printf("offline: message received: %s", messageType(m))
	switch m := m.(type) {
	case VersionQuery:
		reply := w.QueryVersion(m)
		return &reply, nil
	case SkipWaiting:
		return nil, w.SkipWaiting(ctx)
	case CacheURLs:
		return nil, w.CacheURLs(ctx, m.URLs)
	case ClearCache:
		return nil, w.ClearCache(ctx, m.CacheType)
	default:
		return nil, &Error{Status: 400, Code: "UNKNOWN_MESSAGE_TYPE", Message: "unknown message type", Details: map[string]any{"type": messageType(m)}}
	}
}

func messageType(m Message) string {
	if m == nil {
		return ""
	}
	return string(m.Type())
}

// QueryVersion answers a version query. A query without a correlation ID gets a fresh one so the
// reply is always addressable.
func (w *Worker) QueryVersion(q VersionQuery) VersionReply {
	id := q.CorrelationID
	if id == "" {
		id = w.newID()
	}
	return VersionReply{Version: w.policy.Version, CorrelationID: id}
}

// SkipWaiting activates an installed worker immediately. It is a no-op in any other state.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	if w.State() != StateInstalled {
		return nil
	}
	return w.Activate(ctx)
}

// CacheURLs fetches urls into the dynamic partition. It is all-or-nothing.
func (w *Worker) CacheURLs(ctx context.Context, urls []string) error {
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid urls", Details: map[string]any{"urls": "must not contain empty entries"}}
		}
	}
	if len(urls) == 0 {
		return nil
	}
	if err := w.addAll(ctx, w.policy.DynamicCacheName(), urls); err != nil {
		log.Printf("offline: CACHE_URLS failed: %v", err)
		return &Error{Status: 502, Code: "CACHE_URLS_FAILED", Message: "failed to cache urls", Details: map[string]any{"cause": err.Error()}}
	}
	return nil
}

// ClearCache deletes one partition by name, or every partition for "all". Clearing something that
// does not exist succeeds, and so does a message with no target.
func (w *Worker) ClearCache(ctx context.Context, cacheType string) error {
	if strings.TrimSpace(cacheType) == "" {
		return nil
	}
	if cacheType != ClearAll {
		if _, err := w.cache.DeletePartition(ctx, cacheType); err != nil {
			return fmt.Errorf("clear cache %s: %w", cacheType, err)
		}
		return nil
	}
	names, err := w.cache.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}
	for _, name := range names {
		if _, err := w.cache.DeletePartition(ctx, name); err != nil {
			return fmt.Errorf("clear cache %s: %w", name, err)
		}
	}
	return nil
}
