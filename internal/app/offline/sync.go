package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
)

// Sync tags.
const (
	TagSyncCart      = "sync-cart"
	TagSyncPasses    = "sync-passes"
	TagSyncPurchases = "sync-purchases"
	TagUpdatePasses  = "update-passes"
)

// Keys of the blobs page contexts leave for the sync tasks.
const (
	StorageCart             = "cart"
	StorageUserPasses       = "userPasses"
	StoragePendingPurchases = "pendingPurchases"
)

const (
	pathCartSync     = "/api/cart/sync"
	pathPassesSync   = "/api/passes/sync"
	pathPurchases    = "/api/purchases"
	pathCheckUpdates = "/api/passes/check-updates"
	pathHealth       = "/healthz"
)

// IsSyncTag reports whether tag names a one-off sync task.
func IsSyncTag(tag string) bool {
	switch tag {
	case TagSyncCart, TagSyncPasses, TagSyncPurchases:
		return true
	}
	return false
}

func (w *Worker) storageKey(key string) (cachestore.Key, error) {
	u, err := w.policy.Resolve("/storage/" + key)
	if err != nil {
		return cachestore.Key{}, err
	}
	return cachestore.Key{Method: http.MethodGet, URL: u.String()}, nil
}

// StoreData saves a JSON blob under /storage/<key> in the dynamic partition.
func (w *Worker) StoreData(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid key", Details: map[string]any{"key": "must be non-empty"}}
	}
	if !json.Valid(value) {
		return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid value", Details: map[string]any{"value": "must be JSON"}}
	}
	k, err := w.storageKey(key)
	if err != nil {
		return err
	}
	return w.cache.Put(ctx, w.policy.DynamicCacheName(), cachestore.Entry{
		Key:      k,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     append([]byte(nil), value...),
		StoredAt: w.clk.Now().UTC(),
	})
}

// LoadData returns the blob stored under key, or nil when there is none.
func (w *Worker) LoadData(ctx context.Context, key string) (json.RawMessage, error) {
	k, err := w.storageKey(key)
	if err != nil {
		return nil, err
	}
	e, err := w.cache.Match(ctx, w.policy.DynamicCacheName(), k)
	if err != nil {
		if errors.Is(err, cachestore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !json.Valid(e.Body) {
		return nil, fmt.Errorf("stored %s is not JSON", key)
	}
	return json.RawMessage(e.Body), nil
}

// Sync runs the task for tag. Task failures are logged and swallowed; only an unknown tag is an error.
func (w *Worker) Sync(ctx context.Context, tag string) error {
	log.Printf("offline: background sync: %s", tag)
	var err error
	switch tag {
	case TagSyncCart:
		err = w.syncBlob(ctx, StorageCart, pathCartSync, EventCartSynced)
	case TagSyncPasses:
		err = w.syncBlob(ctx, StorageUserPasses, pathPassesSync, EventPassesSynced)
	case TagSyncPurchases:
		err = w.syncPurchases(ctx)
	case TagUpdatePasses:
		err = w.checkPassUpdates(ctx)
	default:
		return &Error{Status: 400, Code: "UNKNOWN_SYNC_TAG", Message: "unknown sync tag", Details: map[string]any{"tag": tag}}
	}
	if err != nil {
		log.Printf("offline: %s failed: %v", tag, err)
		w.metrics.SyncRun(tag, "error")
		return nil
	}
	w.metrics.SyncRun(tag, "ok")
	return nil
}

func (w *Worker) syncBlob(ctx context.Context, key, path, event string) error {
	blob, err := w.LoadData(ctx, key)
	if err != nil {
		log.Printf("offline: load %s: %v", key, err)
		return nil
	}
	if isEmptyBlob(blob) {
		return nil
	}
	status, err := w.post(ctx, path, blob, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return nil
	}
	w.clients.Broadcast(ctx, event, map[string]any{"success": true})
	return nil
}

func isEmptyBlob(b json.RawMessage) bool {
	switch string(bytes.TrimSpace(b)) {
	case "", "null", "false", `""`, "0":
		return true
	}
	return false
}

func (w *Worker) syncPurchases(ctx context.Context) error {
	pending, err := w.pendingPurchases(ctx)
	if err != nil {
		return err
	}
	synced := make([]bool, len(pending))
	for i, p := range pending {
		id := purchaseID(p)
		var header http.Header
		if id != "" {
			header = http.Header{"Idempotency-Key": []string{id}}
		}
		status, err := w.post(ctx, pathPurchases, p, header)
		if err != nil {
			log.Printf("offline: failed to sync purchase %q: %v", id, err)
			continue
		}
		if status < 200 || status > 299 {
			continue
		}
		if id == "" {
			log.Printf("offline: purchase %d synced without an id; left pending", i)
			continue
		}
		synced[i] = true
		if err := w.storePending(ctx, pending, synced); err != nil {
			log.Printf("offline: remove pending purchase %q: %v", id, err)
			synced[i] = false
			continue
		}
		log.Printf("offline: purchase synced: %q", id)
	}
	w.clients.Broadcast(ctx, EventPurchasesSynced, map[string]any{"success": true})
	return nil
}

// pendingPurchases reads the queued purchases. A missing or unreadable blob is an empty queue.
func (w *Worker) pendingPurchases(ctx context.Context) ([]json.RawMessage, error) {
	blob, err := w.LoadData(ctx, StoragePendingPurchases)
	if err != nil {
		log.Printf("offline: load %s: %v", StoragePendingPurchases, err)
		return nil, nil
	}
	if isEmptyBlob(blob) {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(blob, &list); err != nil {
		return nil, fmt.Errorf("%s is not a list: %w", StoragePendingPurchases, err)
	}
	return list, nil
}

// storePending persists the entries of list not yet marked synced. Entries are removed by position,
// so two purchases with ids that print alike ({"id":1} and {"id":"1"}) stay distinct.
func (w *Worker) storePending(ctx context.Context, list []json.RawMessage, synced []bool) error {
	kept := make([]json.RawMessage, 0, len(list))
	for i, p := range list {
		if !synced[i] {
			kept = append(kept, p)
		}
	}
	b, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return w.StoreData(ctx, StoragePendingPurchases, b)
}

// purchaseID extracts the id of a queued purchase. String ids are unquoted; other JSON values keep
// their literal form.
func purchaseID(p json.RawMessage) string {
	var v struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(p, &v); err != nil || len(v.ID) == 0 || string(v.ID) == "null" {
		return ""
	}
	if s, err := strconv.Unquote(string(v.ID)); err == nil {
		return s
	}
	return string(v.ID)
}

func (w *Worker) checkPassUpdates(ctx context.Context) error {
	u, err := w.policy.Resolve(pathCheckUpdates)
	if err != nil {
		return err
	}
	header := http.Header{"Accept": []string{"application/json"}}
	if w.identity != "" {
		header.Set("X-Client-ID", string(w.identity))
	}
	resp, err := w.fetch(ctx, u, header)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return nil
	}
	var updates map[string]any
	if err := json.Unmarshal(resp.Body, &updates); err != nil {
		return fmt.Errorf("decode updates: %w", err)
	}
	if has, _ := updates["hasUpdates"].(bool); has {
		w.clients.Broadcast(ctx, EventPassUpdatesAvailable, updates)
	}
	return nil
}

func (w *Worker) post(ctx context.Context, path string, body []byte, header http.Header) (int, error) {
	u, err := w.policy.Resolve(path)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	if w.identity != "" {
		req.Header.Set("X-Client-ID", string(w.identity))
	}
	res, err := w.net.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode, nil
}

// Online probes the network. Any response counts as connectivity.
func (w *Worker) Online(ctx context.Context) bool {
	u, err := w.policy.Resolve(pathHealth)
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}
	res, err := w.net.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
	return true
}

// Scheduler queues sync tags and runs them once the network is reachable. It also runs the periodic
// pass update check.
type Scheduler struct {
	worker   *Worker
	interval time.Duration
	periodic time.Duration

	mu      sync.Mutex
	pending []string
	wake    chan struct{}
}

const (
	defaultSyncInterval     = 15 * time.Second
	defaultPeriodicInterval = time.Hour
)

func NewScheduler(w *Worker, interval, periodic time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	if periodic <= 0 {
		periodic = defaultPeriodicInterval
	}
	return &Scheduler{
		worker:   w,
		interval: interval,
		periodic: periodic,
		wake:     make(chan struct{}, 1),
	}
}

// Register queues tag. Registering a tag that is already queued is a no-op.
func (s *Scheduler) Register(tag string) error {
	if !IsSyncTag(tag) {
		return &Error{Status: 400, Code: "UNKNOWN_SYNC_TAG", Message: "unknown sync tag", Details: map[string]any{"tag": tag}}
	}
	s.mu.Lock()
	queued := false
	for _, t := range s.pending {
		if t == tag {
			queued = true
			break
		}
	}
	if !queued {
		s.pending = append(s.pending, tag)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the queued tags in registration order.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pending...)
}

// Flush runs every queued tag when the network is reachable and returns how many ran. Tags stay
// queued while offline.
func (s *Scheduler) Flush(ctx context.Context) int {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.mu.Unlock()

	if !s.worker.Online(ctx) {
		return 0
	}

	s.mu.Lock()
	tags := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, tag := range tags {
		_ = s.worker.Sync(ctx, tag)
	}
	return len(tags)
}

// Run drives the scheduler until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	periodic := time.NewTicker(s.periodic)
	defer periodic.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
			s.Flush(ctx)
		case <-tick.C:
			s.Flush(ctx)
		case <-periodic.C:
			if s.worker.Online(ctx) {
				_ = s.worker.Sync(ctx, TagUpdatePasses)
			}
		}
	}
}
