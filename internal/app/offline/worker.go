package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/platform/metrics"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/network"
)

// State is the worker lifecycle phase.
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
)

// Worker is the offline caching layer that sits between page contexts and the network.
type Worker struct {
	policy  Policy
	cache   cachestore.Store
	net     network.Doer
	clients *Clients
	clk     clock.Clock
	metrics *metrics.Worker

	identity domain.ClientID
	newID    func() string

	mu            sync.Mutex
	state         State
	notifications map[string]Notification

	bg sync.WaitGroup
}

func NewWorker(policy Policy, cache cachestore.Store, net network.Doer, clients *Clients, clk clock.Clock) *Worker {
	return &Worker{
		policy:        policy,
		cache:         cache,
		net:           net,
		clients:       clients,
		clk:           clk,
		newID:         uuid.NewString,
		state:         StateParsed,
		notifications: map[string]Notification{},
	}
}

// WithMetrics attaches counters. A nil m disables them.
func (w *Worker) WithMetrics(m *metrics.Worker) *Worker {
	w.metrics = m
	return w
}

// WithIdentity sets the X-Client-ID sent with sync requests.
func (w *Worker) WithIdentity(id domain.ClientID) *Worker {
	w.identity = id
	return w
}

// SetNewIDForTest overrides notification and correlation ID generation for deterministic tests.
// It should not be used in production code.
func (w *Worker) SetNewIDForTest(fn func() string) {
	if fn != nil {
		w.newID = fn
	}
}

func (w *Worker) Policy() Policy { return w.policy }

func (w *Worker) Clients() *Clients { return w.clients }

func (w *Worker) Version() string { return w.policy.Version }

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Drain blocks until background revalidations have finished.
func (w *Worker) Drain() {
	w.bg.Wait()
}

// Intercepts reports whether req is handled by the worker rather than passed through.
func (w *Worker) Intercepts(req *http.Request) bool {
	return w.policy.Intercepts(req)
}

// Respond resolves an intercepted GET request from the cache, the network, or an offline fallback.
// It never fails: every outcome is a response.
func (w *Worker) Respond(ctx context.Context, req *http.Request) *Response {
	target := w.policy.RequestURL(req)
	key := cachestore.Key{Method: http.MethodGet, URL: target.String()}

	entry, partition, err := w.cache.MatchAny(ctx, key)
	switch {
	case err == nil:
		w.metrics.CacheHit()
		if AcceptsHTML(req) {
			w.revalidate(ctx, key, target, req.Header, partition)
		}
		return fromEntry(entry)
	case !errors.Is(err, cachestore.ErrNotFound):
		log.Printf("offline: cache lookup %s: %v", key.URL, err)
	}
	w.metrics.CacheMiss()

	resp, err := w.fetch(ctx, target, req.Header)
	if err != nil {
		return w.fallback(ctx, req)
	}
	if resp.Status != http.StatusOK {
		return resp
	}
	if w.policy.Cacheable(req) {
		w.store(ctx, w.policy.PartitionFor(key.URL), key, resp)
	}
	return resp
}

func (w *Worker) revalidate(ctx context.Context, key cachestore.Key, target *url.URL, header http.Header, partition string) {
	bg := context.WithoutCancel(ctx)
	header = header.Clone()
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		resp, err := w.fetch(bg, target, header)
		if err != nil {
			w.metrics.Revalidated("error")
			return
		}
		if !resp.OK() {
			w.metrics.Revalidated("skipped")
			return
		}
		if err := w.cache.Put(bg, partition, w.entry(key, resp)); err != nil {
			log.Printf("offline: revalidate %s: %v", key.URL, err)
			w.metrics.Revalidated("error")
			return
		}
		w.metrics.Revalidated("updated")
	}()
}

func (w *Worker) store(ctx context.Context, partition string, key cachestore.Key, resp *Response) {
	if err := w.cache.Put(ctx, partition, w.entry(key, resp)); err != nil {
		log.Printf("offline: store %s in %s: %v", key.URL, partition, err)
		return
	}
	w.metrics.Stored(partition)
}

func (w *Worker) entry(key cachestore.Key, resp *Response) cachestore.Entry {
	return cachestore.Entry{
		Key:      key,
		Status:   resp.Status,
		Header:   resp.Header.Clone(),
		Body:     append([]byte(nil), resp.Body...),
		StoredAt: w.clk.Now().UTC(),
	}
}

func (w *Worker) fallback(ctx context.Context, req *http.Request) *Response {
	switch {
	case AcceptsHTML(req):
		if shell, err := w.policy.Resolve("/index.html"); err == nil {
			e, _, err := w.cache.MatchAny(ctx, cachestore.Key{Method: http.MethodGet, URL: shell.String()})
			if err == nil {
				w.metrics.Fallback("shell")
				return fromEntry(e)
			}
		}
		w.metrics.Fallback("page")
		return OfflinePage()
	case AcceptsImage(req):
		w.metrics.Fallback("image")
		return OfflineImage()
	default:
		w.metrics.Fallback("unavailable")
		return Unavailable()
	}
}

// fetch issues a GET to the network and buffers the whole response.
func (w *Worker) fetch(ctx context.Context, target *url.URL, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if header != nil {
		req.Header = header.Clone()
		stripHopHeaders(req.Header)
	}
	res, err := w.net.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	h := res.Header.Clone()
	stripHopHeaders(h)
	h.Del("Content-Length")
	return &Response{Status: res.StatusCode, Header: h, Body: body}, nil
}

// ServeHTTP serves page-context requests: intercepted GETs go through Respond, everything else is
// forwarded to the network unchanged.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.Intercepts(r) {
		w.Respond(r.Context(), r).WriteTo(rw)
		return
	}
	w.passThrough(rw, r)
}

func (w *Worker) passThrough(rw http.ResponseWriter, r *http.Request) {
	target := w.policy.RequestURL(r)
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}
	out.Header = r.Header.Clone()
	stripHopHeaders(out.Header)
	out.ContentLength = r.ContentLength

	res, err := w.net.Do(out)
	if err != nil {
		log.Printf("offline: pass-through %s %s: %v", r.Method, target, err)
		http.Error(rw, "bad gateway", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	h := rw.Header()
	for k, vs := range res.Header {
		h[k] = append([]string(nil), vs...)
	}
	stripHopHeaders(h)
	rw.WriteHeader(res.StatusCode)
	_, _ = io.Copy(rw, res.Body)
}

// RoundTrip lets in-process callers route requests through the worker like a page context would.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if !w.Intercepts(req) {
		return w.net.Do(req)
	}
	return w.Respond(req.Context(), req).HTTP(req), nil
}

// Install precaches the core assets into the core partition. It is all-or-nothing: when any asset
// fails nothing is stored. The worker ends up installed either way.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)
	defer w.setState(StateInstalled)

	core := w.policy.CoreCacheName()
	if err := w.cache.Open(ctx, core); err != nil {
		log.Printf("offline: install: open %s: %v", core, err)
		return err
	}
	if err := w.addAll(ctx, core, w.policy.CoreAssets); err != nil {
		log.Printf("offline: install: cache installation failed: %v", err)
		return err
	}
	log.Printf("offline: install: %d core assets cached in %s", len(w.policy.CoreAssets), core)
	return nil
}

// addAll fetches every URL and stores the responses only when all of them succeed.
func (w *Worker) addAll(ctx context.Context, partition string, refs []string) error {
	type fetched struct {
		key  cachestore.Key
		resp *Response
	}
	out := make([]fetched, 0, len(refs))
	for _, ref := range refs {
		u, err := w.policy.Resolve(ref)
		if err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
		resp, err := w.fetch(ctx, u, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", u, err)
		}
		if !resp.OK() {
			return fmt.Errorf("%s: status %d", u, resp.Status)
		}
		out = append(out, fetched{key: cachestore.Key{Method: http.MethodGet, URL: u.String()}, resp: resp})
	}
	for _, f := range out {
		if err := w.cache.Put(ctx, partition, w.entry(f.key, f.resp)); err != nil {
			return err
		}
		w.metrics.Stored(partition)
	}
	return nil
}

// Activate deletes every partition that does not belong to this version, then takes control of
// all registered page contexts.
func (w *Worker) Activate(ctx context.Context) error {
	w.setState(StateActivating)

	names, err := w.cache.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}
	core, dynamic := w.policy.CoreCacheName(), w.policy.DynamicCacheName()
	for _, name := range names {
		if name == core || name == dynamic {
			continue
		}
		if _, err := w.cache.DeletePartition(ctx, name); err != nil {
			return fmt.Errorf("delete partition %s: %w", name, err)
		}
		log.Printf("offline: activate: deleted old cache %s", name)
	}

	w.setState(StateActivated)
	n := w.clients.Claim(ctx, w.policy.Version)
	log.Printf("offline: activated %s, claimed %d clients", w.policy.Version, n)
	return nil
}

// Start installs and activates the worker. Install failures are logged and do not prevent activation.
func (w *Worker) Start(ctx context.Context) error {
	_ = w.Install(ctx)
	return w.Activate(ctx)
}
