package offline_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	memcachestore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/cachestore"
	memclock "github.com/palm-beach-pass/pass-api/internal/adapters/memory/clock"
	memnotifier "github.com/palm-beach-pass/pass-api/internal/adapters/memory/notifier"
	"github.com/palm-beach-pass/pass-api/internal/app/offline"
	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/notifier"
)

const origin = "https://pbp.test"

var errOffline = errors.New("network unreachable")

type handlerFunc func(r *http.Request, body []byte) (int, http.Header, string)

// fakeNet routes requests by "METHOD path" and records every call.
type fakeNet struct {
	mu      sync.Mutex
	offline bool
	routes  map[string]handlerFunc
	calls   []recordedCall
	gate    chan struct{}
}

type recordedCall struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func newFakeNet() *fakeNet {
	return &fakeNet{routes: map[string]handlerFunc{}}
}

func (f *fakeNet) handle(route string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = h
}

func (f *fakeNet) serve(route string, status int, contentType, body string) {
	f.handle(route, func(*http.Request, []byte) (int, http.Header, string) {
		return status, http.Header{"Content-Type": []string{contentType}}, body
	})
}

func (f *fakeNet) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

// holdGETs makes GET requests wait until the returned func is called.
func (f *fakeNet) holdGETs() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	gate := f.gate
	return func() { close(gate) }
}

func (f *fakeNet) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone(), Body: body})
	offline := f.offline
	gate := f.gate
	h, ok := f.routes[req.Method+" "+req.URL.Path]
	f.mu.Unlock()

	if gate != nil && req.Method == http.MethodGet {
		select {
		case <-gate:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	if offline {
		return nil, errOffline
	}
	status, header, text := http.StatusNotFound, http.Header{"Content-Type": []string{"text/plain"}}, "not found"
	if ok {
		status, header, text = h(req, body)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(text)),
		Request:    req,
	}, nil
}

func (f *fakeNet) callsTo(method, path string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Method == method && strings.HasSuffix(strings.SplitN(c.URL, "?", 2)[0], path) {
			out = append(out, c)
		}
	}
	return out
}

type harness struct {
	worker *offline.Worker
	cache  *memcachestore.Store
	net    *fakeNet
	hub    *memnotifier.Hub
	clk    *memclock.ManualClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	policy, err := offline.NewPolicy("1.0.0", origin, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	h := &harness{
		cache: memcachestore.NewStore(),
		net:   newFakeNet(),
		hub:   memnotifier.NewHub(),
		clk:   memclock.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	clients := offline.NewClients(h.hub, h.clk)
	h.worker = offline.NewWorker(policy, h.cache, h.net, clients, h.clk).WithIdentity("worker-test")
	return h
}

func (h *harness) seed(t *testing.T, partition, path, contentType, body string) {
	t.Helper()
	err := h.cache.Put(context.Background(), partition, cachestore.Entry{
		Key:      cachestore.Key{Method: http.MethodGet, URL: origin + path},
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{contentType}},
		Body:     []byte(body),
		StoredAt: h.clk.Now(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}

func (h *harness) cached(t *testing.T, partition, path string) (cachestore.Entry, bool) {
	t.Helper()
	e, err := h.cache.Match(context.Background(), partition, cachestore.Key{Method: http.MethodGet, URL: origin + path})
	if errors.Is(err, cachestore.ErrNotFound) {
		return cachestore.Entry{}, false
	}
	if err != nil {
		t.Fatalf("Match %s: %v", path, err)
	}
	return e, true
}

// connect registers a page context and returns its mailbox.
func (h *harness) connect(t *testing.T, id domain.ClientID, pageURL string) <-chan notifier.Message {
	t.Helper()
	if _, err := h.worker.Clients().Register(id, pageURL); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return h.hub.Messages(id)
}

func get(path, accept string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if !strings.HasPrefix(path, "http") {
		req, _ = http.NewRequest(http.MethodGet, origin+path, nil)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func received(ch <-chan notifier.Message) []notifier.Message {
	var out []notifier.Message
	for {
		select {
		case m := <-ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(msgs []notifier.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}
