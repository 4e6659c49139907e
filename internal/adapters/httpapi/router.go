package httpapi

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// WorkerRouterOptions wires the page-facing process.
type WorkerRouterOptions struct {
	Worker     WorkerHandlers
	Controller ControllerHandlers
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// OriginRouterOptions wires the origin process.
type OriginRouterOptions struct {
	Origin  OriginHandlers
	Metrics http.Handler
	// StaticDir, when set, is served for every path without a route.
	StaticDir string
}

func baseRouter(metrics http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

// NewWorkerRouter constructs the page-facing router: the worker control surface under /_worker,
// page controllers under /_app, and every other request through the worker itself.
func NewWorkerRouter(opts WorkerRouterOptions) http.Handler {
	r := baseRouter(opts.Metrics)

	r.Route("/_worker", opts.Worker.mount)
	r.Route("/_app", func(r chi.Router) {
		r.Use(NewClientMiddleware(""))
		opts.Controller.mount(r)
	})

	r.NotFound(opts.Worker.Worker.ServeHTTP)
	r.MethodNotAllowed(opts.Worker.Worker.ServeHTTP)
	return r
}

// NewOriginRouter constructs the origin API router.
func NewOriginRouter(opts OriginRouterOptions) http.Handler {
	r := baseRouter(opts.Metrics)
	opts.Origin.mount(r)
	if opts.StaticDir != "" {
		r.NotFound(staticFiles(opts.StaticDir))
	}
	return r
}

// staticFiles serves files from dir. Unlike http.FileServer it answers /index.html directly instead
// of redirecting, so the worker can precache it.
func staticFiles(dir string) http.HandlerFunc {
	root := http.Dir(dir)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
			return
		}
		name := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}
		f, err := root.Open(name)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "not found", nil)
			return
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil || fi.IsDir() {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "not found", nil)
			return
		}
		http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
	}
}
