package offline

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const cachePrefix = "palm-beach-pass"

// DefaultCoreAssets is the app shell cached at install time.
var DefaultCoreAssets = []string{
	"/",
	"/index.html",
	"/checkout.html",
	"/customer-account.html",
	"/styles.css",
	"/app.js",
	"/manifest.json",
}

// DefaultAllowedHosts are the cross-origin hosts (map tiles, fonts, script CDNs) the worker intercepts.
var DefaultAllowedHosts = []string{
	"maps.googleapis.com",
	"fonts.googleapis.com",
	"fonts.gstatic.com",
	"cdnjs.cloudflare.com",
}

// Policy is the static part of the interception rules: which requests are eligible,
// which responses are cacheable, and where they are stored.
type Policy struct {
	Version      string
	Origin       *url.URL
	CoreAssets   []string
	AllowedHosts []string
}

// NewPolicy builds a policy for the given version tag and application origin using the
// default core asset list and host allow-list. A nil allowedHosts keeps the defaults.
func NewPolicy(version, origin string, allowedHosts []string) (Policy, error) {
	if strings.TrimSpace(version) == "" {
		return Policy{}, fmt.Errorf("version must be non-empty")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Policy{}, fmt.Errorf("origin must be absolute, got %q", origin)
	}
	hosts := allowedHosts
	if hosts == nil {
		hosts = DefaultAllowedHosts
	}
	return Policy{
		Version:      version,
		Origin:       &url.URL{Scheme: u.Scheme, Host: u.Host},
		CoreAssets:   append([]string(nil), DefaultCoreAssets...),
		AllowedHosts: append([]string(nil), hosts...),
	}, nil
}

// CoreCacheName is the partition holding versioned static assets.
func (p Policy) CoreCacheName() string {
	return cachePrefix + "-v" + p.Version
}

// DynamicCacheName is the partition holding runtime-fetched resources.
func (p Policy) DynamicCacheName() string {
	return cachePrefix + "-dynamic-v" + p.Version
}

// Resolve turns a possibly relative reference into an absolute URL on the application origin.
func (p Policy) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	out := p.Origin.ResolveReference(u)
	out.Fragment = ""
	return out, nil
}

// RequestURL returns the absolute target of an incoming request. Requests in origin form
// ("/styles.css") target the application origin; proxy-form requests keep their own host.
func (p Policy) RequestURL(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		u := *r.URL
		u.Fragment = ""
		return &u
	}
	u := p.Origin.ResolveReference(&url.URL{Path: r.URL.Path, RawPath: r.URL.RawPath, RawQuery: r.URL.RawQuery})
	return u
}

// SameOrigin reports whether u is on the application origin.
func (p Policy) SameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, p.Origin.Scheme) && strings.EqualFold(u.Host, p.Origin.Host)
}

// AllowedExternal reports whether hostname is on the allow-list. Matching is by substring.
func (p Policy) AllowedExternal(hostname string) bool {
	for _, h := range p.AllowedHosts {
		if h != "" && strings.Contains(hostname, h) {
			return true
		}
	}
	return false
}

// Intercepts reports whether the worker handles the request at all. Everything else keeps
// default handling (pass-through).
func (p Policy) Intercepts(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	u := p.RequestURL(r)
	if !p.SameOrigin(u) && !p.AllowedExternal(u.Hostname()) {
		return false
	}
	return true
}

// Cacheable reports whether a successful response to r may be stored: API responses,
// images, fonts, stylesheets and scripts.
func (p Policy) Cacheable(r *http.Request) bool {
	u := p.RequestURL(r)
	switch {
	case strings.HasPrefix(u.Path, "/api/"):
		return true
	case AcceptsImage(r):
		return true
	case strings.Contains(u.Path, "fonts/") || strings.Contains(u.Hostname(), "fonts.g"):
		return true
	case strings.HasSuffix(u.Path, ".css") || strings.HasSuffix(u.Path, ".js"):
		return true
	}
	return false
}

// IsCoreAsset reports whether rawURL ends with one of the core asset paths.
func (p Policy) IsCoreAsset(rawURL string) bool {
	for _, asset := range p.CoreAssets {
		if strings.HasSuffix(rawURL, asset) {
			return true
		}
	}
	return false
}

// PartitionFor picks the partition a cacheable response is stored in.
func (p Policy) PartitionFor(rawURL string) string {
	if p.IsCoreAsset(rawURL) {
		return p.CoreCacheName()
	}
	return p.DynamicCacheName()
}

// AcceptsHTML reports whether the request's Accept header includes text/html.
func AcceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// AcceptsImage reports whether the request's Accept header includes an image type.
func AcceptsImage(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "image/")
}
