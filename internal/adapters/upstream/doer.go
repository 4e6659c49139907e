package upstream

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Doer sends worker traffic to the network. Requests addressed to the application origin are
// rewritten onto the upstream origin; every other request goes out unchanged.
type Doer struct {
	appOrigin *url.URL
	upstream  *url.URL
	client    *http.Client
}

func NewDoer(appOrigin, upstreamURL string, timeout time.Duration) (*Doer, error) {
	app, err := parseOrigin(appOrigin)
	if err != nil {
		return nil, fmt.Errorf("app origin: %w", err)
	}
	up, err := parseOrigin(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	return &Doer{
		appOrigin: app,
		upstream:  up,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// SetClientForTest swaps the underlying HTTP client, e.g. for one built by httptest.
// It should not be used in production code.
func (d *Doer) SetClientForTest(c *http.Client) {
	if c != nil {
		d.client = c
	}
}

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	if !strings.EqualFold(req.URL.Host, d.appOrigin.Host) || req.URL.Scheme != d.appOrigin.Scheme {
		return d.client.Do(req)
	}
	out := req.Clone(req.Context())
	u := *req.URL
	u.Scheme = d.upstream.Scheme
	u.Host = d.upstream.Host
	if base := strings.TrimSuffix(d.upstream.Path, "/"); base != "" {
		u.Path = base + u.Path
		u.RawPath = ""
	}
	out.URL = &u
	out.Host = ""
	out.RequestURI = ""
	out.Header.Set("X-Forwarded-Host", d.appOrigin.Host)
	return d.client.Do(out)
}

func parseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}
