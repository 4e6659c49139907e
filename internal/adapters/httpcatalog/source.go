package httpcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/catalog"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/network"
)

const (
	PassesPath      = "/data/passes.json"
	AttractionsPath = "/data/attractions.json"
)

// maxCatalogBytes bounds a catalog document.
const maxCatalogBytes = 4 << 20

// Source fetches the catalogs as JSON documents over HTTP.
type Source struct {
	doer network.Doer
	base *url.URL
}

var _ catalog.Source = (*Source)(nil)

func NewSource(doer network.Doer, baseURL string) (*Source, error) {
	if doer == nil {
		return nil, fmt.Errorf("nil doer")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", baseURL)
	}
	return &Source{doer: doer, base: u}, nil
}

func (s *Source) Passes(ctx context.Context) ([]domain.Pass, error) {
	var dtos []PassDTO
	if err := s.getJSON(ctx, PassesPath, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Pass, 0, len(dtos))
	for _, d := range dtos {
		p, err := PassFromDTO(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Source) Attractions(ctx context.Context) ([]domain.Attraction, error) {
	var dtos []AttractionDTO
	if err := s.getJSON(ctx, AttractionsPath, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Attraction, 0, len(dtos))
	for _, d := range dtos {
		a, err := AttractionFromDTO(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Source) getJSON(ctx context.Context, path string, dst any) error {
	u := s.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	res, err := s.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return fmt.Errorf("%w: GET %s: status %d", catalog.ErrUnavailable, path, res.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, maxCatalogBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", catalog.ErrUnavailable, path, err)
	}
	return nil
}
