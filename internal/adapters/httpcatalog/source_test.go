package httpcatalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/catalog"
)

func TestSource_DecodesCatalogs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case PassesPath:
			_, _ = w.Write([]byte(`[
				{"id":"1-day","name":" 1  Day Pass ","duration":1,"prices":{"adult":89,"child":69},"features":["QR"],"badge":null},
				{"id":"3-day","name":"3 Day Pass","duration":3,"prices":{"adult":189,"child":149},"features":[],"badge":"Most Popular"}
			]`))
		case AttractionsPath:
			_, _ = w.Write([]byte(`[
				{"id":"flagler-museum","name":"Flagler Museum","category":"culture","regularPrice":18,"coordinates":{"lat":26.7138,"lng":-80.0484},"featured":true},
				{"id":"online-tour","name":"Online Tour","category":"culture","regularPrice":0,"coordinates":null}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	src, err := NewSource(srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	passes, err := src.Passes(context.Background())
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(passes) != 2 || passes[0].Name != "1 Day Pass" || passes[0].Badge != nil {
		t.Fatalf("passes[0]=%+v", passes[0])
	}
	if passes[1].Badge == nil || *passes[1].Badge != "Most Popular" {
		t.Fatalf("passes[1].Badge=%v", passes[1].Badge)
	}

	attrs, err := src.Attractions(context.Background())
	if err != nil {
		t.Fatalf("Attractions: %v", err)
	}
	if len(attrs) != 2 || attrs[0].Coordinates == nil || attrs[0].Coordinates.Lat != 26.7138 || attrs[1].Coordinates != nil {
		t.Fatalf("attractions=%+v", attrs)
	}
}

func TestSource_FailuresAreUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PassesPath:
			http.Error(w, "boom", http.StatusInternalServerError)
		case AttractionsPath:
			_, _ = w.Write([]byte(`[{"id":"","name":"nameless"}]`))
		}
	}))
	t.Cleanup(srv.Close)

	src, _ := NewSource(srv.Client(), srv.URL)
	if _, err := src.Passes(context.Background()); !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("Passes err=%v, want ErrUnavailable", err)
	}
	if _, err := src.Attractions(context.Background()); !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("Attractions err=%v, want ErrUnavailable", err)
	}
}

func TestPassDTO_BadgeRoundTrip(t *testing.T) {
	t.Parallel()

	badge := "Best Value"
	b, _ := json.Marshal([]PassDTO{
		PassToDTO(passWithBadge(nil)),
		PassToDTO(passWithBadge(&badge)),
	})
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := raw[0]["badge"]; !ok || v != nil {
		t.Fatalf("badge without value should encode as null, got %v (present=%v)", v, ok)
	}
	if raw[1]["badge"] != "Best Value" {
		t.Fatalf("badge=%v", raw[1]["badge"])
	}
}
