package httpapi

import (
	"net/http"
	"strings"

	"github.com/palm-beach-pass/pass-api/internal/domain"
)

// ClientHeader carries the page-context identifier on every client-scoped request.
const ClientHeader = "X-Client-ID"

// NewClientMiddleware requires a page-context identifier and stores it in request context.
//
// It reads X-Client-ID, then the clientId query parameter (event streams cannot set headers),
// then falls back to defaultClient if provided.
func NewClientMiddleware(defaultClient domain.ClientID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ClientHeader))
			if id == "" {
				id = strings.TrimSpace(r.URL.Query().Get("clientId"))
			}
			if id == "" {
				id = strings.TrimSpace(string(defaultClient))
			}
			if id == "" {
				writeError(w, r, http.StatusBadRequest, "MISSING_CLIENT_ID", "missing client id (set X-Client-ID)", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), domain.ClientID(id))))
		})
	}
}

// clientID reads the identifier stored by NewClientMiddleware.
func clientID(r *http.Request) domain.ClientID {
	id, _ := ClientFromContext(r.Context())
	return id
}
