package offline

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
)

// Response is a fully buffered HTTP response, either live from the network or replayed from the cache.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

func fromEntry(e cachestore.Entry) *Response {
	return &Response{
		Status: e.Status,
		Header: e.Header.Clone(),
		Body:   append([]byte(nil), e.Body...),
	}
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// WriteTo writes the response to w.
func (r *Response) WriteTo(w http.ResponseWriter) {
	h := w.Header()
	for k, vs := range r.Header {
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// HTTP converts the response into an *http.Response for req.
func (r *Response) HTTP(req *http.Request) *http.Response {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		Status:        strconv.Itoa(r.Status) + " " + http.StatusText(r.Status),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
