// Package netx contains HTTP client helpers used by the remote transports.
package netx

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gregjones/httpcache"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status: %d %s; body: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// NewCachingClient returns an HTTP client that revalidates cached GET
// responses with ETag/If-None-Match, so unchanged documents are not
// transferred twice.
func NewCachingClient() *http.Client {
	return &http.Client{Transport: httpcache.NewMemoryCacheTransport()}
}

// CheckResponse returns a *StatusError for non-2xx responses. At most 512
// bytes of the body are kept for the message.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(b)}
}

// FromCache reports whether resp was served from the httpcache store.
func FromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) == "1"
}
