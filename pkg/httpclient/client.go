// Package httpclient builds the HTTP clients used when talking to video
// platforms directly. Header shaping lives in a RoundTripper so the clients
// plug into any library that accepts a plain *http.Client.
package httpclient

import (
	"net/http"
	"time"
)

// Profile selects a header strategy.
type Profile string

const (
	// Browser uses browser-like headers to avoid 406 (Not Acceptable)
	// responses from picky origins.
	Browser Profile = "browser"

	// Plain uses curl-like headers. Some CDN-fronted hosts block browser
	// User-Agents from non-browser clients but allow simple tools.
	Plain Profile = "plain"
)

const requestTimeout = 30 * time.Second

// New returns a client for the given profile with a bounded redirect chain.
func New(profile Profile) *http.Client {
	return &http.Client{
		Timeout:   requestTimeout,
		Transport: &headerTransport{base: http.DefaultTransport, profile: profile},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// NewBrowser returns a client sending browser-like headers.
func NewBrowser() *http.Client { return New(Browser) }

// NewPlain returns a client sending curl-like headers.
func NewPlain() *http.Client { return New(Plain) }

type headerTransport struct {
	base    http.RoundTripper
	profile Profile
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Requests are not owned by the transport; work on a clone.
	req = req.Clone(req.Context())

	switch t.profile {
	case Browser:
		setDefault(req, "User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
		setDefault(req, "Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		setDefault(req, "Accept-Language", "en-US,en;q=0.9")
	case Plain:
		setDefault(req, "User-Agent", "curl/8.7.1")
	}
	return t.base.RoundTrip(req)
}

func setDefault(req *http.Request, key, value string) {
	if req.Header.Get(key) == "" {
		req.Header.Set(key, value)
	}
}
