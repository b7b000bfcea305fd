// Package fetch performs the outbound side of a title lookup: building polite
// GET requests, following redirects up to a bound, and reading bodies under a
// size cap.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Header values sent on every outbound request.
const (
	AcceptHeader         = "text/html, application/xhtml+xml, application/xml;q=0.9, */*;q=0.1"
	AcceptEncodingHeader = "gzip, deflate, identity;q=0.2, *;q=0"
)

// DefaultTimeout bounds a single outbound call.
const DefaultTimeout = 3 * time.Second

// Target is the upstream a relay request resolves to. It is built once from
// the inbound path and never modified.
type Target struct {
	Scheme   string
	Host     string
	Path     string
	RawPath  string
	RawQuery string
}

// TargetFromURL copies the parts of u the relay cares about.
func TargetFromURL(u *url.URL) Target {
	return Target{
		Scheme:   u.Scheme,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	}
}

// URL rebuilds the absolute URL for t.
func (t Target) URL() *url.URL {
	return &url.URL{
		Scheme:   t.Scheme,
		Host:     t.Host,
		Path:     t.Path,
		RawPath:  t.RawPath,
		RawQuery: t.RawQuery,
	}
}

func (t Target) String() string {
	return t.URL().String()
}

// Options controls the identity and limits of outbound requests.
type Options struct {
	UserAgent      string
	AcceptLanguage string
	From           string
	Timeout        time.Duration
}

// RequestBuilder turns URLs into outbound request descriptors.
type RequestBuilder struct {
	opts Options
}

// NewRequestBuilder returns a builder. A zero timeout becomes DefaultTimeout.
func NewRequestBuilder(opts Options) RequestBuilder {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return RequestBuilder{opts: opts}
}

// Timeout is the per-call limit applied by the client.
func (b RequestBuilder) Timeout() time.Duration {
	return b.opts.Timeout
}

// Build creates a GET request for u carrying the relay's crawler headers.
func (b RequestBuilder) Build(ctx context.Context, u *url.URL) (*http.Request, error) {
	if !SupportedScheme(u.Scheme) {
		return nil, &UnsupportedSchemeError{Scheme: u.Scheme, URL: u.String()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", b.opts.UserAgent)
	req.Header.Set("Accept", AcceptHeader)
	if b.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", b.opts.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", AcceptEncodingHeader)
	// RFC 7231 section 5.5.1.
	if b.opts.From != "" {
		req.Header.Set("From", b.opts.From)
	}
	return req, nil
}

// SupportedScheme reports whether the relay may fetch URLs with this scheme.
func SupportedScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
