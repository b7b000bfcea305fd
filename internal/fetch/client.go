package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/title-relay/internal/metrics"
)

const (
	readChunkSize   = 32 * 1024
	drainLimitBytes = 64 * 1024
)

// Config controls a Client.
type Config struct {
	Options        Options
	MaxRedirects   int
	MaxPayloadSize int64
	// Transport overrides the tuned default transport, mainly for tests.
	Transport http.RoundTripper
}

// Result is a fully read upstream response.
type Result struct {
	URL             string
	StatusCode      int
	Header          http.Header
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// Client issues outbound GETs and follows redirects by hand so the hop count,
// scheme policy, and per-hop timeout stay under the relay's control.
type Client struct {
	http           *http.Client
	builder        RequestBuilder
	maxRedirects   int
	maxPayloadSize int64
	logger         *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := NewRequestBuilder(cfg.Options)
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects < 0 {
		maxRedirects = 0
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   builder.Timeout(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		builder:        builder,
		maxRedirects:   maxRedirects,
		maxPayloadSize: cfg.MaxPayloadSize,
		logger:         logger,
	}
}

// Get issues one outbound GET. The caller owns the response body.
func (c *Client) Get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := c.builder.Build(ctx, u)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveFetch(0, time.Since(start))
		return nil, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	metrics.ObserveFetch(resp.StatusCode, time.Since(start))
	return resp, nil
}

// Fetch requests target and follows any redirects. The returned response is
// the final one; its body must be closed by the caller.
func (c *Client) Fetch(ctx context.Context, target Target) (*http.Response, error) {
	resp, err := c.Get(ctx, target.URL())
	if err != nil {
		return nil, err
	}
	return c.Follow(ctx, resp)
}

// Follow walks a redirect chain starting at resp. It stops, returning the
// current response, when the status is not a 3xx, when no Location is given,
// or after MaxRedirects hops, in which case the final response may itself be a
// redirect. Only the hop counter and the current response are kept.
func (c *Client) Follow(ctx context.Context, resp *http.Response) (*http.Response, error) {
	for hops := 0; ; hops++ {
		location := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || location == "" {
			return resp, nil
		}
		if hops >= c.maxRedirects {
			c.logger.Debug("redirect limit reached",
				zap.Int("max_redirects", c.maxRedirects),
				zap.String("location", location),
			)
			return resp, nil
		}

		next, err := resolveLocation(resp, location)
		drain(resp)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("following redirect",
			zap.Int("hop", hops+1),
			zap.Int("status", resp.StatusCode),
			zap.String("location", next.String()),
		)
		metrics.ObserveRedirect()

		resp, err = c.Get(ctx, next)
		if err != nil {
			return nil, err
		}
	}
}

// Collect reads resp under the payload cap and closes it.
func (c *Client) Collect(resp *http.Response) (Result, error) {
	defer resp.Body.Close() //nolint:errcheck // body fully consumed or abandoned
	if c.maxPayloadSize > 0 && resp.ContentLength > c.maxPayloadSize {
		return Result{}, ErrPayloadTooLarge
	}
	body, err := ReadCapped(resp.Body, c.maxPayloadSize)
	if err != nil {
		return Result{}, err
	}
	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return Result{
		URL:             finalURL,
		StatusCode:      resp.StatusCode,
		Header:          resp.Header,
		Body:            body,
		ContentType:     resp.Header.Get("Content-Type"),
		ContentEncoding: resp.Header.Get("Content-Encoding"),
	}, nil
}

// ReadCapped accumulates r into a growing buffer and fails with
// ErrPayloadTooLarge as soon as the next chunk would push the total past
// limit, without buffering that chunk. A limit <= 0 disables the cap.
func ReadCapped(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if limit > 0 && int64(buf.Len())+int64(n) > limit {
				return nil, ErrPayloadTooLarge
			}
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
}

func resolveLocation(resp *http.Response, location string) (*url.URL, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidLocation, location, err)
	}
	next := ref
	if resp.Request != nil && resp.Request.URL != nil {
		next = resp.Request.URL.ResolveReference(ref)
	}
	if !SupportedScheme(next.Scheme) {
		return nil, &UnsupportedSchemeError{Scheme: next.Scheme, URL: next.String()}
	}
	return next, nil
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimitBytes))
	_ = resp.Body.Close()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		// Accept-Encoding is set explicitly and decoded by contentenc.
		DisableCompression: true,
	}
}
