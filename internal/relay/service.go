// Package relay resolves relay paths to page titles: static overrides first,
// then the network pipeline of fetch, redirect following, decoding, and
// title extraction.
package relay

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/title-relay/internal/contentenc"
	"github.com/JakeFAU/title-relay/internal/extract"
	"github.com/JakeFAU/title-relay/internal/fetch"
	"github.com/JakeFAU/title-relay/internal/metrics"
	"github.com/JakeFAU/title-relay/internal/override"
)

// Outcome is the terminal answer for one relay request.
type Outcome struct {
	Status int
	Body   string
	// Source is metrics.SourceOverride or metrics.SourceNetwork once a
	// target has been parsed.
	Source string
	// Bare responses carry only the status: no body, no title headers.
	Bare bool
}

// Fetcher is the outbound side of the pipeline; *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, target fetch.Target) (*http.Response, error)
	Collect(resp *http.Response) (fetch.Result, error)
}

// Service resolves titles. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	overrides *override.Table
	fetcher   Fetcher
	decoder   contentenc.Decoder
	logger    *zap.Logger
}

// NewService wires a Service. The override table is shared, never copied.
func NewService(overrides *override.Table, fetcher Fetcher, decoder contentenc.Decoder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		overrides: overrides,
		fetcher:   fetcher,
		decoder:   decoder,
		logger:    logger,
	}
}

// Resolve answers the relay path (request URI without its leading slash).
func (s *Service) Resolve(ctx context.Context, path string) Outcome {
	req, err := ParseTarget(path)
	if err != nil {
		s.logger.Debug("rejecting relay path", zap.String("path", path), zap.Error(err))
		return Outcome{Status: http.StatusBadRequest}
	}

	if title, ok := s.overrides.Lookup(req.Raw); ok {
		s.logger.Debug("served static override", zap.String("url", req.Raw), zap.String("title", title))
		return Outcome{Status: http.StatusOK, Body: title, Source: metrics.SourceOverride}
	}

	return s.resolveNetwork(ctx, req)
}

func (s *Service) resolveNetwork(ctx context.Context, req Request) Outcome {
	logger := s.logger.With(zap.String("url", req.Raw))

	resp, err := s.fetcher.Fetch(ctx, req.Target)
	if err != nil {
		return s.failure(ctx, logger, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !extract.IsHTML(contentType) {
		_ = resp.Body.Close()
		logger.Debug("target is not html", zap.String("content_type", contentType))
		return Outcome{Status: http.StatusBadRequest, Body: extract.NoTitle, Source: metrics.SourceNetwork}
	}

	result, err := s.fetcher.Collect(resp)
	if err != nil {
		return s.failure(ctx, logger, err)
	}
	metrics.ObserveBytes(len(result.Body))

	decoded, err := s.decoder.Decode(result.Body, result.ContentEncoding)
	if err != nil {
		return s.failure(ctx, logger, err)
	}

	title, found, err := extract.Title(decoded, result.ContentType)
	if err != nil {
		return s.failure(ctx, logger, err)
	}
	if !found {
		title = extract.NoTitle
	}
	logger.Debug("resolved title",
		zap.Int("upstream_status", result.StatusCode),
		zap.String("final_url", result.URL),
		zap.String("title", title),
	)
	return Outcome{Status: http.StatusOK, Body: title, Source: metrics.SourceNetwork}
}

func (s *Service) failure(ctx context.Context, logger *zap.Logger, err error) Outcome {
	switch {
	case errors.Is(err, fetch.ErrPayloadTooLarge):
		logger.Warn("payload too large", zap.Error(err))
		return Outcome{Status: http.StatusRequestEntityTooLarge, Source: metrics.SourceNetwork}
	case fetch.IsDNSNotFound(err):
		logger.Warn("target host not found", zap.Error(err))
		return Outcome{Status: http.StatusInternalServerError, Source: metrics.SourceNetwork, Bare: true}
	case ctx.Err() != nil:
		// The watchdog or the client gave up; nobody reads this outcome.
		logger.Debug("pipeline abandoned", zap.Error(err))
		return Outcome{Status: http.StatusGatewayTimeout, Source: metrics.SourceNetwork, Bare: true}
	default:
		logger.Error("title pipeline failed", zap.Error(err))
		return Outcome{Status: http.StatusInternalServerError, Body: err.Error(), Source: metrics.SourceNetwork}
	}
}
