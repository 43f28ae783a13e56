package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var _ Fetcher = &HttpFetcher{}

type HttpFetcher struct {
	url    string
	client *http.Client
}

func NewHttpFetcher(uri string) (*HttpFetcher, error) {
	return &HttpFetcher{url: uri, client: http.DefaultClient}, nil
}

func (h *HttpFetcher) do(ctx context.Context, method string, rangeHeader *string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if rangeHeader != nil {
		req.Header.Set("Range", *rangeHeader)
	}
	start := time.Now()
	response, err := h.client.Do(req)
	tookMs := time.Since(start).Milliseconds()
	if err != nil {
		slog.Error("http."+method, "range", rangeHeader, "url", h.url, "took_ms", tookMs, "error", err)
		return nil, err
	}
	switch {
	case response.StatusCode == http.StatusNotFound:
		_ = response.Body.Close()
		slog.Warn("http."+method, "range", rangeHeader, "url", h.url, "took_ms", tookMs, "error", "NotFound")
		return nil, fmt.Errorf("%w: %s", ErrDoesNotExist, h.url)
	case response.StatusCode >= http.StatusBadRequest:
		_ = response.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, h.url, response.Status)
	}
	slog.Debug("http."+method, "range", rangeHeader, "url", h.url, "status", response.StatusCode, "took_ms", tookMs)
	return response, nil
}

func (h *HttpFetcher) Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	rangeHeader := buildRange(startOffset, endOffset)
	response, err := h.do(ctx, http.MethodGet, rangeHeader)
	if err != nil {
		return nil, err
	}
	if rangeHeader != nil && response.StatusCode != http.StatusPartialContent {
		_ = response.Body.Close()
		return nil, fmt.Errorf("GET %s: server ignored range %s", h.url, *rangeHeader)
	}
	return response.Body, nil
}

func (h *HttpFetcher) Size(ctx context.Context) (int64, error) {
	response, err := h.do(ctx, http.MethodHead, nil)
	if err != nil {
		return 0, err
	}
	_ = response.Body.Close()
	if response.ContentLength < 0 {
		return 0, fmt.Errorf("HEAD %s: no content length", h.url)
	}
	return response.ContentLength, nil
}
