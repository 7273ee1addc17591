// internal/imagery/fetcher.go - HTTP fetching for imagery tiles and provider metadata
package imagery

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/tile_imagery/internal/config"
	"github.com/valpere/tile_imagery/internal/logging"
	"github.com/valpere/tile_imagery/internal/store"
)

// Response is the result of fetching a single URL
type Response struct {
	URL         string
	Data        []byte
	ContentType string
	StatusCode  int
	FetchTime   time.Duration
	Cached      bool
}

// Fetcher retrieves imagery tiles and provider metadata
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
	FetchWithRetry(ctx context.Context, rawURL string) (*Response, error)
}

// HTTPFetcher implements Fetcher over net/http with an optional read-through cache
type HTTPFetcher struct {
	client  *http.Client
	config  config.NetworkConfig
	store   store.Store
	logger  *zap.Logger
	backoff time.Duration
}

// NewHTTPFetcher creates a fetcher from the network configuration. A nil
// store disables caching.
func NewHTTPFetcher(cfg config.NetworkConfig, st store.Store, logger *zap.Logger) *HTTPFetcher {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// Configure proxy if specified
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	if st == nil {
		st = store.Nop{}
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config:  cfg,
		store:   st,
		logger:  logging.OrNop(logger),
		backoff: time.Second,
	}
}

// Fetch retrieves a single URL. Non-200 responses are returned together with
// an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()

	if entry, err := f.store.Get(ctx, rawURL); err != nil {
		f.logger.Debug("cache read failed", zap.String("url", rawURL), zap.Error(err))
	} else if entry != nil {
		return &Response{
			URL:         rawURL,
			Data:        entry.Data,
			ContentType: entry.ContentType,
			StatusCode:  http.StatusOK,
			FetchTime:   time.Since(start),
			Cached:      true,
		}, nil
	}

	req, err := f.buildHTTPRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// Handle compressed responses
	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &Response{
		URL:         rawURL,
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FetchTime:   time.Since(start),
	}

	if resp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if len(data) > 0 {
		entry := &store.Entry{ContentType: response.ContentType, Data: data}
		if err := f.store.Put(ctx, rawURL, entry); err != nil {
			f.logger.Debug("cache write failed", zap.String("url", rawURL), zap.Error(err))
		}
	}

	return response, nil
}

// FetchWithRetry retries transport failures and server errors with a
// quadratic backoff
func (f *HTTPFetcher) FetchWithRetry(ctx context.Context, rawURL string) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * f.backoff):
			}
		}

		response, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !shouldRetry(response) {
			break
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", f.config.MaxRetries+1, lastErr)
}

// fetchJSON fetches rawURL with retries and decodes the body into v
func fetchJSON(ctx context.Context, f Fetcher, rawURL string, v any) error {
	response, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(response.Data, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", rawURL, err)
	}
	return nil
}

func (f *HTTPFetcher) buildHTTPRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept", "image/png, image/jpeg, application/json;q=0.9, */*;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", f.config.UserAgent)

	for key, value := range f.config.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// shouldRetry determines whether a failed request should be retried
func shouldRetry(response *Response) bool {
	// Always retry on network errors
	if response == nil {
		return true
	}

	// Don't retry on client errors (4xx)
	if response.StatusCode >= 400 && response.StatusCode < 500 {
		return false
	}

	return response.StatusCode >= 500 || response.StatusCode == 0
}
