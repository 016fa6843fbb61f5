package source

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// DefaultURL is the demo endpoint serving the students dataset.
const DefaultURL = "https://my-json-server.typicode.com/averkoc/demo/example1"

// maxErrorBody bounds how much of an error response is kept in the failure.
const maxErrorBody = 1024

// HTTPConfig holds configuration for an HTTPSource.
type HTTPConfig struct {
	// URL is the resource returning the JSON array.
	URL string

	// Timeout bounds each request attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after a retryable failure.
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per retry.
	RetryBackoff time.Duration

	// QueryParam, when set, sends the query text from the context as this
	// URL parameter.
	QueryParam string

	// Headers are added to every request.
	Headers map[string]string
}

// DefaultHTTPConfig returns the default configuration for the demo endpoint.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		URL:          DefaultURL,
		Timeout:      10 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// HTTPSource fetches the dataset with a GET request. When the server sends
// an ETag, later requests are conditional and a 304 reuses the previous
// dataset.
type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client

	mu       sync.Mutex
	etag     string
	previous types.Dataset
}

// NewHTTPSource creates an HTTP source. A nil client uses one with the
// configured timeout.
func NewHTTPSource(cfg HTTPConfig, client *http.Client) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, oerrors.NewConfigError("http source url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, oerrors.NewConfigError(fmt.Sprintf("invalid http source url %q: %v", cfg.URL, err))
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPSource{cfg: cfg, client: client}, nil
}

// Fetch performs the GET request, retrying retryable failures with
// exponential backoff. Status 200 and 304 are treated as success.
func (s *HTTPSource) Fetch(ctx context.Context) (types.Dataset, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, asFetchError("fetch cancelled", err)
		}

		ds, err := s.fetchOnce(ctx)
		if err == nil {
			return ds, nil
		}
		lastErr = err

		if !oerrors.IsRetryable(err) {
			return nil, err
		}

		if attempt < s.cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * s.cfg.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, asFetchError("fetch cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return nil, lastErr
}

func (s *HTTPSource) fetchOnce(ctx context.Context) (types.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(ctx), nil)
	if err != nil {
		return nil, oerrors.NewFetchError(oerrors.CodeFetchFailed, "create request", err).WithRetryable(false)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	s.mu.Lock()
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, asFetchError("http request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, oerrors.BadStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if resp.StatusCode == http.StatusNotModified {
		s.mu.Lock()
		previous := s.previous
		s.mu.Unlock()
		if previous != nil {
			return previous, nil
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oerrors.FetchFailure("read body", err)
	}
	ds, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if etag := resp.Header.Get("ETag"); etag != "" && resp.StatusCode == http.StatusOK {
		s.mu.Lock()
		s.etag = etag
		s.previous = ds
		s.mu.Unlock()
	}
	return ds, nil
}

// requestURL appends the query parameter when configured.
func (s *HTTPSource) requestURL(ctx context.Context) string {
	query := QueryText(ctx)
	if s.cfg.QueryParam == "" || query == "" {
		return s.cfg.URL
	}
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return s.cfg.URL
	}
	values := u.Query()
	values.Set(s.cfg.QueryParam, query)
	u.RawQuery = values.Encode()
	return u.String()
}
