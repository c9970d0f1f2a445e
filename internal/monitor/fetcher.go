package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// The status site rejects default client identities, so every request carries
// a fixed desktop-browser User-Agent.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrFetch is returned for every transport-level failure: DNS, refused
// connection, timeout, non-2xx status. Callers never retry here; retry policy
// belongs to the scheduler's cooldown cadence.
var ErrFetch = errors.New("status page fetch failed")

// PageFetcher downloads a section's status page.
type PageFetcher struct {
	client *http.Client
	log    zerolog.Logger
}

// NewPageFetcher creates a fetcher with a bounded request timeout. The timeout
// is the only cutoff; requests are never cancelled mid-flight otherwise.
func NewPageFetcher(timeout time.Duration, log zerolog.Logger) *PageFetcher {
	return &PageFetcher{
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "page_fetcher").Logger(),
	}
}

// Fetch issues a single GET and returns the raw markup. Any failure collapses
// into an error wrapping ErrFetch.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	return string(body), nil
}
