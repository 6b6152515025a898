package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cdp "github.com/relieflaunch/campaignkit/tools/web_fetch/chromedp"
)

const (
	DefaultTimeout = 15 * time.Second
	userAgent      = "CampaignKitBot/1.0 (+contact@relieflaunch.org)"
)

// Fetcher downloads the raw HTML of a page. Content extraction happens
// downstream; this layer only deals with transport.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

func NewFetcher(fetcherType FetcherType, timeout time.Duration) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch fetcherType {
	case HTTPFetcherType:
		return &HTTPFetch{Client: &http.Client{Timeout: timeout}}, nil
	case ChromedpFetcherType:
		return &cdp.Fetch{Timeout: timeout, UserAgent: userAgent}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", fetcherType)
	}
}

// HTTPFetch is the default fetcher: a plain GET with a browser-ish user
// agent. Good enough for most news sites; pages that require JS rendering
// need the chromedp fetcher instead.
type HTTPFetch struct {
	Client *http.Client
}

func (f *HTTPFetch) FetchHTML(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("invalid url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	return string(body), nil
}
