package googlenews

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	rssparser "github.com/mmcdole/gofeed/rss"

	"github.com/relieflaunch/campaignkit/models"
)

const DefaultEndpoint = "https://news.google.com/rss/search"

// Search queries the Google News RSS search feed.
type Search struct {
	Endpoint   string
	HTTPClient *http.Client
}

func NewSearch(endpoint string, timeout time.Duration) *Search {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Search{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Search issues one feed query and returns up to limit normalised results.
// Malformed individual entries are dropped; a transport failure is an error
// for the whole search.
func (s *Search) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	feedURL := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en", s.Endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned status: %d", resp.StatusCode)
	}

	parser := &rssparser.Parser{}
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	var out []models.SearchResult
	for _, item := range feed.Items {
		if item == nil || len(out) >= limit {
			break
		}
		result, ok := parseItem(item)
		if !ok {
			continue
		}
		out = append(out, result)
	}
	return out, nil
}

// parseItem normalises one feed entry. Entries without a usable link are
// dropped; missing source falls back to "Unknown" the way absent optional
// feed fields are a normal case, not an error.
func parseItem(item *rssparser.Item) (models.SearchResult, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return models.SearchResult{}, false
	}
	source := "Unknown"
	if item.Source != nil && strings.TrimSpace(item.Source.Title) != "" {
		source = strings.TrimSpace(item.Source.Title)
	}
	return models.SearchResult{
		Title:   strings.TrimSpace(item.Title),
		URL:     link,
		Source:  source,
		PubDate: strings.TrimSpace(item.PubDate),
	}, true
}

// ResolveURL decodes a Google News indirection URL to the real article URL.
// The article id is a base64url payload carrying the destination URL. Decode
// is best effort: any failure returns the input unchanged, so search never
// stalls on resolution.
func (s *Search) ResolveURL(ctx context.Context, raw string) string {
	decoded, ok := decodeArticleURL(raw)
	if !ok {
		return raw
	}
	return decoded
}

func decodeArticleURL(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(parsed.Hostname(), "news.google.com") {
		return "", false
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] != "articles" {
		return "", false
	}
	id := segments[len(segments)-1]

	data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(id)
	if err != nil {
		return "", false
	}

	data = bytes.TrimPrefix(data, []byte("\x08\x13\x22"))
	data = bytes.TrimSuffix(data, []byte("\xd2\x01\x00"))
	if len(data) < 2 {
		return "", false
	}

	length := int(data[0])
	if length >= 0x80 {
		// Two-byte varint length prefix.
		if len(data) < 2 {
			return "", false
		}
		length = length - 0x80 + int(data[1])<<7
		data = data[2:]
	} else {
		data = data[1:]
	}
	if length <= 0 || length > len(data) {
		return "", false
	}

	target := string(data[:length])
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		// Newer ids reference the destination indirectly and cannot be
		// decoded offline.
		return "", false
	}
	return target, true
}
