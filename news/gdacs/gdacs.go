package gdacs

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/relieflaunch/campaignkit/models"
)

const DefaultFeedURL = "https://www.gdacs.org/xml/rss.xml"

// Client reads the GDACS disaster alert feed.
type Client struct {
	FeedURL    string
	HTTPClient *http.Client
}

func NewClient(feedURL string, timeout time.Duration) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		FeedURL:    feedURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// FetchEvents returns the current disaster events. Entries that fail to
// parse individually are dropped, not propagated.
func (c *Client) FetchEvents(ctx context.Context) ([]models.DisasterEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event feed returned status: %d", resp.StatusCode)
	}

	parser := gofeed.NewParser()
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event feed: %w", err)
	}

	var events []models.DisasterEvent
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		event, ok := parseItem(item)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// parseItem maps one feed entry onto a DisasterEvent. Absent extension
// fields get defaults; only entries without a type are dropped.
func parseItem(item *gofeed.Item) (models.DisasterEvent, bool) {
	eventType := extValue(item, "gdacs", "eventtype")
	if eventType == "" {
		return models.DisasterEvent{}, false
	}

	severity := extValue(item, "gdacs", "severity")
	if sev, attrs := extWithAttrs(item, "gdacs", "severity"); sev == "" && attrs != nil {
		severity = strings.TrimSpace(attrs["value"] + " " + attrs["unit"])
	}

	return models.DisasterEvent{
		EventType:  eventType,
		Title:      item.Title,
		EventName:  extValue(item, "gdacs", "eventname"),
		Country:    orDefault(extValue(item, "gdacs", "country"), "Unknown"),
		Severity:   orDefault(severity, "Unknown"),
		AlertLevel: orDefault(extValue(item, "gdacs", "alertlevel"), "Unknown"),
		Lat:        parseFloat(geoValue(item, "lat")),
		Lon:        parseFloat(geoValue(item, "long")),
		Date:       item.Published,
		EventURL:   item.Link,
	}, true
}

func extValue(item *gofeed.Item, ns, name string) string {
	value, _ := extWithAttrs(item, ns, name)
	return value
}

func extWithAttrs(item *gofeed.Item, ns, name string) (string, map[string]string) {
	exts, ok := item.Extensions[ns]
	if !ok {
		return "", nil
	}
	list, ok := exts[name]
	if !ok || len(list) == 0 {
		return "", nil
	}
	return strings.TrimSpace(list[0].Value), list[0].Attrs
}

// geoValue reads a geo coordinate either directly off the item or nested
// inside a geo:Point element, which is how the live feed publishes it.
func geoValue(item *gofeed.Item, name string) string {
	if v := extValue(item, "geo", name); v != "" {
		return v
	}
	exts, ok := item.Extensions["geo"]
	if !ok {
		return ""
	}
	points, ok := exts["Point"]
	if !ok || len(points) == 0 {
		return ""
	}
	children, ok := points[0].Children[name]
	if !ok || len(children) == 0 {
		return ""
	}
	return strings.TrimSpace(children[0].Value)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
