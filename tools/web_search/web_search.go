package web_search

import (
	"context"
	"fmt"
	"time"

	"github.com/relieflaunch/campaignkit/models"
	"github.com/relieflaunch/campaignkit/tools/web_search/googlenews"
)

// NewsSearcher finds news coverage for a query and resolves aggregator
// indirection URLs to real article URLs.
type NewsSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	ResolveURL(ctx context.Context, raw string) string
}

type Provider string

const (
	GoogleNewsProvider Provider = "googlenews"
)

func NewNewsSearcher(provider Provider, endpoint string, timeout time.Duration) (NewsSearcher, error) {
	switch provider {
	case GoogleNewsProvider:
		return googlenews.NewSearch(endpoint, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", provider)
	}
}
