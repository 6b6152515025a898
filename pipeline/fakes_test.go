package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/relieflaunch/campaignkit/models"
)

// fakeProvider scripts embedding and generation behaviour for tests.
type fakeProvider struct {
	mu        sync.Mutex
	embedFunc func(texts []string) ([][]float32, error)
	responses []string
	genErr    error
	prompts   []string
}

func (f *fakeProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	if f.embedFunc != nil {
		return f.embedFunc(texts)
	}
	// Default: every text embeds to the same unit vector, making all
	// similarities equal and retrieval order the original chunk order.
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func (f *fakeProvider) GenerateStructured(_ context.Context, prompt, _ string, _ json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.genErr != nil {
		return "", f.genErr
	}
	idx := len(f.prompts) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	if idx < 0 {
		return "", fmt.Errorf("no scripted response")
	}
	return f.responses[idx], nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// kitJSON renders a minimal valid campaign kit response citing the given
// source URLs, one claim each.
func kitJSON(imageURL string, sourceURLs ...string) string {
	kit := models.CampaignKit{
		Title:           "Help Flood Survivors",
		Location:        "Mozambique",
		EventType:       "flood",
		Summary:         "Severe flooding has displaced thousands.",
		ConfidenceScore: 0.9,
		ImageURL:        imageURL,
	}
	for i, u := range sourceURLs {
		kit.KeyClaims = append(kit.KeyClaims, models.KeyClaim{
			Claim:     fmt.Sprintf("claim %d", i),
			SourceURL: u,
		})
	}
	data, _ := json.Marshal(kit)
	return string(data)
}

// fakeSearcher serves a fixed result list and resolves URLs through a map.
type fakeSearcher struct {
	results  []models.SearchResult
	err      error
	resolved map[string]string
	gotLimit int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]models.SearchResult, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *fakeSearcher) ResolveURL(_ context.Context, raw string) string {
	if real, ok := f.resolved[raw]; ok {
		return real
	}
	return raw
}

// fakeScraper maps URLs to articles; missing URLs fail like unparseable
// pages.
type fakeScraper struct {
	mu       sync.Mutex
	articles map[string]*models.Article
	scraped  []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*models.Article, error) {
	f.mu.Lock()
	f.scraped = append(f.scraped, url)
	f.mu.Unlock()
	article, ok := f.articles[url]
	if !ok {
		return nil, fmt.Errorf("could not parse %s", url)
	}
	return article, nil
}

// collectSink records every event in order.
type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectSink) Send(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collectSink) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func floodArticle(url string) *models.Article {
	return &models.Article{
		URL:    url,
		Title:  "Flooding in Mozambique",
		Text:   "Severe flooding has affected Mozambique.\n\nRelief efforts are under way across the region.",
		Source: "https://example.com",
		ImageURLs: []string{
			strings.TrimSuffix(url, "/") + "/lead.jpg",
		},
	}
}
