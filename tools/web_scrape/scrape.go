package web_scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/relieflaunch/campaignkit/models"
	"github.com/relieflaunch/campaignkit/tools/web_fetch"
)

// ErrEmptyBody marks a page that downloaded fine but yielded no article
// text. An ordinary outcome for a noisy crawl, handled as a skip upstream.
var ErrEmptyBody = errors.New("no article text extracted")

// Scraper turns a URL into a normalised article, or an error when the page
// cannot be downloaded or parsed.
type Scraper struct {
	Fetcher   web_fetch.Fetcher
	MaxChars  int
	MaxImages int
}

func NewScraper(fetcher web_fetch.Fetcher, maxChars, maxImages int) *Scraper {
	if maxChars <= 0 {
		maxChars = 20000
	}
	if maxImages <= 0 {
		maxImages = 10
	}
	return &Scraper{Fetcher: fetcher, MaxChars: maxChars, MaxImages: maxImages}
}

// Scrape downloads and extracts structured content from a URL, including an
// ordered candidate image URL list pulled from the raw markup.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*models.Article, error) {
	html, err := s.Fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return nil, fmt.Errorf("extracting content from %s: %w", pageURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, ErrEmptyBody
	}
	if len(text) > s.MaxChars {
		text = text[:s.MaxChars]
	}

	var images []string
	var publishDate string
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		images = ExtractImageURLs(doc, pageURL, s.MaxImages)
		publishDate = extractPublishDate(doc)
	}

	return &models.Article{
		URL:         pageURL,
		Title:       strings.TrimSpace(article.Title),
		Text:        text,
		Authors:     splitByline(article.Byline),
		PublishDate: publishDate,
		Source:      sourceOf(pageURL),
		Summary:     strings.TrimSpace(article.Excerpt),
		ImageURLs:   images,
	}, nil
}

func extractPublishDate(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
	} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}

func splitByline(byline string) []string {
	byline = strings.TrimSpace(byline)
	byline = strings.TrimPrefix(byline, "By ")
	byline = strings.TrimPrefix(byline, "by ")
	if byline == "" {
		return nil
	}
	parts := strings.FieldsFunc(byline, func(r rune) bool { return r == ',' })
	var authors []string
	for _, part := range parts {
		for _, name := range strings.Split(part, " and ") {
			if name = strings.TrimSpace(name); name != "" {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

func sourceOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
