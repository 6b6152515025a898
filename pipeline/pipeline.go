package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/relieflaunch/campaignkit/internal/helpers"
	"github.com/relieflaunch/campaignkit/models"
)

const (
	// DefaultOversample is the multiplier applied to max_articles when
	// requesting raw search results: scraping and relevance filtering both
	// attrit, so the search step asks for more than the target.
	DefaultOversample = 4

	MinArticles = 1
	MaxArticles = 50
)

var (
	// ErrNoArticles is returned when the search yields nothing at all.
	ErrNoArticles = errors.New("no relevant articles found")
	// ErrNoUsableArticles is returned when every result was lost to scrape
	// failure or relevance filtering.
	ErrNoUsableArticles = errors.New("no usable articles survived scraping and filtering")
)

// Searcher finds news coverage and resolves indirection URLs. ResolveURL is
// best effort and never errors outward.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	ResolveURL(ctx context.Context, raw string) string
}

// Scraper turns a resolved URL into an article. Errors are ordinary per-URL
// outcomes recorded as skips, never run failures.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.Article, error)
}

// Request describes one campaign generation run.
type Request struct {
	EventType   string `json:"event_type"`
	EventName   string `json:"event_name"`
	Country     string `json:"country"`
	Date        string `json:"date"`
	MaxArticles int    `json:"max_articles"`
}

// Pipeline drives one event through search, scraping, retrieval and grounded
// generation, reporting incremental progress on the sink.
type Pipeline struct {
	Searcher  Searcher
	Scraper   Scraper
	Retriever *Retriever
	Generator *Generator
	Logger    *log.Logger

	Oversample         int
	TopK               int
	DefaultMaxArticles int
}

func New(searcher Searcher, scraper Scraper, retriever *Retriever, generator *Generator, topK, defaultMaxArticles int, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	if topK <= 0 {
		topK = 5
	}
	if defaultMaxArticles <= 0 {
		defaultMaxArticles = 5
	}
	return &Pipeline{
		Searcher:           searcher,
		Scraper:            scraper,
		Retriever:          retriever,
		Generator:          generator,
		Logger:             logger,
		Oversample:         DefaultOversample,
		TopK:               topK,
		DefaultMaxArticles: defaultMaxArticles,
	}
}

// Run executes one campaign run to completion, emitting ordered events on
// sink. Returns the generated kit, or the terminal error; never both. Every
// terminal failure is also reported as exactly one error event.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (*models.CampaignKit, error) {
	maxArticles := req.MaxArticles
	if maxArticles == 0 {
		maxArticles = p.DefaultMaxArticles
	}
	if maxArticles < MinArticles {
		maxArticles = MinArticles
	}
	if maxArticles > MaxArticles {
		maxArticles = MaxArticles
	}

	kit, err := p.run(ctx, req, maxArticles, sink)
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	runsTotal.WithLabelValues("succeeded").Inc()
	return kit, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, maxArticles int, sink Sink) (*models.CampaignKit, error) {
	query, err := BuildQuery(req.EventType, req.EventName, req.Country, req.Date)
	if err != nil {
		return nil, p.fail(ctx, sink, "input_error", err)
	}

	if err := sink.Send(ctx, Event{Type: EventStatus, Message: fmt.Sprintf("Searching for %q...", query.Text)}); err != nil {
		return nil, err
	}

	oversample := p.Oversample
	if oversample <= 0 {
		oversample = DefaultOversample
	}
	results, err := p.Searcher.Search(ctx, query.Text, maxArticles*oversample)
	if err != nil {
		return nil, p.fail(ctx, sink, "search_error", fmt.Errorf("failed to search news: %w", err))
	}
	if len(results) == 0 {
		return nil, p.fail(ctx, sink, "no_articles", ErrNoArticles)
	}

	if err := sink.Send(ctx, Event{Type: EventStatus, Message: fmt.Sprintf("Found %d results. Scraping articles...", len(results))}); err != nil {
		return nil, err
	}

	campaignID := uuid.NewString()
	kept, err := p.collectArticles(ctx, sink, query, results, maxArticles)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, p.fail(ctx, sink, "no_articles", ErrNoUsableArticles)
	}

	var chunks []models.Chunk
	for _, article := range kept {
		chunks = append(chunks, SplitChunks(article.Text, article.URL, article.Title, article.PublishDate, campaignID, len(chunks))...)
	}

	if err := sink.Send(ctx, Event{Type: EventStatus, Message: fmt.Sprintf("Embedding %d chunks...", len(chunks))}); err != nil {
		return nil, err
	}
	chunks, err = p.Retriever.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, p.fail(ctx, sink, "embedding_error", err)
	}

	retrieved, err := p.Retriever.Retrieve(ctx, query.Text, chunks, p.TopK)
	if err != nil {
		return nil, p.fail(ctx, sink, "embedding_error", err)
	}
	if len(retrieved) == 0 {
		return nil, p.fail(ctx, sink, "no_articles", ErrNoUsableArticles)
	}

	sourceURLs := retrievedSourceURLs(retrieved)
	imageURLs := candidateImages(kept, sourceURLs)

	if err := sink.Send(ctx, Event{Type: EventStatus, Message: "Generating campaign kit..."}); err != nil {
		return nil, err
	}
	kit, err := p.Generator.Generate(ctx, retrieved, sourceURLs, imageURLs)
	if err != nil {
		kind := "generation_error"
		var ge *GroundingError
		if errors.As(err, &ge) {
			kind = "grounding_violation"
		} else if errors.Is(err, ErrMalformedOutput) {
			kind = "malformed_output"
		}
		return nil, p.fail(ctx, sink, kind, err)
	}

	if err := sink.Send(ctx, Event{
		Type:      EventDone,
		Message:   "Campaign kit generated",
		Sent:      len(kept),
		Requested: maxArticles,
		Kit:       kit,
	}); err != nil {
		return nil, err
	}
	return kit, nil
}

// collectArticles walks the search results in order: resolve, scrape,
// filter. Kept articles are emitted immediately; failures and irrelevant
// articles are reported as progress skips. Stops early once maxArticles
// articles are kept, and checks for consumer cancellation between
// iterations.
func (p *Pipeline) collectArticles(ctx context.Context, sink Sink, query Query, results []models.SearchResult, maxArticles int) ([]*models.Article, error) {
	total := len(results)
	seen := make(map[string]struct{}, total)
	var kept []*models.Article

	for i, result := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := i + 1

		if err := sink.Send(ctx, Event{
			Type:    EventProgress,
			Message: fmt.Sprintf("[%d/%d] Resolving %s...", n, total, result.Source),
			Current: n,
			Total:   total,
		}); err != nil {
			return nil, err
		}

		realURL := p.Searcher.ResolveURL(ctx, result.URL)

		fingerprint := realURL
		if canonical, err := helpers.CanonicalURL(realURL); err == nil {
			fingerprint = canonical
		}
		if _, dup := seen[fingerprint]; dup {
			if err := p.skip(ctx, sink, n, total, "Skipped (duplicate article)"); err != nil {
				return nil, err
			}
			continue
		}
		seen[fingerprint] = struct{}{}

		article, err := p.Scraper.Scrape(ctx, realURL)
		if err != nil {
			p.Logger.Printf("scrape failed for %s: %v", realURL, err)
			if err := p.skip(ctx, sink, n, total, "Skipped (could not parse)"); err != nil {
				return nil, err
			}
			continue
		}
		articlesScrapedTotal.Inc()

		if !relevant(article, query.Keywords) {
			if err := p.skip(ctx, sink, n, total, fmt.Sprintf("Skipped (not relevant to %s)", query.Subject)); err != nil {
				return nil, err
			}
			continue
		}

		if err := sink.Send(ctx, Event{Type: EventArticle, Article: article}); err != nil {
			return nil, err
		}
		articlesKeptTotal.Inc()
		kept = append(kept, article)
		if len(kept) >= maxArticles {
			break
		}
	}
	return kept, nil
}

func (p *Pipeline) skip(ctx context.Context, sink Sink, n, total int, message string) error {
	return sink.Send(ctx, Event{
		Type:    EventProgress,
		Message: fmt.Sprintf("[%d/%d] %s", n, total, message),
		Current: n,
		Total:   total,
	})
}

// fail reports a terminal condition as exactly one error event and returns
// the error for the caller.
func (p *Pipeline) fail(ctx context.Context, sink Sink, kind string, err error) error {
	p.Logger.Printf("run failed (%s): %v", kind, err)
	_ = sink.Send(ctx, Event{Type: EventError, Kind: kind, Message: err.Error()})
	return err
}

// relevant is the recall-biased keyword gate: keep the article iff any
// keyword appears as a substring of the lowercased title+text. An empty
// keyword set keeps everything.
func relevant(article *models.Article, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(article.Title + " " + article.Text)
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// retrievedSourceURLs returns the deduplicated source URLs of the retrieved
// chunks, in retrieval order. This exact set is the only legal citation
// target for generation.
func retrievedSourceURLs(retrieved []models.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(retrieved))
	var urls []string
	for _, rc := range retrieved {
		if _, dup := seen[rc.Chunk.SourceURL]; dup {
			continue
		}
		seen[rc.Chunk.SourceURL] = struct{}{}
		urls = append(urls, rc.Chunk.SourceURL)
	}
	return urls
}

// candidateImages gathers image candidates only from articles that actually
// contributed retrieved chunks, keeping grounding provenance precise.
func candidateImages(kept []*models.Article, sourceURLs []string) []string {
	retrievedSet := make(map[string]struct{}, len(sourceURLs))
	for _, u := range sourceURLs {
		retrievedSet[u] = struct{}{}
	}

	seen := make(map[string]struct{})
	var images []string
	for _, article := range kept {
		if _, ok := retrievedSet[article.URL]; !ok {
			continue
		}
		for _, img := range article.ImageURLs {
			if _, dup := seen[img]; dup {
				continue
			}
			seen[img] = struct{}{}
			images = append(images, img)
		}
	}
	return images
}
