package models

// DisasterEvent is one entry from the disaster event feed. It is immutable
// input to the campaign pipeline: event_type is a feed code (e.g. "FL"),
// date is an RFC-2822 style string as published by the feed.
type DisasterEvent struct {
	EventType  string  `json:"event_type"`
	Title      string  `json:"title"`
	EventName  string  `json:"event_name"`
	Country    string  `json:"country"`
	Severity   string  `json:"severity"`
	AlertLevel string  `json:"alert_level"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Date       string  `json:"date"`
	EventURL   string  `json:"event_url"`
}

// SearchResult is a single news search hit. URL may still be an aggregator
// indirection URL that needs resolving before scraping.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	PubDate string `json:"pub_date"`
}

// Article is a scraped, normalised news article. Never mutated after the
// scraper returns it. ImageURLs is an ordered best-first candidate list.
type Article struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	Authors     []string `json:"authors"`
	PublishDate string   `json:"publish_date,omitempty"`
	Source      string   `json:"source"`
	Summary     string   `json:"summary"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

// Chunk is one paragraph of an article, the unit of retrieval. Chunks from
// every article of one run share the same CampaignID; Embedding is attached
// by the embedding step and nil before it.
type Chunk struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	PublishDate string    `json:"publish_date,omitempty"`
	CampaignID  string    `json:"campaign_id"`
	Embedding   []float32 `json:"-"`
}

// RetrievedChunk pairs a chunk with its cosine similarity to the query.
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// KeyClaim is one factual statement with the URL it was drawn from. The
// pipeline guarantees SourceURL is a member of the retrieval source set.
type KeyClaim struct {
	Claim     string `json:"claim"`
	SourceURL string `json:"source_url"`
}

// CampaignKit is the generated, grounded campaign content. EventType is one
// of the fixed enum values (earthquake, flood, hurricane, wildfire, tsunami,
// other); ImageURL is either empty or a literal member of the candidate
// image list supplied to generation.
type CampaignKit struct {
	Title           string     `json:"title"`
	Location        string     `json:"location"`
	EventType       string     `json:"event_type"`
	Summary         string     `json:"summary"`
	KeyClaims       []KeyClaim `json:"key_claims"`
	ConfidenceScore float64    `json:"confidence_score"`
	ImageURL        string     `json:"image_url"`
}
