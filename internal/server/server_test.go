package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/relieflaunch/campaignkit/models"
	"github.com/relieflaunch/campaignkit/pipeline"
	"github.com/relieflaunch/campaignkit/tools/embedding"
)

type fakeFeed struct {
	events []models.DisasterEvent
	err    error
}

func (f *fakeFeed) FetchEvents(context.Context) ([]models.DisasterEvent, error) {
	return f.events, f.err
}

func TestEventsHandler(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{events: []models.DisasterEvent{
		{EventType: "FL", Country: "Mozambique", AlertLevel: "Orange"},
		{EventType: "EQ", Country: "Japan", AlertLevel: "Green"},
	}}
	e := echo.New()
	h := &EventsHandler{Feed: feed}
	h.Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Events []models.DisasterEvent `json:"events"`
		Count  int                    `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count != 2 || len(body.Events) != 2 {
		t.Fatalf("count = %d, events = %d, want 2/2", body.Count, len(body.Events))
	}
	if body.Events[0].Country != "Mozambique" {
		t.Errorf("first event country = %q", body.Events[0].Country)
	}
}

func TestEventsHandlerFeedDown(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := &EventsHandler{Feed: &fakeFeed{err: errors.New("feed unavailable")}}
	h.Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

// Pipeline fakes sufficient for one successful end-to-end request.

type stubSearcher struct{ url string }

func (s *stubSearcher) Search(context.Context, string, int) ([]models.SearchResult, error) {
	return []models.SearchResult{{Title: "Flood coverage", URL: s.url, Source: "Example News"}}, nil
}

func (s *stubSearcher) ResolveURL(_ context.Context, raw string) string { return raw }

type stubScraper struct{ url string }

func (s *stubScraper) Scrape(_ context.Context, url string) (*models.Article, error) {
	if url != s.url {
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	return &models.Article{
		URL:   url,
		Title: "Flooding in Mozambique",
		Text:  "Severe flooding has affected Mozambique.",
	}, nil
}

type stubProvider struct{ response string }

func (p *stubProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

func (p *stubProvider) GenerateStructured(context.Context, string, string, json.RawMessage) (string, error) {
	return p.response, nil
}

func stubPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	url := "https://example.com/a"
	kit := models.CampaignKit{
		Title:           "Help Flood Survivors",
		Location:        "Mozambique",
		EventType:       "flood",
		Summary:         "Severe flooding has displaced thousands.",
		KeyClaims:       []models.KeyClaim{{Claim: "thousands displaced", SourceURL: url}},
		ConfidenceScore: 0.9,
	}
	response, err := json.Marshal(kit)
	if err != nil {
		t.Fatalf("marshalling kit: %v", err)
	}

	logger := log.New(os.Stderr, "[TEST] ", 0)
	provider := &stubProvider{response: string(response)}
	return pipeline.New(
		&stubSearcher{url: url},
		&stubScraper{url: url},
		pipeline.NewRetriever(embedding.NewEmbedding(provider)),
		pipeline.NewGenerator(provider, logger),
		5, 5,
		logger,
	)
}

func campaignRequestBody() *strings.Reader {
	return strings.NewReader(`{"event_type":"FL","country":"Mozambique","max_articles":1}`)
}

func TestCampaignsGenerate(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := &CampaignsHandler{Pipeline: stubPipeline(t), Logger: log.New(os.Stderr, "[TEST] ", 0)}
	h.Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", campaignRequestBody())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var kit models.CampaignKit
	if err := json.Unmarshal(rec.Body.Bytes(), &kit); err != nil {
		t.Fatalf("decoding kit: %v", err)
	}
	if kit.Location != "Mozambique" || len(kit.KeyClaims) != 1 {
		t.Errorf("unexpected kit: %+v", kit)
	}
}

func TestCampaignsGenerateBadInput(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := &CampaignsHandler{Pipeline: stubPipeline(t), Logger: log.New(os.Stderr, "[TEST] ", 0)}
	h.Register(e.Group("/api"))

	// No event name and no country.
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", strings.NewReader(`{"event_type":"FL"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCampaignsStream(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := &CampaignsHandler{Pipeline: stubPipeline(t), Logger: log.New(os.Stderr, "[TEST] ", 0)}
	h.Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/stream", campaignRequestBody())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	var events []pipeline.Event
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev pipeline.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decoding frame %q: %v", line, err)
		}
		events = append(events, ev)
	}

	if len(events) < 3 {
		t.Fatalf("got %d events, want at least status, article and done", len(events))
	}
	if events[0].Type != pipeline.EventStatus {
		t.Errorf("first event type = %q, want status", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != pipeline.EventDone {
		t.Fatalf("last event type = %q, want done", last.Type)
	}
	if last.Kit == nil || last.Kit.Location != "Mozambique" {
		t.Errorf("done event kit = %+v", last.Kit)
	}
	for _, ev := range events {
		if ev.Type == pipeline.EventError {
			t.Errorf("unexpected error event: %+v", ev)
		}
	}
}

func TestCampaignErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing subject", pipeline.ErrMissingSubject, http.StatusBadRequest},
		{"invalid date", fmt.Errorf("%w: nope", pipeline.ErrInvalidDate), http.StatusBadRequest},
		{"no articles", pipeline.ErrNoArticles, http.StatusNotFound},
		{"no usable articles", pipeline.ErrNoUsableArticles, http.StatusNotFound},
		{"grounding violation", &pipeline.GroundingError{BadURLs: []string{"https://x.example"}}, http.StatusUnprocessableEntity},
		{"anything else", errors.New("provider exploded"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var httpErr *echo.HTTPError
			if !errors.As(campaignError(tt.err), &httpErr) {
				t.Fatal("campaignError() did not return an *echo.HTTPError")
			}
			if httpErr.Code != tt.want {
				t.Errorf("status = %d, want %d", httpErr.Code, tt.want)
			}
		})
	}
}
