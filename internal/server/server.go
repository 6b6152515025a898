package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relieflaunch/campaignkit/config"
	"github.com/relieflaunch/campaignkit/news/gdacs"
	"github.com/relieflaunch/campaignkit/pipeline"
	"github.com/relieflaunch/campaignkit/provider"
	"github.com/relieflaunch/campaignkit/tools/embedding"
	"github.com/relieflaunch/campaignkit/tools/web_fetch"
	"github.com/relieflaunch/campaignkit/tools/web_scrape"
	"github.com/relieflaunch/campaignkit/tools/web_search"
)

// Run wires the service together (top-level DI: every collaborator is
// constructed once here and injected) and serves the API.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM)
	if err != nil {
		return err
	}

	searcher, err := web_search.NewNewsSearcher(web_search.GoogleNewsProvider, cfg.Search.Endpoint, cfg.Search.Timeout)
	if err != nil {
		return err
	}

	fetcher, err := web_fetch.NewFetcher(web_fetch.FetcherType(cfg.Scrape.Fetcher), cfg.Scrape.Timeout)
	if err != nil {
		return err
	}
	scraper := web_scrape.NewScraper(fetcher, cfg.Scrape.MaxChars, cfg.Scrape.MaxImages)

	retriever := pipeline.NewRetriever(embedding.NewEmbedding(llm))
	generator := pipeline.NewGenerator(llm, log.New(log.Writer(), "[GENERATE] ", log.LstdFlags))
	pipe := pipeline.New(
		searcher,
		scraper,
		retriever,
		generator,
		cfg.Pipeline.TopK,
		cfg.Pipeline.DefaultMaxArticles,
		log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	)
	pipe.Oversample = cfg.Search.Oversample

	events := gdacs.NewClient(cfg.Feeds.GDACSURL, cfg.Feeds.Timeout)

	api := e.Group("/api")

	eh := &EventsHandler{Feed: events}
	eh.Register(api)

	ch := &CampaignsHandler{Pipeline: pipe, Logger: log.New(log.Writer(), "[CAMPAIGNS] ", log.LstdFlags)}
	ch.Register(api)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10010"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
