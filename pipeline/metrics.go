package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaignkit",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by terminal outcome.",
	}, []string{"outcome"})

	articlesScrapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campaignkit",
		Subsystem: "pipeline",
		Name:      "articles_scraped_total",
		Help:      "Articles successfully scraped across all runs.",
	})

	articlesKeptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campaignkit",
		Subsystem: "pipeline",
		Name:      "articles_kept_total",
		Help:      "Articles that passed relevance filtering across all runs.",
	})
)
