package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the campaign kit service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Feeds    FeedsConfig    `mapstructure:"feeds"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the OpenAI provider configuration used for both
// structured generation and embeddings.
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0,2]")
	}
	return nil
}

// SearchConfig contains news search settings. Oversample is the multiplier
// applied to max_articles when requesting raw search results, compensating
// for scrape and relevance attrition.
type SearchConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Oversample int           `mapstructure:"oversample"`
}

func (s SearchConfig) Validate() error {
	if s.Oversample <= 0 {
		return fmt.Errorf("search.oversample must be > 0")
	}
	return nil
}

// ScrapeConfig contains article fetching settings. Fetcher selects the raw
// HTML fetcher implementation: "http" or "chromedp".
type ScrapeConfig struct {
	Fetcher   string        `mapstructure:"fetcher"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	MaxImages int           `mapstructure:"max_images"`
}

func (s ScrapeConfig) Validate() error {
	switch s.Fetcher {
	case "http", "chromedp":
		return nil
	default:
		return fmt.Errorf("scrape.fetcher must be http or chromedp, got %q", s.Fetcher)
	}
}

// FeedsConfig contains disaster event feed settings
type FeedsConfig struct {
	GDACSURL string        `mapstructure:"gdacs_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PipelineConfig contains campaign pipeline settings
type PipelineConfig struct {
	TopK               int `mapstructure:"top_k"`
	DefaultMaxArticles int `mapstructure:"default_max_articles"`
}

func (p PipelineConfig) Validate() error {
	if p.TopK <= 0 {
		return fmt.Errorf("pipeline.top_k must be > 0")
	}
	if p.DefaultMaxArticles < 1 || p.DefaultMaxArticles > 50 {
		return fmt.Errorf("pipeline.default_max_articles must be in [1,50]")
	}
	return nil
}

// LoadConfig loads config from file, with CAMPAIGNKIT_* environment
// variables taking precedence. A missing config file is fine: defaults plus
// environment are enough to run.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 30*time.Second)
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("search.endpoint", "https://news.google.com/rss/search")
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("search.oversample", 4)
	viper.SetDefault("scrape.fetcher", "http")
	viper.SetDefault("scrape.timeout", 15*time.Second)
	viper.SetDefault("scrape.max_chars", 20000)
	viper.SetDefault("scrape.max_images", 10)
	viper.SetDefault("feeds.gdacs_url", "https://www.gdacs.org/xml/rss.xml")
	viper.SetDefault("feeds.timeout", 15*time.Second)
	viper.SetDefault("pipeline.top_k", 5)
	viper.SetDefault("pipeline.default_max_articles", 5)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CAMPAIGNKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := config.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := config.Search.Validate(); err != nil {
		return nil, err
	}
	if err := config.Scrape.Validate(); err != nil {
		return nil, err
	}
	if err := config.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
