// CLAUDE:SUMMARY Nested YAML configuration (site, scrape, refine, catalog, paths) with defaults and a file loader.
// Package config loads the factharvest YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all factharvest configuration.
type Config struct {
	// BaseURL is the site root, e.g. https://www.cia.gov.
	BaseURL string `yaml:"base_url"`
	// SitemapURL is the sitemap index used for country discovery.
	SitemapURL string `yaml:"sitemap_url"`
	// CategoryURL is the launchpad-category page-data endpoint. The URL
	// hash changes with site rebuilds; override it when discovery fails.
	CategoryURL string `yaml:"category_url"`

	Scrape  ScrapeConfig  `yaml:"scrape"`
	Refine  RefineConfig  `yaml:"refine"`
	Catalog CatalogConfig `yaml:"catalog"`
	Server  ServerConfig  `yaml:"server"`
	Paths   PathsConfig   `yaml:"paths"`
}

// ScrapeConfig controls the HTTP fetch stage.
type ScrapeConfig struct {
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
	UserAgent      string        `yaml:"user_agent"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// RefineConfig controls multi-value splitting.
type RefineConfig struct {
	// Marker is the literal line-break token, matched case-insensitively.
	Marker string `yaml:"marker"`
	// MaxYearValueLen caps the value length for year annotation;
	// longer values are treated as descriptive prose.
	MaxYearValueLen int `yaml:"max_year_value_len"`
}

// CatalogConfig controls coverage-band classification.
type CatalogConfig struct {
	UniversalThreshold float64 `yaml:"universal_threshold"`
	CommonThreshold    float64 `yaml:"common_threshold"`
}

// ServerConfig controls the read-only HTTP/MCP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// PathsConfig controls the on-disk layout.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	HistoryDB string `yaml:"history_db"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.cia.gov"
	}
	if c.SitemapURL == "" {
		c.SitemapURL = c.BaseURL + "/the-world-factbook/sitemap.xml"
	}
	if c.Scrape.RetryAttempts <= 0 {
		c.Scrape.RetryAttempts = 3
	}
	if c.Scrape.RetryDelay <= 0 {
		c.Scrape.RetryDelay = 2 * time.Second
	}
	if c.Scrape.RequestTimeout <= 0 {
		c.Scrape.RequestTimeout = 30 * time.Second
	}
	if c.Scrape.RateLimitDelay <= 0 {
		c.Scrape.RateLimitDelay = time.Second
	}
	if c.Scrape.UserAgent == "" {
		c.Scrape.UserAgent = "factharvest/1.0"
	}
	if c.Scrape.MaxBodyBytes <= 0 {
		c.Scrape.MaxBodyBytes = 10 * 1024 * 1024
	}
	if c.Refine.Marker == "" {
		c.Refine.Marker = "<br>"
	}
	if c.Refine.MaxYearValueLen <= 0 {
		c.Refine.MaxYearValueLen = 120
	}
	if c.Catalog.UniversalThreshold <= 0 {
		c.Catalog.UniversalThreshold = 0.95
	}
	if c.Catalog.CommonThreshold <= 0 {
		c.Catalog.CommonThreshold = 0.50
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.HistoryDB == "" {
		c.Paths.HistoryDB = "data/history.db"
	}
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// Load reads a YAML config file and applies defaults. A missing file is
// not an error: defaults are returned so the tool runs unconfigured.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}
