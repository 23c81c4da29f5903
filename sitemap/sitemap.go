// Package sitemap discovers the set of countries the source publishes
// by parsing its sitemap XML. Country URLs are classified by page type
// and collected into a persistent index keyed by slug.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// CountryURLs groups the known page types for one country. Paths are
// site-relative.
type CountryURLs struct {
	Main       string   `json:"main,omitempty"`
	Factsheet  string   `json:"factsheet,omitempty"`
	Images     string   `json:"images,omitempty"`
	Flag       string   `json:"flag,omitempty"`
	Map        string   `json:"map,omitempty"`
	LocatorMap string   `json:"locator_map,omitempty"`
	Other      []string `json:"other,omitempty"`
}

// CountryInfo is one entry of the countries index.
type CountryInfo struct {
	Slug string      `json:"slug"`
	URLs CountryURLs `json:"urls"`
}

// Metadata describes how and when the index was built.
type Metadata struct {
	ScrapedAt      string         `json:"scraped_at"`
	SitemapURL     string         `json:"sitemap_url"`
	TotalCountries int            `json:"total_countries"`
	TotalURLs      int            `json:"total_urls"`
	URLTypes       map[string]int `json:"url_types"`
}

// Index is the persisted discovery output, sorted by slug.
type Index struct {
	Metadata  Metadata      `json:"metadata"`
	Countries []CountryInfo `json:"countries"`
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// ParseXML extracts every location from a sitemap document. Both the
// urlset and sitemapindex forms are handled.
func ParseXML(content []byte) ([]string, error) {
	var set urlSet
	if err := xml.Unmarshal(content, &set); err == nil && len(set.URLs) > 0 {
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if u.Loc != "" {
				urls = append(urls, strings.TrimSpace(u.Loc))
			}
		}
		return urls, nil
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(content, &idx); err != nil {
		return nil, fmt.Errorf("sitemap: parse xml: %w", err)
	}
	urls := make([]string, 0, len(idx.Sitemaps))
	for _, s := range idx.Sitemaps {
		if s.Loc != "" {
			urls = append(urls, strings.TrimSpace(s.Loc))
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("sitemap: no locations found in document")
	}
	return urls, nil
}

var (
	countryPattern = regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)(?:/.*)?$`)

	typePatterns = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"main", regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)/?$`)},
		{"factsheet", regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)/factsheets?/?$`)},
		{"images", regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)/images?/?$`)},
		{"flag", regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)/flag/?$`)},
		{"map", regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)/map/?$`)},
		{"locator_map", regexp.MustCompile(`^/the-world-factbook/countries/([^/]+)/locator-map/?$`)},
	}
)

// ExtractCountries filters country pages out of the URL list and
// classifies each by page type.
func ExtractCountries(urls []string) map[string]*CountryURLs {
	countries := make(map[string]*CountryURLs)
	for _, raw := range urls {
		path := raw
		if strings.HasPrefix(raw, "http") {
			if u, err := url.Parse(raw); err == nil {
				path = u.Path
			}
		}
		m := countryPattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		slug := m[1]
		c, ok := countries[slug]
		if !ok {
			c = &CountryURLs{}
			countries[slug] = c
		}
		if !classify(c, path, slug) && !contains(c.Other, path) {
			c.Other = append(c.Other, path)
		}
	}
	return countries
}

func classify(c *CountryURLs, path, slug string) bool {
	for _, tp := range typePatterns {
		m := tp.pattern.FindStringSubmatch(path)
		if m == nil || m[1] != slug {
			continue
		}
		switch tp.name {
		case "main":
			c.Main = path
		case "factsheet":
			c.Factsheet = path
		case "images":
			c.Images = path
		case "flag":
			c.Flag = path
		case "map":
			c.Map = path
		case "locator_map":
			c.LocatorMap = path
		}
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BuildIndex assembles the persisted index from classified countries.
func BuildIndex(countries map[string]*CountryURLs, sitemapURL string, now time.Time) *Index {
	idx := &Index{
		Metadata: Metadata{
			ScrapedAt:      now.UTC().Format(time.RFC3339),
			SitemapURL:     sitemapURL,
			TotalCountries: len(countries),
			URLTypes:       make(map[string]int),
		},
	}
	slugs := make([]string, 0, len(countries))
	for slug := range countries {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		c := countries[slug]
		idx.Countries = append(idx.Countries, CountryInfo{Slug: slug, URLs: *c})
		for name, present := range map[string]string{
			"main": c.Main, "factsheet": c.Factsheet, "images": c.Images,
			"flag": c.Flag, "map": c.Map, "locator_map": c.LocatorMap,
		} {
			if present != "" {
				idx.Metadata.URLTypes[name]++
				idx.Metadata.TotalURLs++
			}
		}
		idx.Metadata.URLTypes["other"] += len(c.Other)
		idx.Metadata.TotalURLs += len(c.Other)
	}
	return idx
}

// PageDataURL maps a site path to its static page-data document, the
// JSON the site's build system serves alongside each page.
func PageDataURL(baseURL, path string) string {
	base := strings.TrimSuffix(baseURL, "/")
	p := strings.Trim(path, "/")
	return base + "/page-data/" + p + "/page-data.json"
}
