package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-newsapi/pkg/httpclient"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"golang.org/x/time/rate"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	scrapeTimeout    = 15 * time.Second
)

// Scraper fills missing article metadata from the article page's OG tags.
type Scraper struct {
	client  httpclient.Client
	limiter *rate.Limiter
	headers map[string]string
}

// NewScraper builds a scraper issuing at most one page fetch per delay.
func NewScraper(client httpclient.Client, delay time.Duration) *Scraper {
	if client == nil {
		client = httpclient.NewRestyClient(scrapeTimeout)
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Scraper{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		headers: map[string]string{
			"User-Agent": "samvad-newsapi/1.0 (+https://github.com/samvad-hq/samvad-newsapi)",
			"Accept":     "text/html,application/xhtml+xml",
		},
	}
}

// Enrich returns a copy of art with description and urlToImage filled in when the
// upstream record left them empty. Fields already present are never overwritten.
func (s *Scraper) Enrich(ctx context.Context, art newsapi.Article) (newsapi.Article, error) {
	if !needsEnrichment(art) {
		return art, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return art, err
	}

	resp, err := s.client.Get(ctx, art.URL(), nil, s.headers)
	if err != nil {
		return art, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != 200 {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return art, fmt.Errorf("status %d body: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	meta, err := parseMeta(body)
	if err != nil {
		return art, err
	}

	out := maps.Clone(art)
	fill(out, "description", meta.Description)
	fill(out, "urlToImage", meta.ImageURL)
	return out, nil
}

func needsEnrichment(art newsapi.Article) bool {
	if art.URL() == "" {
		return false
	}
	return empty(art, "description") || empty(art, "urlToImage")
}

func empty(art newsapi.Article, key string) bool {
	v, _ := art[key].(string)
	return strings.TrimSpace(v) == ""
}

func fill(art newsapi.Article, key, value string) {
	if value != "" && empty(art, key) {
		art[key] = value
	}
}

type pageMeta struct {
	Description string
	ImageURL    string
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return pageMeta{
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: firstNonEmpty(
			extract(`meta[property="og:image"]`),
			extract(`meta[name="twitter:image"]`),
		),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
