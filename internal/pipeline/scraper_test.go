package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/samvad-hq/samvad-newsapi/pkg/httpclient"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
)

type stubHTTPResponse struct {
	body       []byte
	statusCode int
}

func (s stubHTTPResponse) Body() []byte    { return s.body }
func (s stubHTTPResponse) StatusCode() int { return s.statusCode }

type stubHTTPClient struct {
	resp  httpclient.Response
	err   error
	calls int
}

func (s *stubHTTPClient) Get(context.Context, string, map[string]string, map[string]string) (httpclient.Response, error) {
	s.calls++
	return s.resp, s.err
}

const page = `<html><head>
<title>Page title</title>
<meta property="og:description" content=" OG description ">
<meta name="description" content="plain description">
<meta property="og:image" content="https://img.example.com/a.jpg">
</head><body></body></html>`

func TestScraperFillsMissingFields(t *testing.T) {
	client := &stubHTTPClient{resp: stubHTTPResponse{body: []byte(page), statusCode: 200}}
	s := NewScraper(client, 0)

	in := newsapi.Article{"title": "t", "url": "https://example.com/a", "description": "keep me"}
	out, err := s.Enrich(context.Background(), in)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if out["description"] != "keep me" {
		t.Fatalf("existing description overwritten: %v", out["description"])
	}
	if out["urlToImage"] != "https://img.example.com/a.jpg" {
		t.Fatalf("image not filled: %v", out["urlToImage"])
	}
	if _, ok := in["urlToImage"]; ok {
		t.Fatalf("input article mutated")
	}
}

func TestScraperSkipsCompleteArticles(t *testing.T) {
	client := &stubHTTPClient{}
	s := NewScraper(client, 0)

	in := newsapi.Article{"url": "https://example.com", "description": "d", "urlToImage": "i"}
	if _, err := s.Enrich(context.Background(), in); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no fetch, got %d", client.calls)
	}
}

func TestScraperReportsFetchErrors(t *testing.T) {
	cases := []*stubHTTPClient{
		{err: errors.New("dial")},
		{resp: stubHTTPResponse{body: []byte("gone"), statusCode: 404}},
	}
	for _, client := range cases {
		s := NewScraper(client, 0)
		in := newsapi.Article{"url": "https://example.com"}
		out, err := s.Enrich(context.Background(), in)
		if err == nil {
			t.Fatalf("expected error")
		}
		if len(out) != 1 {
			t.Fatalf("article should be returned untouched, got %v", out)
		}
	}
}

func TestParseMetaFallbacks(t *testing.T) {
	meta, err := parseMeta([]byte(`<html><head><meta name="description" content="d"><meta name="twitter:image" content="i"></head></html>`))
	if err != nil {
		t.Fatalf("parseMeta: %v", err)
	}
	if meta.Description != "d" || meta.ImageURL != "i" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
