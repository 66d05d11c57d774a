package app

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-newsapi/internal/config"
	"github.com/samvad-hq/samvad-newsapi/internal/logger"
	"github.com/samvad-hq/samvad-newsapi/internal/pipeline"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"github.com/samvad-hq/samvad-newsapi/pkg/publishers"
	"github.com/samvad-hq/samvad-newsapi/pkg/queries"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestHarvesterPublishesStreamedArticles(t *testing.T) {
	var requests atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Basic test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"title":"A","url":"https://example.com/a"},
			{"title":"B","url":"https://example.com/b"}]}`))
	}))
	defer api.Close()

	var (
		mu     sync.Mutex
		events []publishers.Event
	)
	received := make(chan struct{}, 16)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
		received <- struct{}{}
	}))
	defer sink.Close()

	dir := t.TempDir()
	cfg := &config.Config{
		APIKey:                 "test-key",
		BaseURL:                api.URL,
		StreamInterval:         20 * time.Millisecond,
		RecencyWindowSize:      10,
		MaxConcurrentQueries:   1,
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "published.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
		QueriesFile: writeFile(t, dir, "queries.yaml", `
queries:
  - id: us
    endpoint: top-headlines
    params:
      country: us
`),
		PublishersFile: writeFile(t, dir, "publishers.yaml", `
publishers:
  - id: sink
    type: http
    http:
      url: `+sink.URL+`
`),
	}

	h, err := NewHarvester(context.Background(), cfg, logger.NopLogger())
	if err != nil {
		t.Fatalf("NewHarvester: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for article %d", i)
		}
	}
	// Let a few more cycles run: they must not republish.
	for requests.Load() < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].QueryID != "us" || events[0].Endpoint != queries.EndpointTopHeadlines {
		t.Fatalf("unexpected envelope %+v", events[0])
	}
}

func TestNewHarvesterFailsWithoutCredential(t *testing.T) {
	t.Setenv(newsapi.EnvAPIKeyVar, "")
	dir := t.TempDir()
	cfg := &config.Config{
		StorageType:       "none",
		RecencyWindowSize: 10,
		QueriesFile:       writeFile(t, dir, "q.json", `{"queries":[{"id":"a","endpoint":"everything","params":{"q":"go"}}]}`),
		PublishersFile:    writeFile(t, dir, "p.json", `{"publishers":[]}`),
	}
	_, err := NewHarvester(context.Background(), cfg, nil)
	if !errors.Is(err, newsapi.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

type failingQuerier struct{ err error }

func (f failingQuerier) TopHeadlines(context.Context, newsapi.TopHeadlinesParams, ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	return func(yield func(newsapi.Article, error) bool) { yield(nil, f.err) }, nil
}

func (f failingQuerier) Everything(context.Context, newsapi.EverythingParams, ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	return func(yield func(newsapi.Article, error) bool) { yield(nil, f.err) }, nil
}

func TestRunReportsFatalStreamErrors(t *testing.T) {
	qs, err := queries.Parse([]byte(`{"queries":[
		{"id":"a","endpoint":"everything","params":{"q":"go"}},
		{"id":"b","endpoint":"top-headlines","params":{"country":"us"}}]}`), ".json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fatal := &newsapi.HTTPError{Status: http.StatusUnauthorized, Code: "apiKeyInvalid"}
	cfg := &config.Config{StreamInterval: time.Millisecond, RecencyWindowSize: 10, MaxConcurrentQueries: 2}
	h := newHarvester(cfg, qs, failingQuerier{err: fatal}, pipeline.NewProcessor(nil, nil, nil, nil, nil), logger.NopLogger())

	err = h.Run(context.Background())
	var httpErr *newsapi.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected joined 401 error, got %v", err)
	}
}

type countingQuerier struct {
	active, peak atomic.Int32
}

func (c *countingQuerier) seq() iter.Seq2[newsapi.Article, error] {
	return func(yield func(newsapi.Article, error) bool) {
		n := c.active.Add(1)
		defer c.active.Add(-1)
		for {
			p := c.peak.Load()
			if n <= p || c.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		yield(newsapi.Article{"title": "x"}, nil)
	}
}

func (c *countingQuerier) TopHeadlines(context.Context, newsapi.TopHeadlinesParams, ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	return c.seq(), nil
}

func (c *countingQuerier) Everything(context.Context, newsapi.EverythingParams, ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	return c.seq(), nil
}

func TestLimitedQuerierBoundsConcurrentCycles(t *testing.T) {
	inner := &countingQuerier{}
	cfg := &config.Config{MaxConcurrentQueries: 1}
	h := newHarvester(cfg, nil, inner, nil, logger.NopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := h.querier.TopHeadlines(context.Background(), newsapi.TopHeadlinesParams{Country: "us"})
			if err != nil {
				t.Errorf("TopHeadlines: %v", err)
				return
			}
			for range seq {
			}
		}()
	}
	wg.Wait()
	if peak := inner.peak.Load(); peak != 1 {
		t.Fatalf("expected at most one concurrent cycle, got %d", peak)
	}
}
