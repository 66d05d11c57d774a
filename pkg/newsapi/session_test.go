package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeBackend serves synthetic article pages and records the pages requested.
type fakeBackend struct {
	mu       sync.Mutex
	total    int
	failPage int
	failCode int
	delay    time.Duration
	pages    []int
	auth     []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	b.mu.Lock()
	b.pages = append(b.pages, page)
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	delay := b.delay
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if page == b.failPage {
		w.WriteHeader(b.failCode)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "code": "maximumResultsReached", "message": "upgrade required"})
		return
	}

	articles := []map[string]any{}
	for i := (page - 1) * size; i < page*size && i < b.total; i++ {
		articles = append(articles, map[string]any{"title": fmt.Sprintf("article-%d", i)})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "totalResults": b.total, "articles": articles})
}

func (b *fakeBackend) requestedPages() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.pages...)
}

func newTestSession(t *testing.T, backend http.Handler, opts Options) *Session {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	opts.BaseURL = srv.URL
	s, err := NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSessionMissingCredential(t *testing.T) {
	t.Setenv(EnvAPIKeyVar, "")
	if _, err := NewSession(Options{}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestNewSessionReadsEnvironmentKey(t *testing.T) {
	t.Setenv(EnvAPIKeyVar, "from-env")
	s, err := NewSession(Options{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()
	if s.auth.Key() != "from-env" {
		t.Fatalf("key = %q", s.auth.Key())
	}
}

func TestSessionPaginatesInOrder(t *testing.T) {
	backend := &fakeBackend{total: 45}
	s := newTestSession(t, backend, Options{})

	seq, err := s.Everything(context.Background(), EverythingParams{Q: "go"})
	if err != nil {
		t.Fatalf("Everything: %v", err)
	}
	articles, err := Collect(seq)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(articles) != 45 {
		t.Fatalf("expected 45 articles, got %d", len(articles))
	}
	for i, a := range articles {
		if want := fmt.Sprintf("article-%d", i); a.Title() != want {
			t.Fatalf("article %d title = %q, want %q", i, a.Title(), want)
		}
	}
	if pages := backend.requestedPages(); fmt.Sprint(pages) != "[1 2 3]" {
		t.Fatalf("requested pages = %v", pages)
	}
	if backend.auth[0] != "Basic test-key" { // not base64 encoded
		t.Fatalf("Authorization = %q", backend.auth[0])
	}
}

func TestSessionPaginationLimitEndsGracefully(t *testing.T) {
	backend := &fakeBackend{total: 100, failPage: 2, failCode: http.StatusUpgradeRequired}
	obs := &recordingObserver{}
	s := newTestSession(t, backend, Options{Observer: obs})

	seq, err := s.TopHeadlines(context.Background(), TopHeadlinesParams{Country: "us"})
	if err != nil {
		t.Fatalf("TopHeadlines: %v", err)
	}
	articles, err := Collect(seq)
	if err != nil {
		t.Fatalf("expected graceful end, got %v", err)
	}
	if len(articles) != DefaultPageSize {
		t.Fatalf("expected only page-1 articles, got %d", len(articles))
	}
	if obs.limitHits() != 1 {
		t.Fatalf("expected one pagination-limit event, got %d", obs.limitHits())
	}
}

func TestSessionHTTPErrorPropagatesAfterFetchedItems(t *testing.T) {
	backend := &fakeBackend{total: 100, failPage: 2, failCode: http.StatusInternalServerError}
	s := newTestSession(t, backend, Options{})

	seq, err := s.TopHeadlines(context.Background(), TopHeadlinesParams{Q: "x"})
	if err != nil {
		t.Fatalf("TopHeadlines: %v", err)
	}
	articles, err := Collect(seq)
	if len(articles) != DefaultPageSize {
		t.Fatalf("expected page-1 articles before the error, got %d", len(articles))
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
	if httpErr.Message != "upgrade required" || httpErr.Code != "maximumResultsReached" {
		t.Fatalf("error body not decoded: %+v", httpErr)
	}
}

func TestSessionValidationFailsBeforeRequest(t *testing.T) {
	backend := &fakeBackend{total: 1}
	s := newTestSession(t, backend, Options{})

	if _, err := s.TopHeadlines(context.Background(), TopHeadlinesParams{Sources: "a", Country: "us"}); !errors.Is(err, ErrMutualExclusion) {
		t.Fatalf("expected ErrMutualExclusion, got %v", err)
	}
	if _, err := s.Everything(context.Background(), EverythingParams{}); !errors.Is(err, ErrMissingRequiredParameter) {
		t.Fatalf("expected ErrMissingRequiredParameter, got %v", err)
	}
	if pages := backend.requestedPages(); len(pages) != 0 {
		t.Fatalf("expected no requests, got %v", pages)
	}
}

func TestSessionTimeoutDoesNotPoisonSession(t *testing.T) {
	backend := &fakeBackend{total: 1, delay: 200 * time.Millisecond}
	s := newTestSession(t, backend, Options{})

	_, err := s.TopHeadlinesPage(context.Background(), TopHeadlinesParams{Q: "x"}, 1, WithTimeout(20*time.Millisecond))
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}

	backend.mu.Lock()
	backend.delay = 0
	backend.mu.Unlock()
	page, err := s.TopHeadlinesPage(context.Background(), TopHeadlinesParams{Q: "x"}, 1)
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("follow-up call failed: %v", err)
	}
}

func TestSessionCallerDeadlineIsRequestTimeout(t *testing.T) {
	backend := &fakeBackend{total: 1, delay: 300 * time.Millisecond}
	s := newTestSession(t, backend, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.TopHeadlinesPage(ctx, TopHeadlinesParams{Q: "x"}, 1)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline cause to be kept, got %v", err)
	}
}

func TestSessionStopsWhenConsumerBreaks(t *testing.T) {
	backend := &fakeBackend{total: 100}
	s := newTestSession(t, backend, Options{})

	seq, err := s.Everything(context.Background(), EverythingParams{Q: "go", PageSize: 10})
	if err != nil {
		t.Fatalf("Everything: %v", err)
	}
	n := 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		n++
		if n == 3 {
			break
		}
	}
	if pages := backend.requestedPages(); len(pages) != 1 {
		t.Fatalf("expected a single request, got %v", pages)
	}
}

func TestSessionClosedRejectsCalls(t *testing.T) {
	s := newTestSession(t, &fakeBackend{total: 1}, Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.TopHeadlines(context.Background(), TopHeadlinesParams{Q: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.TopHeadlinesPage(context.Background(), TopHeadlinesParams{Q: "x"}, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSessionSources(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != string(EndpointSources) {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "science" {
			t.Fatalf("category = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"sources": []map[string]any{{"id": "a"}, {"id": "b"}},
		})
	})
	s := newTestSession(t, srv, Options{})

	seq, err := s.Sources(context.Background(), SourcesParams{Category: "science"})
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	sources, err := Collect(seq)
	if err != nil || len(sources) != 2 || sources[1].ID() != "b" {
		t.Fatalf("unexpected sources %v, %v", sources, err)
	}
}

func TestSessionRateLimitSpacesRequests(t *testing.T) {
	backend := &fakeBackend{total: 1}
	s := newTestSession(t, backend, Options{RequestsPerSecond: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := s.TopHeadlinesPage(context.Background(), TopHeadlinesParams{Q: "x"}, 1); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("expected throttled requests, took %s", elapsed)
	}
}

func TestSessionRateLimitWaitPastDeadlineIsRequestTimeout(t *testing.T) {
	backend := &fakeBackend{total: 1}
	s := newTestSession(t, backend, Options{RequestsPerSecond: 0.1})

	if _, err := s.TopHeadlinesPage(context.Background(), TopHeadlinesParams{Q: "x"}, 1); err != nil {
		t.Fatalf("first request: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.TopHeadlinesPage(ctx, TopHeadlinesParams{Q: "x"}, 1)
	if !errors.Is(err, ErrRequestTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
	if pages := backend.requestedPages(); len(pages) != 1 {
		t.Fatalf("throttled request must not reach the backend, got %v", pages)
	}
}
