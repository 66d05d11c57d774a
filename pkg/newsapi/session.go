package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-newsapi/pkg/httpclient"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://newsapi.org"
	defaultUserAgent = "samvad-newsapi/1.0"
)

// Options configures a Session.
type Options struct {
	// APIKey is used verbatim; when empty the NEWSAPI_KEY environment variable is read.
	APIKey  string
	BaseURL string
	// Timeout is the default per-request timeout. Zero disables it.
	Timeout time.Duration
	// RequestsPerSecond throttles requests across all calls on the session. Zero disables it.
	RequestsPerSecond float64
	UserAgent         string
	// HTTPClient overrides the transport. A session only releases transports it created.
	HTTPClient httpclient.Client
	Observer   Observer
}

// Session is the authenticated request client. It holds one transport and the
// credentials; both are read-only after construction and shared safely by concurrent calls.
type Session struct {
	auth       KeyAuth
	baseURL    string
	timeout    time.Duration
	userAgent  string
	client     httpclient.Client
	ownsClient bool
	limiter    *rate.Limiter
	obs        Observer
	closed     atomic.Bool
}

// NewSession builds a session. It fails with ErrMissingCredential when no key is available.
func NewSession(opts Options) (*Session, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		envKey, err := EnvAPIKey()
		if err != nil {
			return nil, err
		}
		key = envKey
	}
	auth, err := NewKeyAuth(key)
	if err != nil {
		return nil, err
	}
	if opts.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	s := &Session{
		auth:      auth,
		baseURL:   baseURL,
		timeout:   opts.Timeout,
		userAgent: userAgent,
		client:    opts.HTTPClient,
		obs:       ensureObserver(opts.Observer),
	}
	if s.client == nil {
		s.client = httpclient.NewRestyClient(0)
		s.ownsClient = true
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return s, nil
}

// Close releases the transport. Calls made after Close fail with ErrClosed.
func (s *Session) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !s.ownsClient {
		return nil
	}
	if c, ok := s.client.(httpclient.IdleCloser); ok {
		c.CloseIdleConnections()
	}
	return nil
}

// CallOption adjusts a single endpoint call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the session timeout for every request issued by one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

func buildCallOptions(opts []CallOption) callOptions {
	var co callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	return co
}

func (s *Session) ensureOpen() error {
	if s == nil {
		return errors.New("session is not initialized")
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// TopHeadlines validates p and returns the lazy, paginated article sequence.
func (s *Session) TopHeadlines(ctx context.Context, p TopHeadlinesParams, opts ...CallOption) (iter.Seq2[Article, error], error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if _, err := p.Payload(1); err != nil {
		return nil, err
	}
	pager := NewPaginator(EndpointTopHeadlines, p.pageSize(), func(ctx context.Context, page int) (Page[Article], error) {
		return s.TopHeadlinesPage(ctx, p, page, opts...)
	}, s.obs)
	return pager.All(ctx), nil
}

// TopHeadlinesPage fetches exactly one page of top headlines.
func (s *Session) TopHeadlinesPage(ctx context.Context, p TopHeadlinesParams, page int, opts ...CallOption) (Page[Article], error) {
	payload, err := p.Payload(page)
	if err != nil {
		return Page[Article]{}, err
	}
	return s.articles(ctx, EndpointTopHeadlines, page, payload, buildCallOptions(opts))
}

// Everything validates p and returns the lazy, paginated article sequence.
func (s *Session) Everything(ctx context.Context, p EverythingParams, opts ...CallOption) (iter.Seq2[Article, error], error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if _, err := p.Payload(1); err != nil {
		return nil, err
	}
	pager := NewPaginator(EndpointEverything, p.pageSize(), func(ctx context.Context, page int) (Page[Article], error) {
		return s.EverythingPage(ctx, p, page, opts...)
	}, s.obs)
	return pager.All(ctx), nil
}

// EverythingPage fetches exactly one page of everything results.
func (s *Session) EverythingPage(ctx context.Context, p EverythingParams, page int, opts ...CallOption) (Page[Article], error) {
	payload, err := p.Payload(page)
	if err != nil {
		return Page[Article]{}, err
	}
	return s.articles(ctx, EndpointEverything, page, payload, buildCallOptions(opts))
}

// Sources validates p and returns the publisher sequence. The endpoint is not paginated,
// so the sequence is backed by a single request issued on first pull.
func (s *Session) Sources(ctx context.Context, p SourcesParams, opts ...CallOption) (iter.Seq2[Source, error], error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	payload, err := p.Payload()
	if err != nil {
		return nil, err
	}
	co := buildCallOptions(opts)
	return func(yield func(Source, error) bool) {
		body, err := s.get(ctx, EndpointSources, 0, payload, co)
		if err != nil {
			yield(nil, err)
			return
		}
		var resp sourcesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			yield(nil, fmt.Errorf("decode sources response: %w", err))
			return
		}
		for _, src := range resp.Sources {
			if !yield(src, nil) {
				return
			}
		}
	}, nil
}

func (s *Session) articles(ctx context.Context, endpoint Endpoint, page int, payload QueryPayload, co callOptions) (Page[Article], error) {
	body, err := s.get(ctx, endpoint, page, payload, co)
	if err != nil {
		return Page[Article]{}, err
	}
	var resp articlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Page[Article]{}, fmt.Errorf("decode %s response: %w", endpoint.Name(), err)
	}
	return Page[Article]{Items: resp.Articles, TotalResults: resp.TotalResults}, nil
}

// get performs one authenticated GET and returns the body of a 2xx response.
func (s *Session) get(ctx context.Context, endpoint Endpoint, page int, payload QueryPayload, co callOptions) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			// The limiter refuses up front when the caller's deadline would pass first.
			if _, hasDeadline := ctx.Deadline(); hasDeadline && !errors.Is(err, context.Canceled) {
				return nil, timeoutError(fmt.Sprintf("wait for rate limiter on %s", endpoint.Name()), err)
			}
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	timeout := co.timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	headers := map[string]string{
		"Authorization": s.auth.Encode(),
		"User-Agent":    s.userAgent,
		"Accept":        "application/json",
	}

	start := time.Now()
	resp, err := s.client.Get(reqCtx, s.baseURL+string(endpoint), payload.Encode(), headers)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			err = timeoutError(fmt.Sprintf("get %s page %d", endpoint.Name(), page), err)
		} else {
			err = fmt.Errorf("get %s: %w", endpoint.Name(), err)
		}
		s.obs.RequestCompleted(endpoint, page, 0, elapsed, err)
		return nil, err
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		httpErr := newHTTPError(status, resp.Body())
		s.obs.RequestCompleted(endpoint, page, status, elapsed, httpErr)
		return nil, httpErr
	}
	s.obs.RequestCompleted(endpoint, page, status, elapsed, nil)
	return resp.Body(), nil
}

func newHTTPError(status int, body []byte) *HTTPError {
	httpErr := &HTTPError{Status: status}
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		httpErr.Code = resp.Code
		httpErr.Message = resp.Message
	}
	if httpErr.Message == "" {
		httpErr.Message = bodySnippet(body)
	}
	return httpErr
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
