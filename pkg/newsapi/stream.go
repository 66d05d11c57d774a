package newsapi

import (
	"context"
	"io"
	"iter"
	"sync/atomic"
	"time"
)

// DefaultStreamInterval is the pause between two polling cycles.
const DefaultStreamInterval = 60 * time.Second

// Querier is the paginated query surface a Stream polls. *Session implements it.
type Querier interface {
	TopHeadlines(ctx context.Context, p TopHeadlinesParams, opts ...CallOption) (iter.Seq2[Article, error], error)
	Everything(ctx context.Context, p EverythingParams, opts ...CallOption) (iter.Seq2[Article, error], error)
}

// StreamOptions configures a Stream.
type StreamOptions struct {
	Interval   time.Duration
	WindowSize int
	Observer   Observer
}

// Stream re-runs a paginated query forever, waiting Interval between cycles and
// suppressing articles whose title was already emitted by the same call.
type Stream struct {
	querier    Querier
	owned      io.Closer
	interval   time.Duration
	windowSize int
	obs        Observer
	closed     atomic.Bool
	done       chan struct{}
}

// NewStream wraps q. The stream does not take ownership of q.
func NewStream(q Querier, opts StreamOptions) *Stream {
	if opts.Interval <= 0 {
		opts.Interval = DefaultStreamInterval
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	return &Stream{
		querier:    q,
		interval:   opts.Interval,
		windowSize: opts.WindowSize,
		obs:        ensureObserver(opts.Observer),
		done:       make(chan struct{}),
	}
}

// OpenStream creates a session owned by the returned stream; Close releases it.
func OpenStream(sessionOpts Options, opts StreamOptions) (*Stream, error) {
	if opts.Observer == nil {
		opts.Observer = sessionOpts.Observer
	}
	session, err := NewSession(sessionOpts)
	if err != nil {
		return nil, err
	}
	s := NewStream(session, opts)
	s.owned = session
	return s, nil
}

// Close stops future cycles, wakes calls that are waiting between cycles and
// releases an owned session.
func (s *Stream) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.done != nil {
		close(s.done)
	}
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

// TopHeadlines validates p and returns the unbounded, de-duplicated article sequence.
func (s *Stream) TopHeadlines(ctx context.Context, p TopHeadlinesParams, opts ...CallOption) (iter.Seq2[Article, error], error) {
	return s.poll(ctx, EndpointTopHeadlines, func(ctx context.Context) (iter.Seq2[Article, error], error) {
		return s.querier.TopHeadlines(ctx, p, opts...)
	})
}

// Everything validates p and returns the unbounded, de-duplicated article sequence.
func (s *Stream) Everything(ctx context.Context, p EverythingParams, opts ...CallOption) (iter.Seq2[Article, error], error) {
	return s.poll(ctx, EndpointEverything, func(ctx context.Context) (iter.Seq2[Article, error], error) {
		return s.querier.Everything(ctx, p, opts...)
	})
}

type queryFunc func(ctx context.Context) (iter.Seq2[Article, error], error)

// poll alternates between draining one paginated sequence and waiting. A fatal error
// from the paginator ends the stream; it is never retried in the next cycle. The
// window belongs to this call and survives across its cycles.
func (s *Stream) poll(ctx context.Context, endpoint Endpoint, query queryFunc) (iter.Seq2[Article, error], error) {
	if s == nil || s.querier == nil {
		return nil, ErrClosed
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	seq, err := query(ctx)
	if err != nil {
		return nil, err
	}
	window, err := NewRecencyWindow(s.windowSize)
	if err != nil {
		return nil, err
	}

	return func(yield func(Article, error) bool) {
		for {
			emitted, suppressed := 0, 0
			for article, err := range seq {
				if err != nil {
					yield(nil, err)
					return
				}
				key := article.Title()
				if window.Observe(key) {
					suppressed++
					s.obs.DuplicateSuppressed(endpoint, key)
					continue
				}
				emitted++
				if !yield(article, nil) {
					return
				}
			}
			s.obs.CycleCompleted(endpoint, emitted, suppressed)

			if err := s.wait(ctx); err != nil {
				yield(nil, err)
				return
			}
			if s.closed.Load() {
				yield(nil, ErrClosed)
				return
			}
			next, err := query(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			seq = next
		}
	}, nil
}

func (s *Stream) wait(ctx context.Context) error {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	case <-timer.C:
		return nil
	}
}
