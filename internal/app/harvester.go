package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samvad-hq/samvad-newsapi/internal/config"
	"github.com/samvad-hq/samvad-newsapi/internal/logger"
	"github.com/samvad-hq/samvad-newsapi/internal/metrics"
	"github.com/samvad-hq/samvad-newsapi/internal/pipeline"
	"github.com/samvad-hq/samvad-newsapi/internal/storage"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"github.com/samvad-hq/samvad-newsapi/pkg/publishers"
	"github.com/samvad-hq/samvad-newsapi/pkg/queries"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Harvester runs every saved query as its own Stream and pushes emitted articles
// through the publish pipeline.
type Harvester struct {
	cfg       *config.Config
	queries   []queries.Query
	querier   newsapi.Querier
	observer  newsapi.Observer
	processor *pipeline.Processor
	gatherer  prometheus.Gatherer
	closers   []io.Closer
	log       logger.Logger
}

// NewHarvester builds a harvester runtime from config files.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	qs, err := queries.Load(cfg.QueriesFile)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	log.InfoObj("queries loaded", "queries_meta", map[string]any{
		"count": len(ids),
		"ids":   ids,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, storage.Options{
		Path:            cfg.BBoltPath,
		RedisAddr:       cfg.RedisAddr,
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
		OnSweep: func(removed int, err error) {
			if err != nil {
				log.WarnObj("storage sweep failed", "error", err.Error())
				return
			}
			if removed > 0 {
				log.DebugObj("storage sweep", "removed", removed)
			}
		},
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	obs := newsapi.Observers(newsapi.NewLogObserver(log), m)

	session, err := newsapi.NewSession(newsapi.Options{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Observer:          obs,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create session: %w", err), store.Close(), fanout.Close())
	}

	var enricher pipeline.ArticleEnricher
	if cfg.EnrichArticles {
		enricher = pipeline.NewScraper(nil, cfg.ScrapeDelay)
	}

	h := newHarvester(cfg, qs, session, pipeline.NewProcessor(store, enricher, fanout, m, log), log)
	h.observer = obs
	h.gatherer = reg
	h.closers = []io.Closer{session, fanout, store}
	return h, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	if len(enabled) == 0 {
		log.WarnObj("no publishers enabled; articles will only be logged", "publishers_file", cfg.PublishersFile)
	}
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

func newHarvester(cfg *config.Config, qs []queries.Query, q newsapi.Querier, p *pipeline.Processor, log logger.Logger) *Harvester {
	return &Harvester{
		cfg:       cfg,
		queries:   qs,
		querier:   &limitedQuerier{q: q, sem: semaphore.NewWeighted(int64(max(cfg.MaxConcurrentQueries, 1)))},
		processor: p,
		log:       log,
	}
}

// Run streams every query until ctx is cancelled or every stream failed. Fatal
// stream errors are joined into the returned error; cancellation is a clean exit.
func (h *Harvester) Run(ctx context.Context) error {
	if h == nil || h.processor == nil {
		return fmt.Errorf("harvester is not initialized")
	}
	defer h.close()

	if len(h.queries) == 0 {
		h.log.WarnObj("no queries configured; harvester idle", "queries_file", h.cfg.QueriesFile)
		<-ctx.Done()
		return nil
	}

	h.log.InfoObj("harvester starting", "harvester_state", map[string]any{
		"queries_count":          len(h.queries),
		"max_concurrent_queries": h.cfg.MaxConcurrentQueries,
		"stream_interval":        h.cfg.StreamInterval.String(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if h.cfg.MetricsAddr != "" && h.gatherer != nil {
		g.Go(func() error {
			return metrics.Serve(gctx, h.cfg.MetricsAddr, h.gatherer)
		})
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g.Go(func() error {
		defer cancel()
		var streams sync.WaitGroup
		for _, q := range h.queries {
			streams.Add(1)
			go func(q queries.Query) {
				defer streams.Done()
				if err := h.runQuery(gctx, q); err != nil {
					h.log.ErrorObj("query stream stopped", "query_error", map[string]any{
						"query_id": q.ID,
						"error":    err.Error(),
					})
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(q)
		}
		streams.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	h.log.InfoObj("harvester exiting", "harvester_state", map[string]any{
		"failed_queries": len(errs),
	})
	return errors.Join(errs...)
}

// runQuery consumes one query's stream. It returns nil on cancellation.
func (h *Harvester) runQuery(ctx context.Context, q queries.Query) error {
	stream := newsapi.NewStream(h.querier, newsapi.StreamOptions{
		Interval:   q.Interval(h.cfg.StreamInterval),
		WindowSize: h.cfg.RecencyWindowSize,
		Observer:   h.observer,
	})
	defer stream.Close()

	seq, err := q.Open(ctx, stream)
	if err != nil {
		return fmt.Errorf("open query %q: %w", q.ID, err)
	}
	for art, err := range seq {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream query %q: %w", q.ID, err)
		}
		if _, err := h.processor.Handle(ctx, q, art); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.log.WarnObj("article processing failed", "pipeline_error", map[string]any{
				"query_id": q.ID,
				"error":    err.Error(),
			})
		}
	}
	return nil
}

func (h *Harvester) close() {
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			h.log.WarnObj("failed to close resource", "close_error", err.Error())
		}
	}
	h.closers = nil
}

// limitedQuerier bounds how many query cycles are drained at the same time. A slot
// is held from the first pull of a cycle until the cycle's sequence ends.
type limitedQuerier struct {
	q   newsapi.Querier
	sem *semaphore.Weighted
}

func (l *limitedQuerier) TopHeadlines(ctx context.Context, p newsapi.TopHeadlinesParams, opts ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	seq, err := l.q.TopHeadlines(ctx, p, opts...)
	if err != nil {
		return nil, err
	}
	return l.guard(ctx, seq), nil
}

func (l *limitedQuerier) Everything(ctx context.Context, p newsapi.EverythingParams, opts ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	seq, err := l.q.Everything(ctx, p, opts...)
	if err != nil {
		return nil, err
	}
	return l.guard(ctx, seq), nil
}

func (l *limitedQuerier) guard(ctx context.Context, seq iter.Seq2[newsapi.Article, error]) iter.Seq2[newsapi.Article, error] {
	return func(yield func(newsapi.Article, error) bool) {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			yield(nil, err)
			return
		}
		defer l.sem.Release(1)
		for art, err := range seq {
			if !yield(art, err) {
				return
			}
		}
	}
}
