// Package pipeline moves streamed articles through persistent dedupe, optional
// enrichment and publisher fan-out.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-newsapi/internal/logger"
	"github.com/samvad-hq/samvad-newsapi/internal/storage"
	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"github.com/samvad-hq/samvad-newsapi/pkg/publishers"
	"github.com/samvad-hq/samvad-newsapi/pkg/queries"
)

// Outcome labels reported per processed article.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// ArticleEnricher fills missing metadata on an article.
type ArticleEnricher interface {
	Enrich(ctx context.Context, art newsapi.Article) (newsapi.Article, error)
}

// EventPublisher delivers events downstream and reports how many sinks accepted them.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
}

// OutcomeRecorder counts processing outcomes.
type OutcomeRecorder interface {
	ArticleProcessed(query, outcome string)
}

// Processor handles one article at a time and is safe for concurrent use when its
// collaborators are.
type Processor struct {
	store    storage.Store
	enricher ArticleEnricher
	pub      EventPublisher
	rec      OutcomeRecorder
	log      logger.Logger
}

// NewProcessor wires a processor. A nil store disables cross-restart dedupe and a nil
// enricher disables enrichment.
func NewProcessor(store storage.Store, enricher ArticleEnricher, pub EventPublisher, rec OutcomeRecorder, log logger.Logger) *Processor {
	if store == nil {
		store, _ = storage.NewStore("none", storage.Options{})
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &Processor{store: store, enricher: enricher, pub: pub, rec: rec, log: log}
}

// ArticleKey is the persistent identity of an article: a hash of its URL, or of its
// title when the URL is missing.
func ArticleKey(art newsapi.Article) string {
	id := strings.TrimSpace(art.URL())
	if id == "" {
		id = "title:" + art.Title()
	}
	sum := sha1.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Handle publishes art unless it was already published in a previous run. The
// article is marked only after at least one sink accepted it.
func (p *Processor) Handle(ctx context.Context, q queries.Query, art newsapi.Article) (string, error) {
	outcome, err := p.handle(ctx, q, art)
	if p.rec != nil {
		p.rec.ArticleProcessed(q.ID, outcome)
	}
	return outcome, err
}

func (p *Processor) handle(ctx context.Context, q queries.Query, art newsapi.Article) (string, error) {
	key := ArticleKey(art)

	seen, err := p.store.Published(ctx, key)
	if err != nil {
		// Lookup failures fall through to delivery.
		p.log.WarnObj("published lookup failed", "pipeline_store_error", map[string]any{
			"query_id": q.ID,
			"key":      key,
			"error":    err.Error(),
		})
	} else if seen {
		p.log.DebugObj("article already published", "pipeline_skip", map[string]any{
			"query_id": q.ID,
			"title":    art.Title(),
		})
		return OutcomeSkipped, nil
	}

	if p.enricher != nil {
		enriched, err := p.enricher.Enrich(ctx, art)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeFailed, ctx.Err()
			}
			p.log.WarnObj("article metadata scrape failed", "metadata_error", map[string]any{
				"query_id": q.ID,
				"url":      art.URL(),
				"error":    err.Error(),
			})
		} else {
			art = enriched
		}
	}

	evt := publishers.NewEvent(q.ID, q.Name, q.Endpoint, key, art)
	if p.pub != nil && p.pub.Size() > 0 {
		delivered, err := p.pub.Publish(ctx, evt)
		if delivered == 0 {
			return OutcomeFailed, fmt.Errorf("publish article %q: %w", art.Title(), errors.Join(err, errNoSinkAccepted))
		}
		if err != nil {
			p.log.WarnObj("article partially published", "pipeline_publish_error", map[string]any{
				"query_id":  q.ID,
				"title":     art.Title(),
				"delivered": delivered,
				"error":     err.Error(),
			})
		}
	} else {
		p.log.InfoObj("article collected", "article", evt)
	}

	if err := p.store.MarkPublished(ctx, key); err != nil {
		p.log.WarnObj("mark published failed", "pipeline_store_error", map[string]any{
			"query_id": q.ID,
			"key":      key,
			"error":    err.Error(),
		})
	}
	return OutcomePublished, nil
}

var errNoSinkAccepted = errors.New("no publisher accepted the event")
