// Package queries loads the saved stream queries a harvester runs.
package queries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-newsapi/pkg/newsapi"
	"gopkg.in/yaml.v3"
)

// Endpoint names accepted in a queries file.
const (
	EndpointTopHeadlines = "top-headlines"
	EndpointEverything   = "everything"
)

// Query is one saved, already validated stream query.
type Query struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Endpoint        string         `json:"endpoint" yaml:"endpoint"`
	IntervalSeconds int            `json:"interval_seconds" yaml:"interval_seconds"`
	Params          map[string]any `json:"params" yaml:"params"`

	topHeadlines newsapi.TopHeadlinesParams
	everything   newsapi.EverythingParams
}

type registry struct {
	Queries []Query `json:"queries" yaml:"queries"`
}

// Load reads and validates the queries file at path.
func Load(path string) ([]Query, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("queries file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes raw as YAML or JSON (picked by ext when set) and validates every entry.
func Parse(raw []byte, ext string) ([]Query, error) {
	reg, err := parseRegistry(raw, ext)
	if err != nil {
		return nil, err
	}
	if len(reg.Queries) == 0 {
		return nil, errors.New("queries file contains no queries entries")
	}

	seen := make(map[string]struct{}, len(reg.Queries))
	out := make([]Query, 0, len(reg.Queries))
	for i := range reg.Queries {
		q := sanitizeQuery(reg.Queries[i])
		if err := q.compile(); err != nil {
			return nil, fmt.Errorf("query[%d]: %w", i, err)
		}
		if _, exists := seen[q.ID]; exists {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var errs []error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registry
		if err := d.fn(data, &reg); err != nil {
			errs = append(errs, fmt.Errorf("decode %s queries: %w", d.name, err))
			continue
		}
		return reg, nil
	}
	if len(errs) == 0 {
		return registry{}, fmt.Errorf("queries file extension %q not recognized (expected YAML or JSON)", ext)
	}
	return registry{}, errors.Join(errs...)
}

type unmarshalFn func([]byte, any) error

func sanitizeQuery(q Query) Query {
	q.ID = strings.TrimSpace(q.ID)
	q.Name = strings.TrimSpace(q.Name)
	q.Endpoint = strings.ToLower(strings.TrimSpace(q.Endpoint))
	if q.Name == "" {
		q.Name = q.ID
	}
	if q.Params == nil {
		q.Params = map[string]any{}
	}
	return q
}

// compile decodes Params into the typed endpoint parameters and validates them
// against page 1, so a bad file fails at startup rather than on the first poll.
func (q *Query) compile() error {
	if q.ID == "" {
		return errors.New("id is required")
	}
	if q.IntervalSeconds < 0 {
		return fmt.Errorf("interval_seconds must not be negative for query %q", q.ID)
	}

	switch q.Endpoint {
	case EndpointTopHeadlines:
		p, err := newsapi.DecodeTopHeadlinesParams(q.Params)
		if err != nil {
			return fmt.Errorf("query %q: %w", q.ID, err)
		}
		if _, err := p.Payload(1); err != nil {
			return fmt.Errorf("query %q: %w", q.ID, err)
		}
		q.topHeadlines = p
	case EndpointEverything:
		p, err := newsapi.DecodeEverythingParams(q.Params)
		if err != nil {
			return fmt.Errorf("query %q: %w", q.ID, err)
		}
		if _, err := p.Payload(1); err != nil {
			return fmt.Errorf("query %q: %w", q.ID, err)
		}
		q.everything = p
	case "":
		return fmt.Errorf("endpoint is required for query %q", q.ID)
	default:
		return fmt.Errorf("unsupported endpoint %q for query %q", q.Endpoint, q.ID)
	}
	return nil
}

// Interval returns the per-query polling interval, or fallback when unset.
func (q Query) Interval(fallback time.Duration) time.Duration {
	if q.IntervalSeconds <= 0 {
		return fallback
	}
	return time.Duration(q.IntervalSeconds) * time.Second
}

// Open runs the query against qr, which may be a *newsapi.Session (one pass) or a
// *newsapi.Stream (unbounded).
func (q Query) Open(ctx context.Context, qr newsapi.Querier, opts ...newsapi.CallOption) (iter.Seq2[newsapi.Article, error], error) {
	switch q.Endpoint {
	case EndpointTopHeadlines:
		return qr.TopHeadlines(ctx, q.topHeadlines, opts...)
	case EndpointEverything:
		return qr.Everything(ctx, q.everything, opts...)
	default:
		return nil, fmt.Errorf("unsupported endpoint %q for query %q", q.Endpoint, q.ID)
	}
}
