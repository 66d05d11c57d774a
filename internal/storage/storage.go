package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Store remembers which article keys were already published, across restarts.
type Store interface {
	Close() error
	Published(ctx context.Context, key string) (bool, error)
	MarkPublished(ctx context.Context, key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	Path            string
	RedisAddr       string
	TTL             time.Duration
	CleanupInterval time.Duration
	// OnSweep is called after each background expiry sweep of the bbolt store.
	OnSweep func(removed int, err error)

	now func() time.Time
}

const (
	defaultTTL             = 5 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(opts.Path, opts)
	case "redis":
		if strings.TrimSpace(opts.RedisAddr) == "" {
			return nil, fmt.Errorf("redis storage requires an address")
		}
		return openRedis(opts.RedisAddr, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return opts
}

// record is what every store keeps for a published key. A key counts as published
// while now is before ExpiresAt, whichever backend holds it.
type record struct {
	PublishedAt time.Time
	ExpiresAt   time.Time
}

const recordBytes = 16

func newRecord(now time.Time, ttl time.Duration) record {
	return record{PublishedAt: now, ExpiresAt: now.Add(ttl)}
}

func (r record) live(now time.Time) bool { return r.ExpiresAt.After(now) }

func (r record) encode() []byte {
	buf := make([]byte, recordBytes)
	binary.BigEndian.PutUint64(buf[:8], uint64(r.PublishedAt.UnixMilli()))
	binary.BigEndian.PutUint64(buf[8:], uint64(r.ExpiresAt.UnixMilli()))
	return buf
}

func decodeRecord(b []byte) (record, bool) {
	if len(b) != recordBytes {
		return record{}, false
	}
	published := int64(binary.BigEndian.Uint64(b[:8]))
	expires := int64(binary.BigEndian.Uint64(b[8:]))
	if published <= 0 || expires <= 0 {
		return record{}, false
	}
	return record{PublishedAt: time.UnixMilli(published), ExpiresAt: time.UnixMilli(expires)}, true
}

type noopStore struct{}

func (noopStore) Close() error                                     { return nil }
func (noopStore) Published(context.Context, string) (bool, error) { return false, nil }
func (noopStore) MarkPublished(context.Context, string) error      { return nil }
