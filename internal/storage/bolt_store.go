package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	recordsBucket = []byte("published")
	// expiryBucket indexes keys by expiry: 8-byte big-endian unix millis followed by the key.
	expiryBucket = []byte("published_by_expiry")
)

var errBucketMissing = errors.New("published buckets missing")

// boltStore keeps published records in a local bbolt file. Expired records stay
// invisible to Published and are deleted by a background sweep that lives as long
// as the store.
type boltStore struct {
	db      *bolt.DB
	ttl     time.Duration
	now     func() time.Time
	onSweep func(int, error)

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func openBolt(path string, opts Options) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, expiryBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	b := &boltStore{
		db:      db,
		ttl:     opts.TTL,
		now:     opts.now,
		onSweep: opts.OnSweep,
		stop:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.sweepLoop(opts.CleanupInterval)
	return b, nil
}

// Close stops the sweeper and closes the database. It is safe to call more than once.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	b.closeOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()
		b.closeErr = b.db.Close()
	})
	return b.closeErr
}

// Published reports whether key holds a live record.
func (b *boltStore) Published(ctx context.Context, key string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var live bool
	err := b.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(recordsBucket)
		if records == nil {
			return errBucketMissing
		}
		rec, ok := decodeRecord(records.Get([]byte(key)))
		live = ok && rec.live(b.now())
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read published %q: %w", key, err)
	}
	return live, nil
}

// MarkPublished stores a fresh record for key and moves its expiry index entry.
func (b *boltStore) MarkPublished(ctx context.Context, key string) error {
	if b == nil || b.db == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := newRecord(b.now(), b.ttl)
	err := b.db.Update(func(tx *bolt.Tx) error {
		records, index := tx.Bucket(recordsBucket), tx.Bucket(expiryBucket)
		if records == nil || index == nil {
			return errBucketMissing
		}
		k := []byte(key)
		if old, ok := decodeRecord(records.Get(k)); ok {
			if err := index.Delete(expiryKey(old.ExpiresAt, k)); err != nil {
				return err
			}
		}
		if err := records.Put(k, rec.encode()); err != nil {
			return err
		}
		return index.Put(expiryKey(rec.ExpiresAt, k), nil)
	})
	if err != nil {
		return fmt.Errorf("mark published %q: %w", key, err)
	}
	return nil
}

// Sweep deletes every record that expired at or before the store clock's now and
// returns how many were removed. Only the expired prefix of the index is visited.
func (b *boltStore) Sweep(ctx context.Context) (int, error) {
	now := b.now()
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		records, index := tx.Bucket(recordsBucket), tx.Bucket(expiryBucket)
		if records == nil || index == nil {
			return errBucketMissing
		}

		var expired [][]byte
		c := index.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			at, _, ok := splitExpiryKey(k)
			if !ok {
				expired = append(expired, bytes.Clone(k))
				continue
			}
			if at.After(now) {
				break
			}
			expired = append(expired, bytes.Clone(k))
		}

		for _, k := range expired {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := index.Delete(k); err != nil {
				return err
			}
			at, key, ok := splitExpiryKey(k)
			if !ok {
				continue
			}
			// A later MarkPublished moves the index entry, so only delete the record
			// this entry still describes.
			if rec, ok := decodeRecord(records.Get(key)); ok && rec.ExpiresAt.Equal(at) {
				if err := records.Delete(key); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	return removed, nil
}

func (b *boltStore) sweepLoop(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-b.stop
		cancel()
	}()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			removed, err := b.Sweep(ctx)
			if b.onSweep != nil {
				b.onSweep(removed, err)
			}
		}
	}
}

func expiryKey(at time.Time, key []byte) []byte {
	buf := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(buf[:8], uint64(at.UnixMilli()))
	copy(buf[8:], key)
	return buf
}

func splitExpiryKey(k []byte) (time.Time, []byte, bool) {
	if len(k) < 8 {
		return time.Time{}, nil, false
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(k[:8]))), k[8:], true
}
