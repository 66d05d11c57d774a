package newsapi

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultWindowSize is the number of identity keys a RecencyWindow remembers.
const DefaultWindowSize = 1000

// RecencyWindow is a bounded insertion-ordered set. Lookups never refresh an entry, so
// at capacity the oldest inserted key is evicted first.
type RecencyWindow struct {
	keys *lru.Cache[string, struct{}]
}

// NewRecencyWindow builds a window holding at most capacity keys.
func NewRecencyWindow(capacity int) (*RecencyWindow, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("recency window capacity must be positive, got %d", capacity)
	}
	keys, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("create recency window: %w", err)
	}
	return &RecencyWindow{keys: keys}, nil
}

// Seen reports whether key is in the window.
func (w *RecencyWindow) Seen(key string) bool {
	return w.keys.Contains(key)
}

// Observe inserts key unless present and reports whether it had already been seen.
func (w *RecencyWindow) Observe(key string) (seen bool) {
	seen, _ = w.keys.ContainsOrAdd(key, struct{}{})
	return seen
}

// Len returns the number of keys held.
func (w *RecencyWindow) Len() int {
	return w.keys.Len()
}
