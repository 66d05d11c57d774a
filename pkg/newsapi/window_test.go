package newsapi

import (
	"fmt"
	"testing"
)

func TestRecencyWindowEvictsOldest(t *testing.T) {
	w, err := NewRecencyWindow(DefaultWindowSize)
	if err != nil {
		t.Fatalf("NewRecencyWindow: %v", err)
	}
	for i := 0; i <= DefaultWindowSize; i++ {
		if w.Observe(fmt.Sprintf("key-%d", i)) {
			t.Fatalf("key-%d reported as seen on first insert", i)
		}
	}
	if w.Len() != DefaultWindowSize {
		t.Fatalf("Len = %d", w.Len())
	}
	if w.Seen("key-0") {
		t.Fatalf("oldest key should have been evicted")
	}
	if !w.Seen("key-1") || !w.Seen(fmt.Sprintf("key-%d", DefaultWindowSize)) {
		t.Fatalf("recent keys should still be seen")
	}
}

func TestRecencyWindowLookupDoesNotRefresh(t *testing.T) {
	w, _ := NewRecencyWindow(2)
	w.Observe("a")
	w.Observe("b")
	if !w.Observe("a") {
		t.Fatalf("a should be seen")
	}
	w.Observe("c")
	if w.Seen("a") {
		t.Fatalf("a was inserted first and must be evicted despite the lookup")
	}
	if !w.Seen("b") || !w.Seen("c") {
		t.Fatalf("b and c should remain")
	}
}

func TestRecencyWindowRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := NewRecencyWindow(0); err == nil {
		t.Fatalf("expected error")
	}
}
