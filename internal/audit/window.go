package audit

import (
	"sort"
	"sync"
	"time"
)

// DedupWindow remembers recently recorded fingerprints so that the same
// logical change is not submitted twice within the window. It is an
// in-memory, process-local aid and never a correctness mechanism.
type DedupWindow struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	maxEntries int
	keep       int
	now        func() time.Time
}

// NewDedupWindow builds a window. When more than maxEntries keys are held,
// it is pruned to the keep most recent ones.
func NewDedupWindow(ttl time.Duration, maxEntries, keep int, now func() time.Time) *DedupWindow {
	if now == nil {
		now = time.Now
	}
	if maxEntries <= 0 {
		maxEntries = 50
	}
	if keep <= 0 || keep > maxEntries {
		keep = maxEntries / 2
	}
	return &DedupWindow{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		maxEntries: maxEntries,
		keep:       keep,
		now:        now,
	}
}

// ShouldSuppress reports whether key was recorded within the window.
func (w *DedupWindow) ShouldSuppress(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	at, ok := w.entries[key]
	if !ok {
		return false
	}
	return w.now().Sub(at) < w.ttl
}

// Record stores key with its recording time and prunes when oversized.
func (w *DedupWindow) Record(key string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = at
	if len(w.entries) > w.maxEntries {
		w.pruneLocked(w.keep)
	}
}

// Prune drops all but the maxEntries most recently recorded keys.
func (w *DedupWindow) Prune(maxEntries int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(maxEntries)
}

// Len reports the number of keys currently held.
func (w *DedupWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *DedupWindow) pruneLocked(limit int) {
	if limit < 0 {
		limit = 0
	}
	if len(w.entries) <= limit {
		return
	}
	type stamped struct {
		key string
		at  time.Time
	}
	all := make([]stamped, 0, len(w.entries))
	for key, at := range w.entries {
		all = append(all, stamped{key: key, at: at})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].at.Equal(all[j].at) {
			return all[i].key < all[j].key
		}
		return all[i].at.After(all[j].at)
	})
	for _, s := range all[limit:] {
		delete(w.entries, s.key)
	}
}
