package reconcile

import (
	"sync"

	"github.com/sells-group/homeswipe/internal/model"
)

// Batch accumulates the outcome of one reconciliation pass.
type Batch struct {
	mu       sync.Mutex
	counts   model.RunCounts
	observed []string
	seen     map[string]struct{}
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{seen: make(map[string]struct{})}
}

// Record adds the outcome of one Reconcile call. Only successful snapshots
// enter the observed set.
func (b *Batch) Record(ev Event, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.counts.Failed++
		return
	}
	if _, ok := b.seen[ev.SourceURL]; !ok {
		b.seen[ev.SourceURL] = struct{}{}
		b.observed = append(b.observed, ev.SourceURL)
	}
	if ev.IsNew {
		b.counts.New++
	} else {
		b.counts.Updated++
	}
	if ev.PriceChanged {
		b.counts.PriceChanged++
	}
}

// Observed returns the source URLs reconciled successfully, in order.
func (b *Batch) Observed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.observed))
	copy(out, b.observed)
	return out
}

// Counts returns a copy of the reconcile counters. Found, Skipped,
// Duplicates, Retired and Alerts are owned by the coordinator.
func (b *Batch) Counts() model.RunCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}
