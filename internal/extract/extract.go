// Package extract is the boundary between listing sources and the rest of
// homeswipe. Extractors produce loosely typed RawSnapshots which are
// normalized and validated into model.Snapshot before reconciliation.
package extract

import (
	"context"
	"iter"

	"github.com/rotisserie/eris"
)

// ErrFatal marks an extractor error that ends the pass. Errors yielded without
// it only affect the snapshot or page they were reported for.
var ErrFatal = eris.New("extract: fatal source error")

// ErrInvalid is returned by Normalize for snapshots that fail validation.
var ErrInvalid = eris.New("extract: invalid snapshot")

// Extractor produces the snapshots of one scrape pass. An error returned by
// Extract itself means the source could not be opened at all.
type Extractor interface {
	Extract(ctx context.Context) (iter.Seq2[RawSnapshot, error], error)
}

// Deduper tracks source URLs already seen during a pass.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// First reports whether url is seen for the first time and marks it.
func (d *Deduper) First(url string) bool {
	if _, ok := d.seen[url]; ok {
		return false
	}
	d.seen[url] = struct{}{}
	return true
}

