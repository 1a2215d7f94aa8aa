package enum

import (
	"context"
	"sync"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// CombinedEnumerator runs multiple enumerators sequentially and deduplicates
// blobs by ID so each unique blob is yielded at most once.
type CombinedEnumerator struct {
	enumerators []Enumerator
}

// NewCombinedEnumerator creates a CombinedEnumerator over the provided
// enumerators, run in order.
func NewCombinedEnumerator(enumerators ...Enumerator) *CombinedEnumerator {
	return &CombinedEnumerator{enumerators: enumerators}
}

// Enumerate runs each child enumerator in sequence, passing unique blobs to
// fn.
func (c *CombinedEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	var mu sync.Mutex
	seen := make(map[types.BlobID]bool)

	for _, e := range c.enumerators {
		err := e.Enumerate(ctx, func(b Blob) error {
			mu.Lock()
			if seen[b.ID] {
				mu.Unlock()
				return nil
			}
			seen[b.ID] = true
			mu.Unlock()

			return fn(b)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
