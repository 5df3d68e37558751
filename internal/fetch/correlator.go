package fetch

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"squiggle/internal/source"
)

// DefaultCorrelationSize bounds the bucket to snapshot cache.
const DefaultCorrelationSize = 256

// Correlator remembers, per bucket, the snapshot that was current when the
// bucket was last published. Entries are hints: the snapshot may be of a
// closed buffer or simply wrong, and readers must cope.
type Correlator struct {
	cache *lru.Cache[BucketID, *source.Snapshot]
}

func NewCorrelator(size int) (*Correlator, error) {
	if size <= 0 {
		size = DefaultCorrelationSize
	}
	cache, err := lru.New[BucketID, *source.Snapshot](size)
	if err != nil {
		return nil, err
	}
	return &Correlator{cache: cache}, nil
}

func (c *Correlator) Observe(id BucketID, snap *source.Snapshot) {
	c.cache.Add(id, snap)
}

func (c *Correlator) Lookup(id BucketID) (*source.Snapshot, bool) {
	return c.cache.Get(id)
}

func (c *Correlator) Forget(id BucketID) {
	c.cache.Remove(id)
}

func (c *Correlator) Len() int {
	return c.cache.Len()
}
