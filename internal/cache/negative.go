package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// NegativeCache memoizes "this venue/symbol/interval/range came back empty"
// so the orchestrator doesn't immediately re-issue the same Vision or REST
// request for a range already known to be empty. Unlike a plain key/value
// negative cache, empty observations accumulate per bucket: two adjacent
// empty REST chunks coalesce into one wider known-empty range, so a later
// probe spanning both is satisfied without ever touching the network.
type NegativeCache struct {
	c   Cache
	ttl time.Duration

	mu sync.Mutex
}

func NewNegativeCache(c Cache, ttl time.Duration) *NegativeCache {
	return &NegativeCache{c: c, ttl: ttl}
}

// emptyRange is one contiguous span, in micros, known to be empty.
type emptyRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func bucketKey(venue, symbol, ivl, source string) string {
	return fmt.Sprintf("empty:%s:%s:%s:%s", venue, symbol, ivl, source)
}

func (n *NegativeCache) loadBucket(key string) []emptyRange {
	raw, ok := n.c.Get(key)
	if !ok {
		return nil
	}
	var ranges []emptyRange
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return nil
	}
	return ranges
}

func (n *NegativeCache) saveBucket(key string, ranges []emptyRange) {
	raw, err := json.Marshal(ranges)
	if err != nil {
		return
	}
	n.c.Set(key, raw, n.ttl)
}

// mergeRange inserts r into ranges, coalescing it with any range it overlaps
// or touches (no gap between them), and returns the merged, sorted set.
func mergeRange(ranges []emptyRange, r emptyRange) []emptyRange {
	merged := append(append([]emptyRange(nil), ranges...), r)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })

	out := merged[:1]
	for _, cur := range merged[1:] {
		last := &out[len(out)-1]
		if cur.Start <= last.End+1 {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}

// MarkEmpty records that source returned nothing for [start, end], merging
// it into any adjacent or overlapping empty range already known for this
// venue/symbol/interval/source bucket.
func (n *NegativeCache) MarkEmpty(venue, symbol, ivl, source string, startMicros, endMicros int64) {
	key := bucketKey(venue, symbol, ivl, source)

	n.mu.Lock()
	defer n.mu.Unlock()

	ranges := n.loadBucket(key)
	ranges = mergeRange(ranges, emptyRange{Start: startMicros, End: endMicros})
	n.saveBucket(key, ranges)
}

// IsKnownEmpty reports whether [start, end] is fully contained in a range
// already marked empty for source within the TTL window.
func (n *NegativeCache) IsKnownEmpty(venue, symbol, ivl, source string, startMicros, endMicros int64) bool {
	key := bucketKey(venue, symbol, ivl, source)

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, r := range n.loadBucket(key) {
		if startMicros >= r.Start && endMicros <= r.End {
			return true
		}
	}
	return false
}
