package stats

import "github.com/pkg/errors"

// SetSizeBuckets redefines the packet-size histogram's boundaries
// (spec.md §6's `packet_size_buckets` option). bounds must be strictly
// increasing and start at 0; the last boundary opens an unbounded tail
// bucket. Existing counts are discarded since they no longer correspond to
// a consistent partition.
func (e *Engine) SetSizeBuckets(bounds []uint64) error {
	if len(bounds) == 0 || bounds[0] != 0 {
		return errors.New("packet_size_buckets must start at 0")
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return errors.New("packet_size_buckets must be strictly increasing")
		}
	}

	buckets := make([]SizeBucket, 0, len(bounds))
	for i, min := range bounds {
		max := uint64(0)
		if i+1 < len(bounds) {
			max = bounds[i+1]
		}
		buckets = append(buckets, SizeBucket{Min: min, Max: max})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizeBuckets = buckets
	return nil
}

// recordSizeLocked increments the histogram bucket length falls into, then
// recomputes every bucket's percentage of the running total packet count
// (spec.md §3.4's size-bucket invariant: buckets partition [0, ∞) and every
// packet increments exactly one). The buckets are half-open ([Min, Max))
// except the last, which has no upper bound.
func (e *Engine) recordSizeLocked(length uint64) {
	for i := range e.sizeBuckets {
		if e.sizeBuckets[i].contains(length) {
			e.sizeBuckets[i].Count++
			break
		}
	}

	total := e.capture.TotalPackets
	for i := range e.sizeBuckets {
		if total == 0 {
			e.sizeBuckets[i].Percent = 0
			continue
		}
		e.sizeBuckets[i].Percent = 100 * float64(e.sizeBuckets[i].Count) / float64(total)
	}
}

// GetSizeHistogram returns a snapshot of the packet-size histogram.
func (e *Engine) GetSizeHistogram() []SizeBucket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SizeBucket(nil), e.sizeBuckets...)
}
