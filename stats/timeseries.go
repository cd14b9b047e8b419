package stats

import (
	"time"

	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

// rateSeries is a fixed-width bucketed packet/byte counter series. The
// series advances by fast-forwarding through fully-skipped intervals and
// backfilling them with a zero-count RatePoint, rather than only ever
// advancing by one interval at a time: a consumer polling GetRateSeries
// between packets should see a contiguous series with no missing buckets,
// even across a quiet period.
type rateSeries struct {
	points  []RatePoint
	current time.Time
}

func (rs *rateSeries) record(interval time.Duration, t time.Time, length uint64, maxPoints int) {
	start := t.Truncate(interval)
	seconds := interval.Seconds()

	if rs.current.IsZero() {
		rs.current = start
		rs.points = append(rs.points, RatePoint{IntervalStart: start})
	}

	if start.Before(rs.current) {
		for i := len(rs.points) - 1; i >= 0; i-- {
			if rs.points[i].IntervalStart.Equal(start) {
				rs.accumulate(&rs.points[i], length, seconds)
				return
			}
		}
		return // older than the retained window; drop
	}

	for start.After(rs.current) {
		rs.current = rs.current.Add(interval)
		rs.points = append(rs.points, RatePoint{IntervalStart: rs.current})
	}
	if maxPoints > 0 && len(rs.points) > maxPoints {
		rs.points = rs.points[len(rs.points)-maxPoints:]
	}

	rs.accumulate(&rs.points[len(rs.points)-1], length, seconds)
}

func (rs *rateSeries) accumulate(pt *RatePoint, length uint64, seconds float64) {
	pt.PacketCount++
	pt.ByteCount += length
	pt.PacketsPerSec = float64(pt.PacketCount) / seconds
	pt.BitsPerSec = float64(pt.ByteCount) * 8 / seconds
}

func (rs *rateSeries) snapshot() []RatePoint {
	return append([]RatePoint(nil), rs.points...)
}

// peak returns the RatePoint with the highest PacketsPerSec observed,
// including the currently-open (not yet closed) interval.
func (rs *rateSeries) peak() (RatePoint, bool) {
	if len(rs.points) == 0 {
		return RatePoint{}, false
	}
	best := rs.points[0]
	for _, pt := range rs.points[1:] {
		if pt.PacketsPerSec > best.PacketsPerSec {
			best = pt
		}
	}
	return best, true
}

// peakClosed considers only intervals that have fully closed (every point
// except the currently-accumulating one) and returns the highest
// PacketsPerSec and the highest BitsPerSec among them, each taken
// independently (they may come from different intervals), matching
// spec.md §4.2's "update peak pps/bps if exceeded" on interval close.
// Only the two rate fields of the returned RatePoint are set.
func (rs *rateSeries) peakClosed() (RatePoint, bool) {
	if len(rs.points) < 2 {
		return RatePoint{}, false
	}
	var best RatePoint
	for _, pt := range rs.points[:len(rs.points)-1] {
		if pt.PacketsPerSec > best.PacketsPerSec {
			best.PacketsPerSec = pt.PacketsPerSec
		}
		if pt.BitsPerSec > best.BitsPerSec {
			best.BitsPerSec = pt.BitsPerSec
		}
	}
	return best, true
}

func (e *Engine) recordRateLocked(p *packet.Record) {
	e.globalRate.record(e.rateInterval, p.Timestamp, p.Length, e.config.MaxRatePoints)

	pr, ok := e.protoRate[p.Protocol]
	if !ok {
		pr = &rateSeries{}
		e.protoRate[p.Protocol] = pr
	}
	pr.record(e.rateInterval, p.Timestamp, p.Length, e.config.MaxRatePoints)

	e.events.Publish(eventbus.RateUpdated, "")
}

// GetRateSeries returns a snapshot of the global packet/byte rate time
// series.
func (e *Engine) GetRateSeries() []RatePoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globalRate.snapshot()
}

// GetPacketRateForProtocol returns a snapshot of protocol's rate time
// series, sharing the same interval boundaries as GetRateSeries.
func (e *Engine) GetPacketRateForProtocol(protocol string) []RatePoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	pr, ok := e.protoRate[protocol]
	if !ok {
		return nil
	}
	return pr.snapshot()
}

// GetPeakRate returns the highest-throughput interval observed so far in
// the global rate series.
func (e *Engine) GetPeakRate() (RatePoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.globalRate.peak()
}
