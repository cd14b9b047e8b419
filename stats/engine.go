// Package stats implements the Statistics Engine: protocol, endpoint,
// time-series, packet-size, port-usage, and error aggregation over a
// stream of packet.Record values.
//
// Like convo.Tracker, an Engine is safe for concurrent use behind one
// mutex held for the duration of each operation; notifications are
// delivered synchronously under that lock (see eventbus's package doc).
package stats

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

// defaultSizeBuckets mirrors the half-open packet-size buckets spec.md §4.2
// documents: `[0, 64, 128, 256, 512, 1024, 1518, ∞)`. bounds holds every
// boundary; the final bucket starts at the last boundary and has no upper
// bound (Max == 0).
func defaultSizeBuckets() []SizeBucket {
	bounds := []uint64{0, 64, 128, 256, 512, 1024, 1518}
	buckets := make([]SizeBucket, 0, len(bounds))
	for i, min := range bounds {
		max := uint64(0)
		if i+1 < len(bounds) {
			max = bounds[i+1]
		}
		buckets = append(buckets, SizeBucket{Min: min, Max: max})
	}
	return buckets
}

// Engine is the Statistics Engine. Construct with NewEngine.
type Engine struct {
	mu     sync.Mutex
	config Config
	events *eventbus.Bus

	capture CaptureStatistics

	protocols map[string]*ProtocolStats
	endpoints map[string]*EndpointStats

	rateInterval time.Duration
	globalRate   rateSeries
	protoRate    map[string]*rateSeries

	sizeBuckets []SizeBucket

	portCounts    map[uint16]uint64
	srcPortCounts map[uint16]uint64
	dstPortCounts map[uint16]uint64

	errors     []ErrorRecord
	errorTypes map[string]uint64

	metrics *promMetrics
}

// NewEngine returns an empty Engine configured with cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		config:        cfg,
		events:        eventbus.New(),
		protocols:     make(map[string]*ProtocolStats),
		endpoints:     make(map[string]*EndpointStats),
		sizeBuckets:   defaultSizeBuckets(),
		portCounts:    make(map[uint16]uint64),
		srcPortCounts: make(map[uint16]uint64),
		dstPortCounts: make(map[uint16]uint64),
		protoRate:     make(map[string]*rateSeries),
		errorTypes:    make(map[string]uint64),
		rateInterval:  cfg.RateInterval,
	}
	if e.rateInterval <= 0 {
		e.rateInterval = time.Second
	}
	if cfg.EnablePrometheus {
		e.metrics = newPromMetrics()
	}
	return e
}

// Subscribe registers h for notifications of the given kind.
func (e *Engine) Subscribe(kind eventbus.Kind, h eventbus.Handler) uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events.Subscribe(kind, h)
}

// Unsubscribe removes a handler previously registered with Subscribe.
func (e *Engine) Unsubscribe(kind eventbus.Kind, handle uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events.Unsubscribe(kind, handle)
}

// AddPacket folds one packet into every aggregate the Engine maintains.
// Invalid records (see packet.Record.Valid) are dropped silently, matching
// convo.Tracker.
func (e *Engine) AddPacket(p *packet.Record) {
	if !p.Valid() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.capture.TotalPackets == 0 {
		e.capture.StartTime = p.Timestamp
	}
	e.capture.TotalPackets++
	e.capture.TotalBytes += p.Length
	if p.Timestamp.After(e.capture.EndTime) {
		e.capture.EndTime = p.Timestamp
	}
	if e.capture.MinPacketSize == 0 || p.Length < e.capture.MinPacketSize {
		e.capture.MinPacketSize = p.Length
	}
	if p.Length > e.capture.MaxPacketSize {
		e.capture.MaxPacketSize = p.Length
	}

	e.updateProtocolLocked(p)
	e.updateEndpointLocked(p.SrcAddr, p, true)
	e.updateEndpointLocked(p.DstAddr, p, false)
	e.recordRateLocked(p)
	e.recordSizeLocked(p.Length)
	e.recordPortLocked(p.SrcPort, true)
	e.recordPortLocked(p.DstPort, false)

	if p.HasError {
		e.recordErrorLocked(p)
	}

	e.recomputeCaptureDerivedLocked()

	if e.metrics != nil {
		e.metrics.observe(p, &e.capture)
		e.refreshPeakGaugesLocked()
	}

	e.events.Publish(eventbus.StatisticsUpdated, "")
}

// recomputeCaptureDerivedLocked recomputes every field of CaptureStatistics
// that is derived from the running totals rather than accumulated directly
// (spec.md §4.2 step 6), guarding the divisions that duration/packet-count
// zero would otherwise make undefined.
func (e *Engine) recomputeCaptureDerivedLocked() {
	c := &e.capture

	c.DurationSeconds = c.EndTime.Sub(c.StartTime).Seconds()
	if c.DurationSeconds > 0 {
		c.AvgPPS = float64(c.TotalPackets) / c.DurationSeconds
		c.AvgBPS = float64(c.TotalBytes) * 8 / c.DurationSeconds
		c.AvgMbps = c.AvgBPS / 1e6
	} else {
		c.AvgPPS, c.AvgBPS, c.AvgMbps = 0, 0, 0
	}
	if c.TotalPackets > 0 {
		c.AvgPacketSize = float64(c.TotalBytes) / float64(c.TotalPackets)
	} else {
		c.AvgPacketSize = 0
	}

	if pt, ok := e.globalRate.peakClosed(); ok {
		if pt.PacketsPerSec > c.PeakPPS {
			c.PeakPPS = pt.PacketsPerSec
		}
		if pt.BitsPerSec > c.PeakBPS {
			c.PeakBPS = pt.BitsPerSec
		}
	}
}

// SetMarkedPackets sets the downstream-UI "marked packets" counter
// (original_source's CaptureStatistics::SetMarkedPackets). It costs
// nothing to carry: spec.md §3.4 already reserves the field.
func (e *Engine) SetMarkedPackets(n uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capture.MarkedPackets = n
}

// SetDroppedPackets sets the downstream-UI "dropped packets" counter.
func (e *Engine) SetDroppedPackets(n uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capture.DroppedPackets = n
}

// UpdateDisplayFilter records the currently-active display filter string,
// a pass-through value a downstream UI sets and reads back; the Engine
// itself never interprets it.
func (e *Engine) UpdateDisplayFilter(filter string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capture.DisplayFilter = filter
}

// GetCaptureStatistics returns a snapshot of the global capture summary.
// ErrorCount is the running total of errored packets ever seen, which may
// exceed len(GetErrorSamples()) once the retained sample is full.
func (e *Engine) GetCaptureStatistics() CaptureStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capture
}

// GetTotalTraffic returns the running total packet and byte counts.
func (e *Engine) GetTotalTraffic() (packets, bytes uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capture.TotalPackets, e.capture.TotalBytes
}

// Clear resets the Engine to its just-constructed state. Subscriptions are
// left intact.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.capture = CaptureStatistics{}
	e.protocols = make(map[string]*ProtocolStats)
	e.endpoints = make(map[string]*EndpointStats)
	e.sizeBuckets = defaultSizeBuckets()
	e.portCounts = make(map[uint16]uint64)
	e.srcPortCounts = make(map[uint16]uint64)
	e.dstPortCounts = make(map[uint16]uint64)
	e.globalRate = rateSeries{}
	e.protoRate = make(map[string]*rateSeries)
	e.errors = nil
	e.errorTypes = make(map[string]uint64)
}
