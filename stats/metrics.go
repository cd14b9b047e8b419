package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetloom/capcore/packet"
)

// promMetrics mirrors m-lab-tcp-info/metrics/metrics.go's
// promauto-registered gauge/counter style: package-scoped collectors,
// updated from observe rather than recomputed from scratch on every
// scrape.
type promMetrics struct {
	totalPackets  prometheus.Counter
	totalBytes    prometheus.Counter
	peakPacketsPS prometheus.Gauge
	peakBytesPS   prometheus.Gauge
	conversations prometheus.Gauge
	errorsTotal   prometheus.Counter
}

func newPromMetrics() *promMetrics {
	return &promMetrics{
		totalPackets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capcore_total_packets",
			Help: "Total packets observed by the statistics engine.",
		}),
		totalBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capcore_total_bytes",
			Help: "Total bytes observed by the statistics engine.",
		}),
		peakPacketsPS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capcore_peak_pps",
			Help: "Highest packets-per-second interval observed so far.",
		}),
		peakBytesPS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capcore_peak_bps",
			Help: "Highest bits-per-second interval observed so far.",
		}),
		conversations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capcore_conversations_active",
			Help: "Number of conversations currently tracked (set externally via SetActiveConversations).",
		}),
		errorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capcore_errors_total",
			Help: "Total errored packets observed by the statistics engine.",
		}),
	}
}

// observe updates the per-packet counters. Called under the Engine's lock
// from AddPacket, after the in-process aggregates it mirrors have already
// been updated.
func (m *promMetrics) observe(p *packet.Record, cs *CaptureStatistics) {
	m.totalPackets.Inc()
	m.totalBytes.Add(float64(p.Length))
	if p.HasError {
		m.errorsTotal.Inc()
	}
}

// SetActiveConversations lets a caller wire a convo.Tracker's Count() into
// the capcore_conversations_active gauge; the Engine has no conversation
// data of its own to derive it from.
func (e *Engine) SetActiveConversations(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.conversations.Set(float64(n))
	}
}

// refreshPeakGaugesLocked updates the peak-rate gauges from the current
// global rate series: both gauges come from the retained interval with the
// highest PacketsPerSec, including the still-open one. It scans every
// retained RatePoint (at most MaxRatePoints) on each call.
func (e *Engine) refreshPeakGaugesLocked() {
	if e.metrics == nil {
		return
	}
	if pt, ok := e.globalRate.peak(); ok {
		e.metrics.peakPacketsPS.Set(pt.PacketsPerSec)
		e.metrics.peakBytesPS.Set(pt.BitsPerSec)
	}
}
