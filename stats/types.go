package stats

import "time"

// ProtocolStats is the running aggregate for one transport/application
// protocol label. Percentage is recomputed against the engine's running
// total packet count every time any protocol's counters change, so it is
// always consistent with the other entries returned alongside it.
type ProtocolStats struct {
	Protocol      string
	PacketCount   uint64
	ByteCount     uint64
	PacketPercent float64
	BytePercent   float64
	MinSize       uint64
	MaxSize       uint64
	AvgSize       float64
	FirstSeen     time.Time
	LastSeen      time.Time
}

func (p *ProtocolStats) clone() ProtocolStats { return *p }

// EndpointStats is the running aggregate for one address, across every
// protocol and port it has been observed using. PacketsSent/PacketsReceived
// split PacketCount by direction (this address as source vs. destination),
// matching spec.md §3.4; PacketsSent+PacketsReceived == PacketCount always,
// and likewise for the byte counters (spec.md §8 item 5).
type EndpointStats struct {
	Address         string
	PacketCount     uint64
	ByteCount       uint64
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	FirstSeen       time.Time
	LastSeen        time.Time

	srcPorts  map[uint16]struct{}
	dstPorts  map[uint16]struct{}
	protocols map[string]struct{}
}

// SrcPorts returns the distinct ports this endpoint has used as a source,
// unordered.
func (e *EndpointStats) SrcPorts() []uint16 {
	out := make([]uint16, 0, len(e.srcPorts))
	for p := range e.srcPorts {
		out = append(out, p)
	}
	return out
}

// DstPorts returns the distinct ports this endpoint has been contacted on,
// unordered.
func (e *EndpointStats) DstPorts() []uint16 {
	out := make([]uint16, 0, len(e.dstPorts))
	for p := range e.dstPorts {
		out = append(out, p)
	}
	return out
}

// Protocols returns the distinct protocols this endpoint has used,
// unordered.
func (e *EndpointStats) Protocols() []string {
	out := make([]string, 0, len(e.protocols))
	for p := range e.protocols {
		out = append(out, p)
	}
	return out
}

func (e *EndpointStats) clone() EndpointStats {
	cp := *e
	cp.srcPorts = make(map[uint16]struct{}, len(e.srcPorts))
	for k := range e.srcPorts {
		cp.srcPorts[k] = struct{}{}
	}
	cp.dstPorts = make(map[uint16]struct{}, len(e.dstPorts))
	for k := range e.dstPorts {
		cp.dstPorts[k] = struct{}{}
	}
	cp.protocols = make(map[string]struct{}, len(e.protocols))
	for k := range e.protocols {
		cp.protocols[k] = struct{}{}
	}
	return cp
}

// RatePoint is one bucket of the packet/byte rate time series: counts
// observed during [IntervalStart, IntervalStart+interval), plus the
// derived per-second rates.
type RatePoint struct {
	IntervalStart time.Time
	PacketCount   uint64
	ByteCount     uint64
	PacketsPerSec float64
	BitsPerSec    float64
}

// SizeBucket is one half-open packet-size histogram bucket: [Min, Max)
// bytes, except the final bucket, whose Max is unbounded (represented as
// 0, meaning "no upper bound").
type SizeBucket struct {
	Min     uint64
	Max     uint64
	Count   uint64
	Percent float64
}

// contains reports whether length falls in [Min, Max), or Min <= length
// when Max == 0 (the unbounded tail bucket).
func (b SizeBucket) contains(length uint64) bool {
	if length < b.Min {
		return false
	}
	return b.Max == 0 || length < b.Max
}

// PortUsage is one entry in the top-ports ranking.
type PortUsage struct {
	Port        uint16
	PacketCount uint64
}

// ErrorRecord is one retained malformed/erroring packet observation.
type ErrorRecord struct {
	PacketNumber uint64
	Timestamp    time.Time
	Protocol     string
	Info         string
}

// CaptureStatistics is the global capture-wide summary, mirroring
// original_source's CaptureStatistics struct (spec.md §3.4): running
// totals plus the pass-through UI counters a downstream consumer sets. The
// derived fields (Duration through AvgPacketSize) are recomputed from the
// running totals after every packet (spec.md §4.2 step 6).
type CaptureStatistics struct {
	TotalPackets uint64
	TotalBytes   uint64
	StartTime    time.Time
	EndTime      time.Time

	MarkedPackets  uint64
	DroppedPackets uint64
	DisplayFilter  string

	ErrorCount uint64

	DurationSeconds float64
	AvgPPS          float64
	AvgBPS          float64
	AvgMbps         float64

	PeakPPS float64
	PeakBPS float64

	MinPacketSize uint64
	MaxPacketSize uint64
	AvgPacketSize float64
}
