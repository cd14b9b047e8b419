package stats

import (
	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

// updateProtocolLocked folds p into its protocol's running aggregate and
// recomputes every protocol's PacketPercent against the new running total.
func (e *Engine) updateProtocolLocked(p *packet.Record) {
	ps, ok := e.protocols[p.Protocol]
	if !ok {
		ps = &ProtocolStats{Protocol: p.Protocol, FirstSeen: p.Timestamp}
		e.protocols[p.Protocol] = ps
	}
	ps.PacketCount++
	ps.ByteCount += p.Length
	if ps.MinSize == 0 || p.Length < ps.MinSize {
		ps.MinSize = p.Length
	}
	if p.Length > ps.MaxSize {
		ps.MaxSize = p.Length
	}
	ps.AvgSize = float64(ps.ByteCount) / float64(ps.PacketCount)
	if p.Timestamp.After(ps.LastSeen) {
		ps.LastSeen = p.Timestamp
	}

	e.recomputeProtocolPercentagesLocked()
	e.events.Publish(eventbus.ProtocolStatsUpdated, p.Protocol)
}

func (e *Engine) recomputeProtocolPercentagesLocked() {
	totalPackets := e.capture.TotalPackets
	totalBytes := e.capture.TotalBytes
	for _, ps := range e.protocols {
		if totalPackets == 0 {
			ps.PacketPercent = 0
		} else {
			ps.PacketPercent = 100 * float64(ps.PacketCount) / float64(totalPackets)
		}
		if totalBytes == 0 {
			ps.BytePercent = 0
		} else {
			ps.BytePercent = 100 * float64(ps.ByteCount) / float64(totalBytes)
		}
	}
}

// GetProtocolStats returns a snapshot of the named protocol's stats.
func (e *Engine) GetProtocolStats(protocol string) (ProtocolStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ps, ok := e.protocols[protocol]
	if !ok {
		return ProtocolStats{}, false
	}
	return ps.clone(), true
}

// GetAllProtocolStats returns a snapshot of every tracked protocol's stats.
func (e *Engine) GetAllProtocolStats() []ProtocolStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ProtocolStats, 0, len(e.protocols))
	for _, ps := range e.protocols {
		out = append(out, ps.clone())
	}
	return out
}

// GetTopProtocols returns the n protocols with the highest packet count,
// descending.
func (e *Engine) GetTopProtocols(n int) []ProtocolStats {
	all := e.GetAllProtocolStats()
	sortProtocolsByPacketsDesc(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}
