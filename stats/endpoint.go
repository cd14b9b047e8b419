package stats

import (
	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

// updateEndpointLocked folds p into addr's running aggregate, creating the
// entry if needed, and evicts the lowest-traffic endpoint if the table has
// grown past MaxEndpoints. isSource reports whether addr is p's source
// (sent) or destination (received) side for this packet, per spec.md §3.4's
// directional packets-sent/packets-received split.
func (e *Engine) updateEndpointLocked(addr string, p *packet.Record, isSource bool) {
	if addr == "" {
		return
	}

	es, ok := e.endpoints[addr]
	if !ok {
		es = &EndpointStats{
			Address:   addr,
			FirstSeen: p.Timestamp,
			srcPorts:  make(map[uint16]struct{}),
			dstPorts:  make(map[uint16]struct{}),
			protocols: make(map[string]struct{}),
		}
		e.endpoints[addr] = es
	}
	es.PacketCount++
	es.ByteCount += p.Length
	if isSource {
		es.PacketsSent++
		es.BytesSent += p.Length
		es.srcPorts[p.SrcPort] = struct{}{}
	} else {
		es.PacketsReceived++
		es.BytesReceived += p.Length
		es.dstPorts[p.DstPort] = struct{}{}
	}
	if p.Timestamp.After(es.LastSeen) {
		es.LastSeen = p.Timestamp
	}
	es.protocols[p.Protocol] = struct{}{}

	e.events.Publish(eventbus.EndpointStatsUpdated, addr)

	if e.config.MaxEndpoints > 0 && uint64(len(e.endpoints)) > e.config.MaxEndpoints {
		e.evictLowestTrafficEndpointLocked()
	}
}

// evictLowestTrafficEndpointLocked removes the endpoint with the lowest
// total packet count, an O(n) scan matching spec.md §4.2's description of
// the eviction policy (and convo.Tracker's equivalent cap-eviction scan).
func (e *Engine) evictLowestTrafficEndpointLocked() {
	var victim string
	var victimCount uint64
	first := true
	for addr, es := range e.endpoints {
		if first || es.PacketCount < victimCount {
			victim, victimCount, first = addr, es.PacketCount, false
		}
	}
	if !first {
		delete(e.endpoints, victim)
	}
}

// GetEndpointStats returns a snapshot of the named endpoint's stats.
func (e *Engine) GetEndpointStats(address string) (EndpointStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	es, ok := e.endpoints[address]
	if !ok {
		return EndpointStats{}, false
	}
	return es.clone(), true
}

// GetAllEndpointStats returns a snapshot of every tracked endpoint's stats.
func (e *Engine) GetAllEndpointStats() []EndpointStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]EndpointStats, 0, len(e.endpoints))
	for _, es := range e.endpoints {
		out = append(out, es.clone())
	}
	return out
}

// GetTopEndpoints returns the n endpoints with the highest packet count,
// descending.
func (e *Engine) GetTopEndpoints(n int) []EndpointStats {
	all := e.GetAllEndpointStats()
	sortEndpointsByPacketsDesc(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}
