package stats

// recordPortLocked increments the combined and the directional usage
// counter for port. Port 0 (no transport-layer port, e.g. ICMP) is not
// tracked.
func (e *Engine) recordPortLocked(port uint16, isSrc bool) {
	if port == 0 {
		return
	}
	e.portCounts[port]++
	if isSrc {
		e.srcPortCounts[port]++
	} else {
		e.dstPortCounts[port]++
	}
}

func portUsageFrom(counts map[uint16]uint64) []PortUsage {
	out := make([]PortUsage, 0, len(counts))
	for port, count := range counts {
		out = append(out, PortUsage{Port: port, PacketCount: count})
	}
	return out
}

func topN(all []PortUsage, n int) []PortUsage {
	sortPortsByPacketsDesc(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// GetPortUsage returns every observed port's combined (source + destination)
// packet count, unordered.
func (e *Engine) GetPortUsage() []PortUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return portUsageFrom(e.portCounts)
}

// GetTopPorts returns the n busiest ports by combined traffic, descending.
// n <= 0 uses the Engine's configured default (Config.TopPorts).
func (e *Engine) GetTopPorts(n int) []PortUsage {
	if n <= 0 {
		e.mu.Lock()
		n = e.config.TopPorts
		e.mu.Unlock()
	}
	return topN(e.GetPortUsage(), n)
}

// GetTopSrcPorts returns the n busiest source ports, descending. n <= 0
// uses Config.TopPorts.
func (e *Engine) GetTopSrcPorts(n int) []PortUsage {
	e.mu.Lock()
	if n <= 0 {
		n = e.config.TopPorts
	}
	all := portUsageFrom(e.srcPortCounts)
	e.mu.Unlock()
	return topN(all, n)
}

// GetTopDstPorts returns the n busiest destination ports, descending. n <= 0
// uses Config.TopPorts.
func (e *Engine) GetTopDstPorts(n int) []PortUsage {
	e.mu.Lock()
	if n <= 0 {
		n = e.config.TopPorts
	}
	all := portUsageFrom(e.dstPortCounts)
	e.mu.Unlock()
	return topN(all, n)
}
