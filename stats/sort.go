package stats

import "golang.org/x/exp/slices"

func sortProtocolsByPacketsDesc(ps []ProtocolStats) {
	slices.SortFunc(ps, func(a, b ProtocolStats) bool { return a.PacketCount > b.PacketCount })
}

func sortEndpointsByPacketsDesc(es []EndpointStats) {
	slices.SortFunc(es, func(a, b EndpointStats) bool { return a.PacketCount > b.PacketCount })
}

func sortPortsByPacketsDesc(ps []PortUsage) {
	slices.SortFunc(ps, func(a, b PortUsage) bool { return a.PacketCount > b.PacketCount })
}
