package stats

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"golang.org/x/exp/slices"

	"github.com/packetloom/capcore/util"
)

// Snapshot is the JSON export shape spec.md §6 names explicitly: `totals`,
// `protocols`, `endpoints`, `size_distribution`, `time_series`,
// `top_src_ports`, `top_dst_ports`. Gathered under one lock hold so the
// fields are mutually consistent.
type Snapshot struct {
	Totals           CaptureStatistics  `json:"totals"`
	Protocols        []ProtocolStats    `json:"protocols"`
	Endpoints        []EndpointSnapshot `json:"endpoints"`
	SizeDistribution []SizeBucket       `json:"size_distribution"`
	TimeSeries       []RatePoint        `json:"time_series"`
	TopSrcPorts      []PortUsage        `json:"top_src_ports"`
	TopDstPorts      []PortUsage        `json:"top_dst_ports"`
	Errors           []ErrorRecord      `json:"errors"`
	ErrorsByType     map[string]uint64  `json:"errors_by_type"`
}

type EndpointSnapshot struct {
	Address         string   `json:"address"`
	PacketCount     uint64   `json:"packet_count"`
	ByteCount       uint64   `json:"byte_count"`
	PacketsSent     uint64   `json:"packets_sent"`
	PacketsReceived uint64   `json:"packets_received"`
	BytesSent       uint64   `json:"bytes_sent"`
	BytesReceived   uint64   `json:"bytes_received"`
	SrcPorts        []uint16 `json:"src_ports"`
	DstPorts        []uint16 `json:"dst_ports"`
	Protocols       []string `json:"protocols"`
}

// Snapshot converts es to its JSON-marshalable view, surfacing the
// unexported port/protocol sets that EndpointStats itself can't marshal
// directly.
func (es EndpointStats) Snapshot() EndpointSnapshot {
	return EndpointSnapshot{
		Address:         es.Address,
		PacketCount:     es.PacketCount,
		ByteCount:       es.ByteCount,
		PacketsSent:     es.PacketsSent,
		PacketsReceived: es.PacketsReceived,
		BytesSent:       es.BytesSent,
		BytesReceived:   es.BytesReceived,
		SrcPorts:        es.SrcPorts(),
		DstPorts:        es.DstPorts(),
		Protocols:       es.Protocols(),
	}
}

// BuildSnapshot gathers every aggregate the Engine maintains into one
// struct, under one lock hold so the fields are mutually consistent.
func (e *Engine) BuildSnapshot() Snapshot {
	protocols := e.GetAllProtocolStats()
	sortProtocolsByPacketsDesc(protocols)

	endpointStats := e.GetAllEndpointStats()
	slices.SortFunc(endpointStats, func(a, b EndpointStats) bool {
		if a.PacketCount != b.PacketCount {
			return a.PacketCount > b.PacketCount
		}
		return a.Address < b.Address
	})
	endpoints := make([]EndpointSnapshot, 0, len(endpointStats))
	for _, es := range endpointStats {
		snap := es.Snapshot()
		slices.Sort(snap.SrcPorts)
		slices.Sort(snap.DstPorts)
		slices.Sort(snap.Protocols)
		endpoints = append(endpoints, snap)
	}

	return Snapshot{
		Totals:           e.GetCaptureStatistics(),
		Protocols:        protocols,
		Endpoints:        endpoints,
		SizeDistribution: e.GetSizeHistogram(),
		TimeSeries:       e.GetRateSeries(),
		TopSrcPorts:      e.GetTopSrcPorts(-1),
		TopDstPorts:      e.GetTopDstPorts(-1),
		Errors:           e.GetErrorSamples(),
		ErrorsByType:     e.GetErrorsByType(),
	}
}

// ExportJSON writes every aggregate the Engine maintains to path as one
// JSON document, atomically (spec.md §7).
func (e *Engine) ExportJSON(path string) error {
	snap := e.BuildSnapshot()
	return util.AtomicWriteFile(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	})
}

// ProtocolStatsRow is the CSV row shape for ExportCSV, modeled on
// m-lab-tcp-info/cmd/csvtool's gocsv.Marshal-over-a-struct-slice idiom. The
// column set matches spec.md §6 exactly: protocol, packets, bytes,
// pct_packets, pct_bytes, avg_size, min_size, max_size.
type ProtocolStatsRow struct {
	Protocol   string  `csv:"protocol"`
	Packets    uint64  `csv:"packets"`
	Bytes      uint64  `csv:"bytes"`
	PctPackets float64 `csv:"pct_packets"`
	PctBytes   float64 `csv:"pct_bytes"`
	AvgSize    float64 `csv:"avg_size"`
	MinSize    uint64  `csv:"min_size"`
	MaxSize    uint64  `csv:"max_size"`
}

// ProtocolStatsRows builds the CSV row set ExportCSV writes, exported so
// httpapi can stream the same rows to an HTTP response without going
// through a file.
func (e *Engine) ProtocolStatsRows() []*ProtocolStatsRow {
	protocols := e.GetAllProtocolStats()
	sortProtocolsByPacketsDesc(protocols)

	rows := make([]*ProtocolStatsRow, 0, len(protocols))
	for _, ps := range protocols {
		rows = append(rows, &ProtocolStatsRow{
			Protocol:   ps.Protocol,
			Packets:    ps.PacketCount,
			Bytes:      ps.ByteCount,
			PctPackets: ps.PacketPercent,
			PctBytes:   ps.BytePercent,
			AvgSize:    ps.AvgSize,
			MinSize:    ps.MinSize,
			MaxSize:    ps.MaxSize,
		})
	}
	return rows
}

// ExportCSV writes the per-protocol statistics table to path as CSV,
// atomically.
func (e *Engine) ExportCSV(path string) error {
	rows := e.ProtocolStatsRows()
	return util.AtomicWriteFile(path, func(f *os.File) error {
		return gocsv.Marshal(rows, f)
	})
}

// ExportSummary writes a short human-readable text summary to path,
// atomically. The body covers what spec.md §6 requires of the summary
// export: totals, duration, average rate, and average bandwidth.
func (e *Engine) ExportSummary(path string) error {
	snap := e.BuildSnapshot()
	return util.AtomicWriteFile(path, func(f *os.File) error {
		t := snap.Totals
		_, err := fmt.Fprintf(f,
			"Capture Summary\n"+
				"  Packets:    %d (%d errors)\n"+
				"  Bytes:      %d\n"+
				"  Duration:   %.3fs\n"+
				"  Avg rate:   %.2f pps\n"+
				"  Avg bw:     %.2f bps (%.4f Mbps)\n"+
				"  Peak rate:  %.2f pps / %.2f bps\n"+
				"  Packet size: min=%d max=%d avg=%.1f\n"+
				"  Protocols:  %d\n"+
				"  Endpoints:  %d\n",
			t.TotalPackets, t.ErrorCount,
			t.TotalBytes,
			t.DurationSeconds,
			t.AvgPPS,
			t.AvgBPS, t.AvgMbps,
			t.PeakPPS, t.PeakBPS,
			t.MinPacketSize, t.MaxPacketSize, t.AvgPacketSize,
			len(snap.Protocols), len(snap.Endpoints))
		return err
	})
}
