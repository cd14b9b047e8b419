package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetloom/capcore/packet"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxEndpoints = 10
	cfg.RateInterval = time.Second
	cfg.MaxRatePoints = 100
	cfg.MaxErrorSamples = 10
	cfg.TopPorts = 5
	cfg.EnablePrometheus = false
	return cfg
}

func rec(n uint64, t time.Time, proto, src string, srcPort uint16, dst string, dstPort uint16, length uint64) *packet.Record {
	return &packet.Record{
		Number: n, Timestamp: t, Length: length, Protocol: proto,
		SrcAddr: src, SrcPort: srcPort, DstAddr: dst, DstPort: dstPort,
	}
}

func TestAddPacket_UpdatesTotals(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()

	e.AddPacket(rec(1, now, "TCP", "10.0.0.1", 4000, "10.0.0.2", 80, 100))
	e.AddPacket(rec(2, now.Add(time.Millisecond), "TCP", "10.0.0.1", 4000, "10.0.0.2", 80, 200))

	packets, bytes := e.GetTotalTraffic()
	assert.Equal(t, uint64(2), packets)
	assert.Equal(t, uint64(300), bytes)
}

func TestProtocolStats_PercentageRecomputed(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()

	e.AddPacket(rec(1, now, "TCP", "a", 1, "b", 2, 10))
	e.AddPacket(rec(2, now, "UDP", "a", 1, "b", 2, 10))
	e.AddPacket(rec(3, now, "UDP", "a", 1, "b", 2, 10))

	tcp, ok := e.GetProtocolStats("TCP")
	require.True(t, ok)
	assert.InDelta(t, 33.33, tcp.PacketPercent, 0.01)

	udp, ok := e.GetProtocolStats("UDP")
	require.True(t, ok)
	assert.InDelta(t, 66.66, udp.PacketPercent, 0.01)
}

func TestEndpointEviction_RemovesLowestTraffic(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEndpoints = 2
	e := NewEngine(cfg)
	now := time.Now()

	e.AddPacket(rec(1, now, "TCP", "10.0.0.1", 1, "10.0.0.9", 2, 10))
	e.AddPacket(rec(2, now, "TCP", "10.0.0.1", 1, "10.0.0.9", 2, 10))
	e.AddPacket(rec(3, now, "TCP", "10.0.0.2", 1, "10.0.0.3", 2, 10))

	// Each newcomer (one packet) is the lowest-traffic entry once the table
	// exceeds two, so both are evicted and the two-packet endpoints remain.
	all := e.GetAllEndpointStats()
	assert.Len(t, all, 2)
	_, ok := e.GetEndpointStats("10.0.0.1")
	assert.True(t, ok)
}

func TestSizeHistogram_BucketsPacket(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()
	e.AddPacket(rec(1, now, "TCP", "a", 1, "b", 2, 70))

	hist := e.GetSizeHistogram()
	found := false
	for _, b := range hist {
		if b.Min == 64 && b.Max == 128 {
			assert.Equal(t, uint64(1), b.Count)
			found = true
		}
	}
	assert.True(t, found)
}

func TestPortUsage_TracksBothDirections(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()
	e.AddPacket(rec(1, now, "TCP", "a", 4000, "b", 80, 10))

	top := e.GetTopPorts(5)
	ports := map[uint16]uint64{}
	for _, p := range top {
		ports[p.Port] = p.PacketCount
	}
	assert.Equal(t, uint64(1), ports[4000])
	assert.Equal(t, uint64(1), ports[80])
}

func TestErrorSamples_BoundedRetention(t *testing.T) {
	cfg := testConfig()
	cfg.MaxErrorSamples = 2
	e := NewEngine(cfg)
	now := time.Now()

	for i := 0; i < 5; i++ {
		p := rec(uint64(i), now, "TCP", "a", 1, "b", 2, 10)
		p.HasError = true
		p.ErrorInfo = "bad checksum"
		e.AddPacket(p)
	}

	samples := e.GetErrorSamples()
	require.Len(t, samples, 2)
	assert.Equal(t, uint64(0), samples[0].PacketNumber)
	assert.Equal(t, uint64(1), samples[1].PacketNumber)

	cs := e.GetCaptureStatistics()
	assert.Equal(t, uint64(5), cs.ErrorCount)

	byType := e.GetErrorsByType()
	assert.Equal(t, uint64(5), byType["bad checksum"])
}

func TestRateSeries_BackfillsQuietIntervals(t *testing.T) {
	e := NewEngine(testConfig())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e.AddPacket(rec(1, base, "TCP", "a", 1, "b", 2, 10))
	e.AddPacket(rec(2, base.Add(5*time.Second), "TCP", "a", 1, "b", 2, 10))

	series := e.GetRateSeries()
	require.Len(t, series, 6)
	assert.Equal(t, uint64(1), series[0].PacketCount)
	for i := 1; i < 5; i++ {
		assert.Equal(t, uint64(0), series[i].PacketCount)
	}
	assert.Equal(t, uint64(1), series[5].PacketCount)
}

func TestGetPacketRateForProtocol_SeparateFromGlobal(t *testing.T) {
	e := NewEngine(testConfig())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e.AddPacket(rec(1, base, "TCP", "a", 1, "b", 2, 10))
	e.AddPacket(rec(2, base, "UDP", "a", 1, "b", 2, 10))

	tcpSeries := e.GetPacketRateForProtocol("TCP")
	require.Len(t, tcpSeries, 1)
	assert.Equal(t, uint64(1), tcpSeries[0].PacketCount)
}

func TestExportJSON_WritesAtomically(t *testing.T) {
	e := NewEngine(testConfig())
	e.AddPacket(rec(1, time.Now(), "TCP", "a", 1, "b", 2, 10))

	path := t.TempDir() + "/snapshot.json"
	require.NoError(t, e.ExportJSON(path))
}

func TestExportCSV_WritesProtocolRows(t *testing.T) {
	e := NewEngine(testConfig())
	e.AddPacket(rec(1, time.Now(), "TCP", "a", 1, "b", 2, 10))

	path := t.TempDir() + "/protocols.csv"
	require.NoError(t, e.ExportCSV(path))
}

func TestEndpointStats_SplitsSentAndReceived(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()

	e.AddPacket(rec(1, now, "TCP", "10.0.0.1", 4000, "10.0.0.2", 80, 100))
	e.AddPacket(rec(2, now.Add(time.Millisecond), "TCP", "10.0.0.2", 80, "10.0.0.1", 4000, 50))

	a, ok := e.GetEndpointStats("10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), a.PacketsSent)
	assert.Equal(t, uint64(1), a.PacketsReceived)
	assert.Equal(t, uint64(100), a.BytesSent)
	assert.Equal(t, uint64(50), a.BytesReceived)
	assert.Equal(t, a.PacketCount, a.PacketsSent+a.PacketsReceived)
	assert.Equal(t, a.ByteCount, a.BytesSent+a.BytesReceived)

	snap := a.Snapshot()
	assert.ElementsMatch(t, []uint16{4000}, snap.SrcPorts)
	assert.ElementsMatch(t, []uint16{4000}, snap.DstPorts)
}

func TestPortUsage_SplitsSrcAndDst(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()
	e.AddPacket(rec(1, now, "TCP", "a", 4000, "b", 80, 10))

	src := e.GetTopSrcPorts(5)
	dst := e.GetTopDstPorts(5)
	require.Len(t, src, 1)
	require.Len(t, dst, 1)
	assert.Equal(t, uint16(4000), src[0].Port)
	assert.Equal(t, uint16(80), dst[0].Port)
}

func TestCaptureStatistics_DerivedFields(t *testing.T) {
	e := NewEngine(testConfig())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e.AddPacket(rec(1, base, "TCP", "a", 1, "b", 2, 100))
	e.AddPacket(rec(2, base.Add(2*time.Second), "TCP", "a", 1, "b", 2, 300))

	cs := e.GetCaptureStatistics()
	assert.InDelta(t, 2.0, cs.DurationSeconds, 0.001)
	assert.InDelta(t, 1.0, cs.AvgPPS, 0.001)
	assert.InDelta(t, (400.0*8)/2.0, cs.AvgBPS, 0.001)
	assert.Equal(t, uint64(100), cs.MinPacketSize)
	assert.Equal(t, uint64(300), cs.MaxPacketSize)
	assert.InDelta(t, 200.0, cs.AvgPacketSize, 0.001)
}

func TestProtocolStats_SizeAndBytePercent(t *testing.T) {
	e := NewEngine(testConfig())
	now := time.Now()

	e.AddPacket(rec(1, now, "TCP", "a", 1, "b", 2, 100))
	e.AddPacket(rec(2, now, "TCP", "a", 1, "b", 2, 300))
	e.AddPacket(rec(3, now, "UDP", "a", 1, "b", 2, 600))

	tcp, ok := e.GetProtocolStats("TCP")
	require.True(t, ok)
	assert.Equal(t, uint64(100), tcp.MinSize)
	assert.Equal(t, uint64(300), tcp.MaxSize)
	assert.InDelta(t, 200.0, tcp.AvgSize, 0.001)
	assert.InDelta(t, 40.0, tcp.BytePercent, 0.01) // 400/1000
}

func TestBuildSnapshot_UsesSpecJSONKeys(t *testing.T) {
	e := NewEngine(testConfig())
	e.AddPacket(rec(1, time.Now(), "TCP", "a", 4000, "b", 80, 10))

	snap := e.BuildSnapshot()
	require.Len(t, snap.Endpoints, 2)
	require.Len(t, snap.TopSrcPorts, 1)
	require.Len(t, snap.TopDstPorts, 1)
	assert.Equal(t, uint16(4000), snap.TopSrcPorts[0].Port)
	assert.Equal(t, uint16(80), snap.TopDstPorts[0].Port)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, k := range []string{"totals", "protocols", "endpoints", "size_distribution", "time_series", "top_src_ports", "top_dst_ports"} {
		assert.Contains(t, keys, k)
	}
}

func TestPassthroughCounters(t *testing.T) {
	e := NewEngine(testConfig())
	e.SetMarkedPackets(3)
	e.SetDroppedPackets(7)
	e.UpdateDisplayFilter("tcp.port == 80")

	cs := e.GetCaptureStatistics()
	assert.Equal(t, uint64(3), cs.MarkedPackets)
	assert.Equal(t, uint64(7), cs.DroppedPackets)
	assert.Equal(t, "tcp.port == 80", cs.DisplayFilter)
}

// TestBuildSnapshot_DeterministicForIdenticalInput feeds two engines the same
// packet sequence and diffs their snapshots structurally, so a future change
// that makes the snapshot depend on map iteration order or similar hidden
// state shows up as a field-level diff instead of a flaky assertion.
func TestBuildSnapshot_DeterministicForIdenticalInput(t *testing.T) {
	now := time.Now()
	feed := func(e *Engine) {
		e.AddPacket(rec(1, now, "TCP", "10.0.0.1", 4000, "10.0.0.2", 80, 100))
		e.AddPacket(rec(2, now, "UDP", "10.0.0.2", 53, "10.0.0.1", 4001, 64))
		e.AddPacket(rec(3, now, "TCP", "10.0.0.1", 4000, "10.0.0.2", 80, 300))
	}

	a := NewEngine(testConfig())
	b := NewEngine(testConfig())
	feed(a)
	feed(b)

	if diff := cmp.Diff(a.BuildSnapshot(), b.BuildSnapshot(), cmpopts.EquateApprox(0, 0.0001)); diff != "" {
		t.Fatalf("snapshots from identical input diverged (-a +b):\n%s", diff)
	}
}
