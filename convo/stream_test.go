package convo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetloom/capcore/packet"
)

func tcpRec(n uint64, t time.Time, srcAddr string, srcPort uint16, dstAddr string, dstPort uint16, seq, length uint32, fields packet.Fields) *packet.Record {
	if fields == nil {
		fields = packet.Fields{}
	}
	fields[packet.FieldTCPSeq] = seq
	fields[packet.FieldTCPLen] = length
	return &packet.Record{
		Number: n, Timestamp: t, Length: uint64(length),
		Protocol: "TCP", SrcAddr: srcAddr, SrcPort: srcPort, DstAddr: dstAddr, DstPort: dstPort,
		Fields: fields,
	}
}

func TestStream_IndexStartsAtOne(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	tr.AddPacket(tcpRec(1, now, "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 0, packet.Fields{packet.FieldTCPSyn: true}))
	idx := tr.StreamIndexForPacket(tcpRec(1, now, "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 0, nil))
	assert.Equal(t, uint32(1), idx)
}

func TestStream_RetransmissionDetected(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	tr.AddPacket(tcpRec(1, now, "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 100, nil))
	tr.AddPacket(tcpRec(2, now.Add(time.Millisecond), "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 100, nil))

	s, ok := tr.GetTcpStream(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), s.ClientPackets)
	assert.Equal(t, uint64(1), s.Retransmissions)
}

func TestStream_GapDetected(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	tr.AddPacket(tcpRec(1, now, "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 100, nil))
	tr.AddPacket(tcpRec(2, now.Add(time.Millisecond), "10.0.0.1", 4000, "10.0.0.2", 80, 1300, 100, nil))

	s, ok := tr.GetTcpStream(1)
	require.True(t, ok)
	require.Len(t, s.ClientGaps, 1)
	assert.Equal(t, uint32(1100), s.ClientGaps[0].Start)
	assert.Equal(t, uint32(200), s.ClientGaps[0].Length)
	assert.Equal(t, uint64(1), s.OutOfOrder)
}

func TestStream_RawExportRoundTrip(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	p1 := tcpRec(1, now, "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 4, nil)
	p1.Payload = []byte("ping")
	p2 := tcpRec(2, now.Add(time.Millisecond), "10.0.0.2", 80, "10.0.0.1", 4000, 2000, 4, nil)
	p2.Payload = []byte("pong")

	tr.AddPacket(p1)
	tr.AddPacket(p2)

	dir, err := tempStreamExportDir(t)
	require.NoError(t, err)
	path := dir + "/stream.raw"

	require.NoError(t, tr.ExportStreamRaw(1, path))

	got := readFile(t, path)
	assert.Equal(t, "pingpong", got)
}

func TestStream_CompletesOnFin(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	tr.AddPacket(tcpRec(1, now, "10.0.0.1", 4000, "10.0.0.2", 80, 1000, 0, packet.Fields{packet.FieldTCPSyn: true}))
	tr.AddPacket(tcpRec(2, now.Add(time.Millisecond), "10.0.0.2", 80, "10.0.0.1", 4000, 2000, 0, packet.Fields{packet.FieldTCPFin: true}))

	s, ok := tr.GetTcpStream(1)
	require.True(t, ok)
	assert.True(t, s.IsComplete)
}
