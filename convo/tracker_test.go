package convo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConversations = 100
	cfg.ConversationTimeout = 0
	cfg.EnableStreamReassembly = true
	cfg.MaxStreamSize = 1 << 20
	return cfg
}

func rec(n uint64, t time.Time, proto, srcAddr string, srcPort uint16, dstAddr string, dstPort uint16, length uint64) *packet.Record {
	return &packet.Record{
		Number:    n,
		Timestamp: t,
		Length:    length,
		Protocol:  proto,
		SrcAddr:   srcAddr,
		SrcPort:   srcPort,
		DstAddr:   dstAddr,
		DstPort:   dstPort,
	}
}

func TestAddPacket_CreatesConversationOnFirstPacket(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	tr.AddPacket(rec(1, now, "UDP", "10.0.0.1", 5000, "10.0.0.2", 53, 64))

	all := tr.GetAllConversations()
	require.Len(t, all, 1)
	c := all[0]
	assert.Equal(t, uint64(1), c.PacketsAtoB)
	assert.Equal(t, uint64(0), c.PacketsBtoA)
	assert.Equal(t, uint64(64), c.BytesAtoB)
	assert.Equal(t, "DNS", c.ApplicationProtocol)
}

func TestAddPacket_BothDirectionsShareOneConversation(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	tr.AddPacket(rec(1, now, "UDP", "10.0.0.1", 5000, "10.0.0.2", 53, 40))
	tr.AddPacket(rec(2, now.Add(time.Millisecond), "UDP", "10.0.0.2", 53, "10.0.0.1", 5000, 80))

	all := tr.GetAllConversations()
	require.Len(t, all, 1)
	c := all[0]
	assert.Equal(t, uint64(1), c.PacketsAtoB)
	assert.Equal(t, uint64(1), c.PacketsBtoA)
	assert.Equal(t, uint64(40), c.BytesAtoB)
	assert.Equal(t, uint64(80), c.BytesBtoA)
	assert.Equal(t, []uint64{1, 2}, c.PacketNumbers)
}

func TestAddPacket_TCPLifecycle(t *testing.T) {
	tr := NewTracker(testConfig())
	now := time.Now()

	syn := rec(1, now, "TCP", "10.0.0.1", 5000, "10.0.0.2", 80, 0)
	syn.Fields = packet.Fields{packet.FieldTCPSyn: true, packet.FieldTCPSeq: uint32(1000), packet.FieldTCPLen: uint32(0)}
	tr.AddPacket(syn)

	data := rec(2, now.Add(time.Millisecond), "TCP", "10.0.0.1", 5000, "10.0.0.2", 80, 100)
	data.Fields = packet.Fields{packet.FieldTCPSeq: uint32(1000), packet.FieldTCPLen: uint32(100)}
	tr.AddPacket(data)

	fin := rec(3, now.Add(2*time.Millisecond), "TCP", "10.0.0.2", 80, "10.0.0.1", 5000, 0)
	fin.Fields = packet.Fields{packet.FieldTCPFin: true, packet.FieldTCPSeq: uint32(2000), packet.FieldTCPLen: uint32(0)}
	tr.AddPacket(fin)

	all := tr.GetAllConversations()
	require.Len(t, all, 1)
	c := all[0]
	assert.True(t, c.HasSyn)
	assert.True(t, c.HasFin)
	assert.True(t, c.IsComplete)
}

func TestCapEviction_RemovesOldestByEndTime(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConversations = 2
	tr := NewTracker(cfg)
	base := time.Now()

	tr.AddPacket(rec(1, base, "UDP", "10.0.0.1", 1, "10.0.0.9", 53, 10))
	tr.AddPacket(rec(2, base.Add(time.Second), "UDP", "10.0.0.2", 1, "10.0.0.9", 53, 10))
	tr.AddPacket(rec(3, base.Add(2*time.Second), "UDP", "10.0.0.3", 1, "10.0.0.9", 53, 10))

	assert.Equal(t, 2, tr.Count())
	_, ok := tr.GetConversation(flowKey("UDP", Endpoint{"10.0.0.1", 1}, Endpoint{"10.0.0.9", 53}))
	assert.False(t, ok, "oldest conversation should have been evicted")
}

func TestEvictExpired_RemovesStaleConversations(t *testing.T) {
	cfg := testConfig()
	cfg.ConversationTimeout = time.Minute
	tr := NewTracker(cfg)
	base := time.Now()

	tr.AddPacket(rec(1, base, "UDP", "10.0.0.1", 1, "10.0.0.9", 53, 10))
	removed := tr.EvictExpired(base.Add(2 * time.Minute))

	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, tr.Count())
}

func TestGetTopConversationsByPackets(t *testing.T) {
	tr := NewTracker(testConfig())
	base := time.Now()

	for i := 0; i < 5; i++ {
		tr.AddPacket(rec(uint64(i), base, "UDP", "10.0.0.1", 1, "10.0.0.9", 53, 10))
	}
	tr.AddPacket(rec(100, base, "UDP", "10.0.0.2", 1, "10.0.0.9", 53, 10))

	top := tr.GetTopConversationsByPackets(1)
	require.Len(t, top, 1)
	assert.Equal(t, uint64(5), top[0].PacketsAtoB)
}

func TestGetTotalTraffic_SurvivesEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConversations = 1
	tr := NewTracker(cfg)
	base := time.Now()

	tr.AddPacket(rec(1, base, "UDP", "10.0.0.1", 1, "10.0.0.9", 53, 10))
	tr.AddPacket(rec(2, base.Add(time.Second), "UDP", "10.0.0.2", 1, "10.0.0.9", 53, 20))

	packets, bytes := tr.GetTotalTraffic()
	assert.Equal(t, uint64(2), packets)
	assert.Equal(t, uint64(30), bytes)
}

func TestSubscribe_ConversationAdded(t *testing.T) {
	tr := NewTracker(testConfig())
	var seen []string
	tr.Subscribe(eventbus.ConversationAdded, func(id string) { seen = append(seen, id) })

	tr.AddPacket(rec(1, time.Now(), "UDP", "10.0.0.1", 1, "10.0.0.9", 53, 10))
	tr.AddPacket(rec(2, time.Now(), "UDP", "10.0.0.1", 1, "10.0.0.9", 53, 10))

	assert.Len(t, seen, 1, "second packet reuses the same conversation")
}
