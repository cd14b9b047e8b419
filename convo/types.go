package convo

import "time"

// Endpoint is one side of a conversation: an address/port pair.
type Endpoint struct {
	Addr string
	Port uint16
}

// Less implements the canonical ordering spec.md §4.1 uses to build flow
// keys: address lexicographically, ties broken by port.
func (e Endpoint) Less(o Endpoint) bool {
	if e.Addr != o.Addr {
		return e.Addr < o.Addr
	}
	return e.Port < o.Port
}

// Conversation is a bidirectional flow between two endpoints under one
// protocol. See spec.md §3.2 for the full invariant list; the short version:
//
//	PacketsAtoB + PacketsBtoA == len(PacketNumbers)
//	FirstPacketNum <= LastPacketNum
//	StartTime <= EndTime, Duration == EndTime - StartTime
//	IsComplete ⇔ HasSyn ∧ (HasFin ∨ HasRst), and once true stays true.
//
// EndpointA/EndpointB are assigned from the first packet's source/destination
// (A = source, B = destination) regardless of the canonical ordering used to
// compute the flow key — the key only has to be direction-independent, the
// struct itself does not.
type Conversation struct {
	ID       string
	Protocol string

	EndpointA Endpoint
	EndpointB Endpoint

	PacketsAtoB uint64
	PacketsBtoA uint64
	BytesAtoB   uint64
	BytesBtoA   uint64

	StartTime time.Time
	EndTime   time.Time
	Duration  float64 // seconds

	FirstPacketNum uint64
	LastPacketNum  uint64
	PacketNumbers  []uint64

	HasSyn     bool
	HasFin     bool
	HasRst     bool
	IsComplete bool
	SynPacketNum uint64
	FinPacketNum uint64

	ApplicationProtocol string
	Metadata            map[string]interface{}
}

// clone returns a value copy safe to hand to a caller: slices and maps are
// copied so the caller holds no reference into tracker-owned state.
func (c *Conversation) clone() Conversation {
	cp := *c
	if c.PacketNumbers != nil {
		cp.PacketNumbers = append([]uint64(nil), c.PacketNumbers...)
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

// Gap is a detected hole in a reassembled byte stream: length bytes missing
// starting at sequence number Start.
type Gap struct {
	Start  uint32
	Length uint32
}

// TCPStream is the directional reassembly state for one reliable-transport
// Conversation. See spec.md §3.3.
type TCPStream struct {
	Index          uint32
	ConversationID string

	Client Endpoint
	Server Endpoint

	ClientInitSeq uint32
	ServerInitSeq uint32
	ClientNextSeq uint32
	ServerNextSeq uint32

	// clientSeeded/serverSeeded record whether a segment has been observed
	// in that direction yet, so the first segment in each direction seeds
	// *NextSeq instead of being scored as a gap against an assumed zero.
	clientSeeded bool
	serverSeeded bool

	ClientPackets uint64
	ServerPackets uint64
	ClientBytes   uint64
	ServerBytes   uint64

	Retransmissions uint64
	OutOfOrder      uint64

	ClientGaps []Gap
	ServerGaps []Gap

	// ClientPayload and ServerPayload hold reassembled bytes in that
	// direction's arrival order. Segment captures interleaved arrival order
	// across both directions, for raw export modes that need it. Both are
	// empty unless packet.Record.Payload was supplied by the producer, and
	// both are truncated at Config.MaxStreamSize.
	ClientPayload []byte
	ServerPayload []byte
	Segments      []Segment

	IsComplete bool

	StartTime time.Time
	EndTime   time.Time
}

// Segment is one retained chunk of reassembled payload, in arrival order.
type Segment struct {
	ClientToServer bool
	Data           []byte
}

func (s *TCPStream) clone() TCPStream {
	cp := *s
	cp.ClientGaps = append([]Gap(nil), s.ClientGaps...)
	cp.ServerGaps = append([]Gap(nil), s.ServerGaps...)
	cp.ClientPayload = append([]byte(nil), s.ClientPayload...)
	cp.ServerPayload = append([]byte(nil), s.ServerPayload...)
	cp.Segments = append([]Segment(nil), s.Segments...)
	return cp
}

// HasGaps reports whether either direction of the stream has a detected gap.
func (s *TCPStream) HasGaps() bool {
	return len(s.ClientGaps) > 0 || len(s.ServerGaps) > 0
}
