package convo

import (
	"strconv"

	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

// processTCPLocked resolves or creates the TCPStream for conv and folds p
// into it. Called with the Tracker's mutex already held.
func (t *Tracker) processTCPLocked(conv *Conversation, p *packet.Record) {
	stream, ok := t.streamByConversation[conv.ID]
	if !ok {
		stream = &TCPStream{
			ConversationID: conv.ID,
			Client:         Endpoint{Addr: p.SrcAddr, Port: p.SrcPort},
			Server:         Endpoint{Addr: p.DstAddr, Port: p.DstPort},
			StartTime:      p.Timestamp,
			EndTime:        p.Timestamp,
		}
		// Stream indices start at 1; 0 is reserved to mean "no stream" for
		// StreamIndexForPacket, so a caller can tell "not TCP" apart from
		// "index 0" without an extra bool return.
		stream.Index = t.nextStreamIndex
		t.nextStreamIndex++

		t.streamByConversation[conv.ID] = stream
		t.streamsByIndex[stream.Index] = stream
		t.events.Publish(eventbus.TCPStreamCreated, streamEventID(stream.Index))
	}

	wasComplete := stream.IsComplete
	clientToServer := p.SrcAddr == stream.Client.Addr && p.SrcPort == stream.Client.Port
	t.addSegmentLocked(stream, p, clientToServer)

	if p.Fields.Bool(packet.FieldTCPFin) || p.Fields.Bool(packet.FieldTCPRst) {
		stream.IsComplete = true
	}

	if stream.IsComplete && !wasComplete {
		t.events.Publish(eventbus.TCPStreamComplete, streamEventID(stream.Index))
	} else {
		t.events.Publish(eventbus.TCPStreamUpdated, streamEventID(stream.Index))
	}
}

// addSegmentLocked folds one TCP segment into stream's directional byte
// accounting: retransmission detection, gap detection, and (when the
// producer supplied payload bytes) reassembly, bounded by MaxStreamSize.
func (t *Tracker) addSegmentLocked(stream *TCPStream, p *packet.Record, clientToServer bool) {
	seq := p.Fields.Uint32(packet.FieldTCPSeq)
	length := p.Fields.Uint32(packet.FieldTCPLen)

	nextSeq, seeded := stream.ServerNextSeq, stream.serverSeeded
	if clientToServer {
		nextSeq, seeded = stream.ClientNextSeq, stream.clientSeeded
	}

	if length == 0 {
		if !seeded {
			t.seedNextSeq(stream, clientToServer, seq)
		}
		return
	}

	if seeded && seq+length <= nextSeq {
		stream.Retransmissions++
		return
	}

	if clientToServer {
		stream.ClientPackets++
		stream.ClientBytes += uint64(length)
	} else {
		stream.ServerPackets++
		stream.ServerBytes += uint64(length)
	}
	if p.Timestamp.After(stream.EndTime) {
		stream.EndTime = p.Timestamp
	}

	if seeded && seq > nextSeq {
		gap := Gap{Start: nextSeq, Length: seq - nextSeq}
		if clientToServer {
			stream.ClientGaps = append(stream.ClientGaps, gap)
		} else {
			stream.ServerGaps = append(stream.ServerGaps, gap)
		}
		stream.OutOfOrder++
	}

	t.appendPayloadLocked(stream, clientToServer, p.Payload)

	newNext := seq + length
	if !seeded || newNext > nextSeq {
		t.seedNextSeq(stream, clientToServer, newNext)
	}
}

func (t *Tracker) seedNextSeq(stream *TCPStream, clientToServer bool, seq uint32) {
	if clientToServer {
		stream.ClientNextSeq = seq
		stream.clientSeeded = true
		if stream.ClientInitSeq == 0 {
			stream.ClientInitSeq = seq
		}
	} else {
		stream.ServerNextSeq = seq
		stream.serverSeeded = true
		if stream.ServerInitSeq == 0 {
			stream.ServerInitSeq = seq
		}
	}
}

// appendPayloadLocked stores payload bytes for export, truncating at
// MaxStreamSize per direction. A zero MaxStreamSize disables storage
// entirely while byte-accounting keeps working off Length alone.
func (t *Tracker) appendPayloadLocked(stream *TCPStream, clientToServer bool, payload []byte) {
	if len(payload) == 0 || t.config.MaxStreamSize == 0 {
		return
	}

	var dst *[]byte
	if clientToServer {
		dst = &stream.ClientPayload
	} else {
		dst = &stream.ServerPayload
	}
	room := int64(t.config.MaxStreamSize) - int64(len(*dst))
	if room <= 0 {
		return
	}
	if int64(len(payload)) > room {
		payload = payload[:room]
	}
	*dst = append(*dst, payload...)
	stream.Segments = append(stream.Segments, Segment{ClientToServer: clientToServer, Data: append([]byte(nil), payload...)})
}

func streamEventID(index uint32) string {
	return strconv.FormatUint(uint64(index), 10)
}

// GetAllTcpStreams returns a snapshot of every tracked TCP stream.
func (t *Tracker) GetAllTcpStreams() []TCPStream {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TCPStream, 0, len(t.streamsByIndex))
	for _, s := range t.streamsByIndex {
		out = append(out, s.clone())
	}
	return out
}

// GetTcpStream returns the stream with the given index.
func (t *Tracker) GetTcpStream(index uint32) (TCPStream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streamsByIndex[index]
	if !ok {
		return TCPStream{}, false
	}
	return s.clone(), true
}

// GetTcpStreamForPacket returns the stream belonging to p's conversation, if
// p is a reliable-transport packet and that conversation has one.
func (t *Tracker) GetTcpStreamForPacket(p *packet.Record) (TCPStream, bool) {
	if !p.ReliableTransport() {
		return TCPStream{}, false
	}
	key := flowKey(p.Protocol, Endpoint{Addr: p.SrcAddr, Port: p.SrcPort}, Endpoint{Addr: p.DstAddr, Port: p.DstPort})

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streamByConversation[key]
	if !ok {
		return TCPStream{}, false
	}
	return s.clone(), true
}

// StreamIndexForPacket returns the stream index for p's conversation, or 0
// if p isn't part of any tracked TCP stream (index 0 is never allocated).
func (t *Tracker) StreamIndexForPacket(p *packet.Record) uint32 {
	s, ok := t.GetTcpStreamForPacket(p)
	if !ok {
		return 0
	}
	return s.Index
}

// clientData, serverData, and interleavedData return reassembled payload
// bytes for the three export directions ExportStreamData supports.
func (s *TCPStream) clientData() []byte { return s.ClientPayload }
func (s *TCPStream) serverData() []byte { return s.ServerPayload }
func (s *TCPStream) interleavedData() []byte {
	var out []byte
	for _, seg := range s.Segments {
		out = append(out, seg.Data...)
	}
	return out
}
