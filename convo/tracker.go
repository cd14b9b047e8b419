// Package convo implements the Conversation Tracker: it folds a stream of
// packet.Record values into bidirectional Conversation summaries and, for
// reliable-transport conversations, a lazily-reassembled TCPStream.
//
// A Tracker is safe for concurrent use; one mutex serializes every
// operation, matching the single-writer-many-readers model the rest of the
// corpus's connection trackers use (tcp_conn_tracker.go's map-of-structs
// guarded by a single sync.Mutex).
package convo

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/packetloom/capcore/eventbus"
	"github.com/packetloom/capcore/packet"
)

// Tracker is the Conversation Tracker. Construct with NewTracker.
type Tracker struct {
	mu     sync.Mutex
	config Config
	events *eventbus.Bus

	conversations map[string]*Conversation

	streamByConversation map[string]*TCPStream
	streamsByIndex       map[uint32]*TCPStream
	nextStreamIndex      uint32

	totalPackets uint64
	totalBytes   uint64
}

// NewTracker returns an empty Tracker configured with cfg.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		config:               cfg,
		events:               eventbus.New(),
		conversations:        make(map[string]*Conversation),
		streamByConversation: make(map[string]*TCPStream),
		streamsByIndex:       make(map[uint32]*TCPStream),
		nextStreamIndex:      1,
	}
}

// Subscribe registers h for notifications of the given kind. The returned
// handle can be passed to Unsubscribe. See eventbus's package doc for the
// re-entrancy rule: h must not call back into the Tracker.
func (t *Tracker) Subscribe(kind eventbus.Kind, h eventbus.Handler) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events.Subscribe(kind, h)
}

// Unsubscribe removes a handler previously registered with Subscribe.
func (t *Tracker) Unsubscribe(kind eventbus.Kind, handle uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events.Unsubscribe(kind, handle)
}

// flowKey builds the direction-independent identity of a conversation
// between a and b under protocol: the lower endpoint (by Endpoint.Less)
// first, so the two directions of the same flow always collide.
func flowKey(protocol string, a, b Endpoint) string {
	if b.Less(a) {
		a, b = b, a
	}
	return fmt.Sprintf("%s_%s:%d_%s:%d", protocol, a.Addr, a.Port, b.Addr, b.Port)
}

// AddPacket folds one packet into the tracker: the owning conversation is
// created or updated, its TCP stream (if applicable) is updated, and
// cap-based eviction runs if the conversation table has grown past
// MaxConversations. Invalid records (see packet.Record.Valid) are dropped
// silently.
func (t *Tracker) AddPacket(p *packet.Record) {
	if !p.Valid() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.ConversationTimeout > 0 {
		t.evictExpiredLocked(p.Timestamp)
	}

	a := Endpoint{Addr: p.SrcAddr, Port: p.SrcPort}
	b := Endpoint{Addr: p.DstAddr, Port: p.DstPort}
	key := flowKey(p.Protocol, a, b)

	conv, exists := t.conversations[key]
	if !exists {
		conv = &Conversation{
			ID:             key,
			Protocol:       p.Protocol,
			EndpointA:      a,
			EndpointB:      b,
			StartTime:      p.Timestamp,
			EndTime:        p.Timestamp,
			FirstPacketNum: p.Number,
		}
		t.conversations[key] = conv
		t.events.Publish(eventbus.ConversationAdded, conv.ID)
	}

	t.updateConversationLocked(conv, p)

	if p.ReliableTransport() && t.config.EnableStreamReassembly {
		t.processTCPLocked(conv, p)
	}

	t.totalPackets++
	t.totalBytes += p.Length
	t.events.Publish(eventbus.StatisticsUpdated, conv.ID)

	if t.config.MaxConversations > 0 && uint64(len(t.conversations)) > t.config.MaxConversations {
		t.evictOneLocked()
	}
}

// updateConversationLocked folds one packet into an existing conversation.
func (t *Tracker) updateConversationLocked(conv *Conversation, p *packet.Record) {
	if p.SrcAddr == conv.EndpointA.Addr && p.SrcPort == conv.EndpointA.Port {
		conv.PacketsAtoB++
		conv.BytesAtoB += p.Length
	} else {
		conv.PacketsBtoA++
		conv.BytesBtoA += p.Length
	}

	if p.Timestamp.After(conv.EndTime) {
		conv.EndTime = p.Timestamp
	}
	conv.Duration = conv.EndTime.Sub(conv.StartTime).Seconds()
	conv.LastPacketNum = p.Number
	conv.PacketNumbers = append(conv.PacketNumbers, p.Number)

	if conv.ApplicationProtocol == "" {
		conv.ApplicationProtocol = applicationProtocol(conv.EndpointA, conv.EndpointB)
	}

	wasComplete := conv.IsComplete
	if p.ReliableTransport() {
		if p.Fields.Bool(packet.FieldTCPSyn) && !conv.HasSyn {
			conv.HasSyn = true
			conv.SynPacketNum = p.Number
		}
		if p.Fields.Bool(packet.FieldTCPFin) && !conv.HasFin {
			conv.HasFin = true
			conv.FinPacketNum = p.Number
		}
		if p.Fields.Bool(packet.FieldTCPRst) {
			conv.HasRst = true
		}
		if conv.HasSyn && (conv.HasFin || conv.HasRst) {
			conv.IsComplete = true
		}
	}

	if conv.IsComplete && !wasComplete {
		t.events.Publish(eventbus.ConversationCompleted, conv.ID)
	} else {
		t.events.Publish(eventbus.ConversationUpdated, conv.ID)
	}
}

// evictOneLocked removes the conversation with the smallest EndTime, the
// cap-eviction policy spec.md §4.1 describes: a plain O(n) scan, since
// evictions only happen once the table is already past its cap.
func (t *Tracker) evictOneLocked() {
	var victim string
	var victimTime time.Time
	first := true
	for k, c := range t.conversations {
		if first || c.EndTime.Before(victimTime) {
			victim, victimTime, first = k, c.EndTime, false
		}
	}
	if !first {
		t.removeConversationLocked(victim)
	}
}

// EvictExpired removes every conversation whose last activity is older than
// now minus ConversationTimeout, implementing the age-based eviction
// spec.md §9 flags as specified-but-unenforced. It returns the number of
// conversations removed. A zero ConversationTimeout disables this and
// always returns 0.
func (t *Tracker) EvictExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictExpiredLocked(now)
}

func (t *Tracker) evictExpiredLocked(now time.Time) int {
	if t.config.ConversationTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-t.config.ConversationTimeout)

	var victims []string
	for k, c := range t.conversations {
		if c.EndTime.Before(cutoff) {
			victims = append(victims, k)
		}
	}
	for _, k := range victims {
		t.removeConversationLocked(k)
	}
	return len(victims)
}

func (t *Tracker) removeConversationLocked(key string) {
	delete(t.conversations, key)
	if s, ok := t.streamByConversation[key]; ok {
		delete(t.streamByConversation, key)
		delete(t.streamsByIndex, s.Index)
	}
}

// Clear resets the Tracker to its just-constructed state: every
// conversation, stream, and running total is discarded. Subscriptions are
// left intact.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conversations = make(map[string]*Conversation)
	t.streamByConversation = make(map[string]*TCPStream)
	t.streamsByIndex = make(map[uint32]*TCPStream)
	t.nextStreamIndex = 1
	t.totalPackets = 0
	t.totalBytes = 0
}

// GetConversation returns a snapshot of the conversation with the given id.
func (t *Tracker) GetConversation(id string) (Conversation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

// GetAllConversations returns a snapshot of every tracked conversation.
func (t *Tracker) GetAllConversations() []Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(func(*Conversation) bool { return true })
}

// GetConversationsByProtocol returns every conversation tagged with the
// given transport protocol (e.g. "TCP", "UDP").
func (t *Tracker) GetConversationsByProtocol(protocol string) []Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(func(c *Conversation) bool { return c.Protocol == protocol })
}

// FilterConversations returns every conversation with address on either
// side.
func (t *Tracker) FilterConversations(address string) []Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(func(c *Conversation) bool {
		return c.EndpointA.Addr == address || c.EndpointB.Addr == address
	})
}

// FilterConversationsByPort returns every conversation with port on either
// side.
func (t *Tracker) FilterConversationsByPort(port uint16) []Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(func(c *Conversation) bool {
		return c.EndpointA.Port == port || c.EndpointB.Port == port
	})
}

// GetActiveConversations returns every conversation with activity at or
// after since.
func (t *Tracker) GetActiveConversations(since time.Time) []Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(func(c *Conversation) bool {
		return !c.EndTime.Before(since)
	})
}

func (t *Tracker) snapshotLocked(keep func(*Conversation) bool) []Conversation {
	out := make([]Conversation, 0, len(t.conversations))
	for _, c := range t.conversations {
		if keep(c) {
			out = append(out, c.clone())
		}
	}
	return out
}

// GetTopConversationsByPackets returns the n conversations with the highest
// total packet count (both directions), descending.
func (t *Tracker) GetTopConversationsByPackets(n int) []Conversation {
	return t.topConversations(n, func(c *Conversation) uint64 { return c.PacketsAtoB + c.PacketsBtoA })
}

// GetTopConversationsByBytes returns the n conversations with the highest
// total byte count (both directions), descending.
func (t *Tracker) GetTopConversationsByBytes(n int) []Conversation {
	return t.topConversations(n, func(c *Conversation) uint64 { return c.BytesAtoB + c.BytesBtoA })
}

func (t *Tracker) topConversations(n int, score func(*Conversation) uint64) []Conversation {
	t.mu.Lock()
	all := t.snapshotLocked(func(*Conversation) bool { return true })
	t.mu.Unlock()

	slices.SortFunc(all, func(a, b Conversation) bool { return score(&a) > score(&b) })
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// GetConversationCountByProtocol returns the number of tracked conversations
// per protocol label.
func (t *Tracker) GetConversationCountByProtocol() map[string]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]uint64)
	for _, c := range t.conversations {
		out[c.Protocol]++
	}
	return out
}

// GetTotalTraffic returns the running total packet and byte counts across
// every conversation the Tracker has ever seen, including ones since
// evicted.
func (t *Tracker) GetTotalTraffic() (packets, bytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalPackets, t.totalBytes
}

// GetConversationPackets returns the packet numbers belonging to the
// conversation with the given id, in arrival order.
func (t *Tracker) GetConversationPackets(id string) ([]uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conversations[id]
	if !ok {
		return nil, false
	}
	return append([]uint64(nil), c.PacketNumbers...), true
}

// Count returns the number of conversations currently tracked.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conversations)
}
