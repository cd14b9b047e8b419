// Package eventbus implements the advisory notification mechanism described
// in spec.md §9: a reimplementation of the original Qt-signal publish step
// as a subscription interface, keyed by event kind, invoked synchronously
// under the owning component's lock.
//
// Handlers MUST NOT call back into the component that is publishing from the
// same goroutine: Publish is called while the component's mutex is held, and
// re-entry deadlocks. This mirrors the re-entrancy prohibition spec.md calls
// out for the signal mechanism it replaces.
package eventbus

import "github.com/google/uuid"

// Kind identifies a notification kind, e.g. "conversation_added".
type Kind string

// Handler receives the id (conversation id, stream index as a string, etc.)
// associated with the event, when one exists. Handlers are invoked in
// publish order, matching ingestion order per spec.md §5.
type Handler func(id string)

// Bus is a minimal synchronous pub/sub table. It is NOT itself safe for
// concurrent use; callers embed it inside a component and rely on that
// component's own mutex for exclusion, consistent with spec.md's "per
// component" mutex scope.
type Bus struct {
	handlers map[Kind]map[uuid.UUID]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Kind]map[uuid.UUID]Handler)}
}

// Subscribe registers h for events of the given kind and returns a handle
// that can later be passed to Unsubscribe.
func (b *Bus) Subscribe(kind Kind, h Handler) uuid.UUID {
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uuid.UUID]Handler)
	}
	id := uuid.New()
	b.handlers[kind][id] = h
	return id
}

// Unsubscribe removes the handler previously returned by Subscribe. It is a
// no-op if the handle is unknown.
func (b *Bus) Unsubscribe(kind Kind, handle uuid.UUID) {
	delete(b.handlers[kind], handle)
}

// Publish invokes every handler registered for kind, in registration order
// being unspecified (map iteration) but delivery relative to OTHER kinds and
// other Publish calls matches ingestion order, since Publish itself is only
// ever called while the owning component's single mutex is held.
func (b *Bus) Publish(kind Kind, id string) {
	for _, h := range b.handlers[kind] {
		h(id)
	}
}

// Well-known event kinds emitted by convo.Tracker and stats.Engine.
const (
	ConversationAdded     Kind = "conversation_added"
	ConversationUpdated   Kind = "conversation_updated"
	ConversationCompleted Kind = "conversation_completed"
	TCPStreamCreated      Kind = "tcp_stream_created"
	TCPStreamUpdated      Kind = "tcp_stream_updated"
	TCPStreamComplete     Kind = "tcp_stream_complete"
	StatisticsUpdated     Kind = "statistics_updated"
	RateUpdated           Kind = "rate_updated"
	ProtocolStatsUpdated  Kind = "protocol_stats_updated"
	EndpointStatsUpdated  Kind = "endpoint_stats_updated"
)
