// Package packet defines the shared, immutable packet record contract that
// the Conversation Tracker and the Statistics Engine both consume.
//
// Capture, dissection, and everything upstream of this record are out of
// scope: a Record is the unit of work a producer hands to both components.
package packet

import "time"

// Fields is the protocol-specific key-value bag carried on a Record. Absent
// keys default to the zero value for the accessor used, per spec.
type Fields map[string]interface{}

// Bool returns the boolean value stored at key, or false if absent or not a
// bool.
func (f Fields) Bool(key string) bool {
	if f == nil {
		return false
	}
	v, ok := f[key].(bool)
	return ok && v
}

// Uint32 returns the uint32 value stored at key, or 0 if absent. Accepts any
// of the common numeric encodings a JSON decoder or caller might produce.
func (f Fields) Uint32(key string) uint32 {
	if f == nil {
		return 0
	}
	switch v := f[key].(type) {
	case uint32:
		return v
	case uint64:
		return uint32(v)
	case int:
		return uint32(v)
	case int64:
		return uint32(v)
	case float64:
		return uint32(v)
	default:
		return 0
	}
}

// Well-known field keys used by the reliable-transport (TCP) analysis. A
// Record's Fields bag must supply these for the stream subsystem to function;
// missing keys default to zero/false.
const (
	FieldTCPSyn = "tcp.flags.syn"
	FieldTCPFin = "tcp.flags.fin"
	FieldTCPRst = "tcp.flags.rst"
	FieldTCPSeq = "tcp.seq"
	FieldTCPLen = "tcp.len"
)

// Record is one already-decoded packet, as produced by an upstream dissector.
// It is treated as immutable once constructed; the tracker and the engine
// never mutate a Record, only copy fields out of it.
type Record struct {
	Number    uint64
	Timestamp time.Time
	Length    uint64

	Protocol string

	SrcAddr string
	SrcPort uint16
	DstAddr string
	DstPort uint16

	HasError  bool
	ErrorInfo string

	// Payload is the raw segment/datagram payload, when a producer chooses
	// to carry it. It is optional: the stream subsystem's byte-accounting
	// (counts, retransmission/gap detection) relies only on Length and the
	// tcp.seq/tcp.len fields, never on Payload being present. Stream export
	// operations that return actual bytes do so on a best-effort basis and
	// return what was captured, which may be shorter than Length if Payload
	// was never supplied or was truncated upstream.
	Payload []byte

	Fields Fields
}

// ReliableTransport reports whether Protocol names the connection-oriented
// transport whose lifecycle is observed via SYN/FIN/RST (TCP).
func (r *Record) ReliableTransport() bool {
	return r != nil && r.Protocol == "TCP"
}

// Valid reports whether r is usable by the tracker/engine: non-nil with a
// non-empty protocol label. Malformed records are silently dropped by
// callers rather than rejected with an error, per spec.
func (r *Record) Valid() bool {
	return r != nil && r.Protocol != ""
}
