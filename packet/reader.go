package packet

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
)

// wireRecord is the JSON-Lines wire shape for a Record. TimestampUnixMillis
// keeps the on-disk format independent of time.Time's JSON quirks.
type wireRecord struct {
	Number             uint64                 `json:"number"`
	TimestampUnixMillis int64                 `json:"timestamp_ms"`
	Length             uint64                 `json:"length"`
	Protocol           string                 `json:"protocol"`
	SrcAddr            string                 `json:"src_addr"`
	SrcPort            uint16                 `json:"src_port"`
	DstAddr            string                 `json:"dst_addr"`
	DstPort            uint16                 `json:"dst_port"`
	HasError           bool                   `json:"has_error"`
	ErrorInfo          string                 `json:"error_info"`
	Payload            []byte                 `json:"payload,omitempty"`
	Fields             map[string]interface{} `json:"fields"`
}

// Reader decodes a stream of newline-delimited JSON packet records, the
// format produced by `capcore ingest`'s upstream producers.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for line-oriented JSON decoding. Lines are allowed to be
// arbitrarily long capture payloads, so the scanner's buffer is grown well
// past bufio's 64KiB default.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: s}
}

// Next decodes the next record. It returns io.EOF when the stream is
// exhausted. Blank lines are skipped.
func (rd *Reader) Next() (*Record, error) {
	for rd.scanner.Scan() {
		line := rd.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var wire wireRecord
		if err := json.Unmarshal(line, &wire); err != nil {
			return nil, errors.Wrap(err, "failed to decode packet record")
		}

		return &Record{
			Number:    wire.Number,
			Timestamp: time.UnixMilli(wire.TimestampUnixMillis),
			Length:    wire.Length,
			Protocol:  wire.Protocol,
			SrcAddr:   wire.SrcAddr,
			SrcPort:   wire.SrcPort,
			DstAddr:   wire.DstAddr,
			DstPort:   wire.DstPort,
			HasError:  wire.HasError,
			ErrorInfo: wire.ErrorInfo,
			Payload:   wire.Payload,
			Fields:    Fields(wire.Fields),
		}, nil
	}

	if err := rd.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read packet record stream")
	}
	return nil, io.EOF
}
