package convo

import (
	"os"

	"github.com/pkg/errors"

	"github.com/packetloom/capcore/util"
)

// StreamDirection selects which side of a TCPStream ExportStreamData writes.
type StreamDirection int

const (
	ClientToServer StreamDirection = iota
	ServerToClient
	Interleaved
)

// ExportStreamData writes the reassembled payload of the stream with the
// given index to path, atomically (spec.md §7): readers never observe a
// partial file. It returns an error if the stream index is unknown.
func (t *Tracker) ExportStreamData(index uint32, path string, direction StreamDirection) error {
	stream, ok := t.GetTcpStream(index)
	if !ok {
		return errors.Errorf("convo: no tracked stream with index %d", index)
	}

	var data []byte
	switch direction {
	case ClientToServer:
		data = stream.clientData()
	case ServerToClient:
		data = stream.serverData()
	case Interleaved:
		data = stream.interleavedData()
	default:
		return errors.Errorf("convo: unknown stream direction %d", direction)
	}

	return util.AtomicWriteFile(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// ExportStreamRaw is an alias for ExportStreamData with Interleaved,
// matching the "raw" export operation spec.md §6 describes: the full
// captured byte sequence for the stream, both directions in arrival order.
func (t *Tracker) ExportStreamRaw(index uint32, path string) error {
	return t.ExportStreamData(index, path, Interleaved)
}
