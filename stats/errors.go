package stats

import "github.com/packetloom/capcore/packet"

// unknownErrorType is the bucket key for an error record with an empty
// error_info field.
const unknownErrorType = "Unknown"

// recordErrorLocked buckets the error by type and appends one ErrorRecord to
// the retained sample while under MaxErrorSamples. The running ErrorCount
// and the per-type errorTypes counters are never capped; once the sample is
// full, further errors of any type still increment both but are not kept as
// samples.
func (e *Engine) recordErrorLocked(p *packet.Record) {
	e.capture.ErrorCount++

	errType := p.ErrorInfo
	if errType == "" {
		errType = unknownErrorType
	}
	if e.errorTypes == nil {
		e.errorTypes = make(map[string]uint64)
	}
	e.errorTypes[errType]++

	max := e.config.MaxErrorSamples
	if max <= 0 || len(e.errors) >= max {
		return
	}
	e.errors = append(e.errors, ErrorRecord{
		PacketNumber: p.Number,
		Timestamp:    p.Timestamp,
		Protocol:     p.Protocol,
		Info:         p.ErrorInfo,
	})
}

// GetErrorSamples returns a snapshot of the retained error sample, oldest
// first.
func (e *Engine) GetErrorSamples() []ErrorRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ErrorRecord(nil), e.errors...)
}

// GetErrorsByType returns the running error count bucketed by error_info,
// with an empty error_info counted under "Unknown". Unlike GetErrorSamples,
// this count is never capped by MaxErrorSamples.
func (e *Engine) GetErrorsByType() map[string]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]uint64, len(e.errorTypes))
	for k, v := range e.errorTypes {
		out[k] = v
	}
	return out
}
