package session

import "sync/atomic"

// Stats counts traffic through one session. Byte counts include frame headers.
type Stats struct {
	FramesIn  uint64 `json:"frames_in"`
	FramesOut uint64 `json:"frames_out"`
	BytesIn   uint64 `json:"bytes_in"`
	BytesOut  uint64 `json:"bytes_out"`
}

type counters struct {
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
}

// Stats returns a snapshot that is safe to read from any goroutine.
func (s *Session) Stats() Stats {
	return Stats{
		FramesIn:  s.stats.framesIn.Load(),
		FramesOut: s.stats.framesOut.Load(),
		BytesIn:   s.stats.bytesIn.Load(),
		BytesOut:  s.stats.bytesOut.Load(),
	}
}
