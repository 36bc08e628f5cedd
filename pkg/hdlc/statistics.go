package hdlc

// Statistics counts frame traffic on one connection. The counters
// are owned by the connection driver and read through Snapshot.
type Statistics struct {
	FramesSent       uint64
	FramesReceived   uint64
	ChecksumFailures uint64
	Discarded        uint64
	Retransmissions  uint64
	SegmentsReassembled uint64
}

// Snapshot returns a copy of the counters.
func (s *Statistics) Snapshot() Statistics {
	return *s
}
