package messages

// LatencyProbe is sent by the client a few times per second. LastRTTMs
// carries the client's smoothed RTT so the host predicts with the same value.
type LatencyProbe struct {
	Seq       uint32
	SentAtMs  int64
	LastRTTMs float64
}

// LatencyEcho returns a probe unchanged.
type LatencyEcho struct {
	Seq      uint32
	SentAtMs int64
}
