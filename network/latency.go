package network

import (
	"sync"
	"time"

	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
)

// DefaultSmoothing is the weight of a new RTT sample.
const DefaultSmoothing = 0.125

// LatencyTracker keeps a smoothed round-trip time per connection. Clients
// measure it with probes; the host takes the value each client reports so
// both ends predict with the same number.
// Safe for concurrent use: echoes arrive on transport goroutines.
type LatencyTracker struct {
	mu    sync.RWMutex
	alpha float64
	rtt   map[netconfig.ConnectionID]time.Duration
	seq   uint32
	now   func() time.Time
}

func NewLatencyTracker(alpha float64, now func() time.Time) *LatencyTracker {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSmoothing
	}
	if now == nil {
		now = time.Now
	}
	return &LatencyTracker{
		alpha: alpha,
		rtt:   make(map[netconfig.ConnectionID]time.Duration),
		now:   now,
	}
}

// RTT implements systems.LatencyProvider. Unknown connections report zero.
func (t *LatencyTracker) RTT(conn netconfig.ConnectionID) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rtt[conn]
}

// Observe folds a raw sample into the moving average. The first sample is
// taken as is.
func (t *LatencyTracker) Observe(conn netconfig.ConnectionID, sample time.Duration) {
	if sample < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.rtt[conn]
	if !ok {
		t.rtt[conn] = sample
		return
	}
	t.rtt[conn] = cur + time.Duration(t.alpha*float64(sample-cur))
}

// Report replaces the value for conn with one the peer already smoothed.
func (t *LatencyTracker) Report(conn netconfig.ConnectionID, rtt time.Duration) {
	if rtt < 0 {
		return
	}
	t.mu.Lock()
	t.rtt[conn] = rtt
	t.mu.Unlock()
}

func (t *LatencyTracker) Forget(conn netconfig.ConnectionID) {
	t.mu.Lock()
	delete(t.rtt, conn)
	t.mu.Unlock()
}

// NextProbe builds the next probe for the host.
func (t *LatencyTracker) NextProbe() messages.LatencyProbe {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	rtt := t.rtt[netconfig.HostConnection]
	t.mu.Unlock()

	return messages.LatencyProbe{
		Seq:       seq,
		SentAtMs:  t.now().UnixMilli(),
		LastRTTMs: messages.ToMs(rtt),
	}
}

// HandleEcho turns a returned probe into a sample for the host connection.
func (t *LatencyTracker) HandleEcho(echo messages.LatencyEcho) {
	sent := time.UnixMilli(echo.SentAtMs)
	t.Observe(netconfig.HostConnection, t.now().Sub(sent))
}

// Echo answers a client's probe on the host and records the RTT it reported.
func (t *LatencyTracker) Echo(conn netconfig.ConnectionID, probe messages.LatencyProbe) messages.LatencyEcho {
	if probe.LastRTTMs > 0 {
		t.Report(conn, messages.FromMs(probe.LastRTTMs))
	}
	return messages.LatencyEcho{Seq: probe.Seq, SentAtMs: probe.SentAtMs}
}
