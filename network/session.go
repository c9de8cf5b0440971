package network

import (
	"log"
	"time"

	"github.com/automoto/boomsync/config"
	"github.com/automoto/boomsync/shared/messages"
	"github.com/automoto/boomsync/shared/netconfig"
	"github.com/automoto/boomsync/systems"
	"golang.org/x/time/rate"
)

// DefaultProbeInterval is how often a session measures its RTT.
const DefaultProbeInterval = 500 * time.Millisecond

// Inbound is the part of Client a Session reads from.
type Inbound interface {
	DrainMessages() []any
	LatestConfig() *messages.ConfigUpdate
	SendToHost(msg any)
}

// Session drives a client Machine from the transport. Everything that
// arrived since the last tick is applied before the engine advances.
type Session struct {
	in      Inbound
	machine *systems.Machine
	latency *LatencyTracker
	configs *config.Store
	probe   rate.Sometimes
}

func NewSession(in Inbound, machine *systems.Machine, latency *LatencyTracker, configs *config.Store, probeEvery time.Duration) *Session {
	if probeEvery <= 0 {
		probeEvery = DefaultProbeInterval
	}
	return &Session{
		in:      in,
		machine: machine,
		latency: latency,
		configs: configs,
		probe:   rate.Sometimes{Interval: probeEvery},
	}
}

func (s *Session) Tick(dt time.Duration) {
	if upd := s.in.LatestConfig(); upd != nil {
		if err := s.configs.Set(upd.Config.Config()); err != nil {
			log.Printf("[client] ignoring config update: %v", err)
		}
	}

	for _, msg := range s.in.DrainMessages() {
		if !s.machine.HandleMessage(netconfig.HostConnection, msg) {
			log.Printf("[client] unhandled message %T", msg)
		}
	}

	s.probe.Do(func() {
		s.in.SendToHost(s.latency.NextProbe())
	})

	s.machine.Update(dt)
}

func (s *Session) Machine() *systems.Machine {
	return s.machine
}
