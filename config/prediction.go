package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid prediction config")

// PredictionConfig holds the per-connection prediction tunables. Durations are
// one-way unless the name says otherwise; pings are round-trip times.
type PredictionConfig struct {
	MaxPredictionPing  time.Duration // Cap on how far an authoritative instance is fast-forwarded
	ClientBiasPct      float64       // 0 = no fast-forward, 1 = full fast-forward
	LatencyFudge       time.Duration // Subtracted from the one-way latency before prediction
	MinVisibleLifetime time.Duration // Observers see every shot for at least this long

	InaccuracyTolerance  float64       // Detonations farther apart than this are corrected
	LerpRate             float64       // Fraction of initial speed per second used to converge visuals
	PrematureWindowScale float64       // Stretch applied to the expected wait for the host's result
	PrematureWindowMin   time.Duration // Slack added to every premature window
	LinkTimeout          time.Duration // Give up waiting for the authoritative counterpart
}

// DefaultPrediction is applied to every connection without an override.
var DefaultPrediction = PredictionConfig{
	MaxPredictionPing:  120 * time.Millisecond,
	ClientBiasPct:      0.5,
	LatencyFudge:       20 * time.Millisecond,
	MinVisibleLifetime: 150 * time.Millisecond,

	InaccuracyTolerance:  100,
	LerpRate:             0.0005,
	PrematureWindowScale: 1.25,
	PrematureWindowMin:   60 * time.Millisecond,
	LinkTimeout:          2 * time.Second,
}

// Validate reports the first out-of-range field.
func (c PredictionConfig) Validate() error {
	switch {
	case c.MaxPredictionPing < 0:
		return fmt.Errorf("%w: MaxPredictionPing %v < 0", ErrInvalidConfig, c.MaxPredictionPing)
	case c.ClientBiasPct < 0 || c.ClientBiasPct > 1:
		return fmt.Errorf("%w: ClientBiasPct %v outside [0,1]", ErrInvalidConfig, c.ClientBiasPct)
	case c.LatencyFudge < 0:
		return fmt.Errorf("%w: LatencyFudge %v < 0", ErrInvalidConfig, c.LatencyFudge)
	case c.MinVisibleLifetime < 0:
		return fmt.Errorf("%w: MinVisibleLifetime %v < 0", ErrInvalidConfig, c.MinVisibleLifetime)
	case c.InaccuracyTolerance < 0:
		return fmt.Errorf("%w: InaccuracyTolerance %v < 0", ErrInvalidConfig, c.InaccuracyTolerance)
	case c.LerpRate < 0:
		return fmt.Errorf("%w: LerpRate %v < 0", ErrInvalidConfig, c.LerpRate)
	case c.PrematureWindowScale < 0 || c.PrematureWindowMin < 0:
		return fmt.Errorf("%w: negative premature window", ErrInvalidConfig)
	case c.LinkTimeout <= 0:
		return fmt.Errorf("%w: LinkTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// rawPrediction is the one-way latency left after the fudge, never negative.
func (c PredictionConfig) rawPrediction(rtt time.Duration) time.Duration {
	raw := rtt/2 - c.LatencyFudge
	if raw < 0 {
		return 0
	}
	return raw
}

// ForwardPrediction is how far the host advances a freshly spawned
// authoritative instance for a connection with the given RTT.
func (c PredictionConfig) ForwardPrediction(rtt time.Duration) time.Duration {
	raw := c.rawPrediction(rtt)
	if raw > c.MaxPredictionPing {
		raw = c.MaxPredictionPing
	}
	return time.Duration(c.ClientBiasPct * float64(raw))
}

// SpawnDelay is how long the firing machine waits before creating the
// predicted instance: the part of the latency the cap refuses to compensate.
func (c PredictionConfig) SpawnDelay(rtt time.Duration) time.Duration {
	excess := c.rawPrediction(rtt) - c.MaxPredictionPing
	if excess < 0 {
		return 0
	}
	return excess
}

// hopTicks is how many loop ticks a result can sit in queues between a
// shot's detonation on the host and its arrival on the firing machine.
const hopTicks = 3

// PrematureWindow is how long a predicted detonation waits for the
// authoritative one before it is treated as a misprediction. The host
// detonates the same shot rtt minus its fast-forward later, and the result
// spends up to hopTicks ticks in the two loops on the way.
func (c PredictionConfig) PrematureWindow(rtt, tick time.Duration) time.Duration {
	expected := rtt - c.ForwardPrediction(rtt)
	if expected < 0 {
		expected = 0
	}
	return time.Duration(float64(expected)*c.PrematureWindowScale) + hopTicks*tick + c.PrematureWindowMin
}

// LerpFraction is the share of the remaining gap closed in one tick of dt.
func (c PredictionConfig) LerpFraction(initialSpeed float64, dt time.Duration) float64 {
	f := c.LerpRate * initialSpeed * dt.Seconds()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
