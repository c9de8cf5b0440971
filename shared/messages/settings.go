package messages

import (
	"time"

	"github.com/automoto/boomsync/config"
)

// PredictionSettings is the wire form of config.PredictionConfig.
type PredictionSettings struct {
	MaxPredictionPingMs  float64
	ClientBiasPct        float64
	LatencyFudgeMs       float64
	MinVisibleLifetimeMs float64
	InaccuracyTolerance  float64
	LerpRate             float64
	PrematureWindowScale float64
	PrematureWindowMinMs float64
	LinkTimeoutMs        float64
}

// ConfigUpdate is pushed by the host whenever a client's settings change.
type ConfigUpdate struct {
	Config PredictionSettings
}

func ToSettings(c config.PredictionConfig) PredictionSettings {
	return PredictionSettings{
		MaxPredictionPingMs:  ToMs(c.MaxPredictionPing),
		ClientBiasPct:        c.ClientBiasPct,
		LatencyFudgeMs:       ToMs(c.LatencyFudge),
		MinVisibleLifetimeMs: ToMs(c.MinVisibleLifetime),
		InaccuracyTolerance:  c.InaccuracyTolerance,
		LerpRate:             c.LerpRate,
		PrematureWindowScale: c.PrematureWindowScale,
		PrematureWindowMinMs: ToMs(c.PrematureWindowMin),
		LinkTimeoutMs:        ToMs(c.LinkTimeout),
	}
}

func (s PredictionSettings) Config() config.PredictionConfig {
	return config.PredictionConfig{
		MaxPredictionPing:    FromMs(s.MaxPredictionPingMs),
		ClientBiasPct:        s.ClientBiasPct,
		LatencyFudge:         FromMs(s.LatencyFudgeMs),
		MinVisibleLifetime:   FromMs(s.MinVisibleLifetimeMs),
		InaccuracyTolerance:  s.InaccuracyTolerance,
		LerpRate:             s.LerpRate,
		PrematureWindowScale: s.PrematureWindowScale,
		PrematureWindowMin:   FromMs(s.PrematureWindowMinMs),
		LinkTimeout:          FromMs(s.LinkTimeoutMs),
	}
}

// FromMs converts a wire millisecond value back to a duration.
func FromMs(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// ToMs converts a duration to wire milliseconds.
func ToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
