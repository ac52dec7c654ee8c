// Package latency implements the nanosecond-delay generator capability:
// a draw function over a shared RNG stream that the exchange calls
// whenever a trader request, reply, or subscription delivery crosses the
// wire. Adapted from teacher internal/latency/model.go's base+jitter
// Model, generalized from a single arithmetic shape into the Generator
// function type so whoever wires the exchange (internal/config's
// builder, or a test) can supply any deterministic distribution, not
// just uniform jitter.
package latency

import (
	"math/rand"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

// Generator draws a latency in nanoseconds for a message crossing the
// wire at the given simulated time. The exchange adds the draw to the
// current time as it is and does not check its sign; a zero draw
// delivers at the same instant. A channel nobody listens on uses
// Disabled, which panics if drawn.
type Generator func(rng *rand.Rand, at fixedpoint.SimulatedTime) int64

// FixedPlusJitter returns a Generator reproducing teacher's
// Model.Apply: a constant base delay plus uniform jitter in
// [0, jitterNs).
func FixedPlusJitter(baseNs, jitterNs int64) Generator {
	return func(rng *rand.Rand, _ fixedpoint.SimulatedTime) int64 {
		jitter := int64(0)
		if jitterNs > 0 {
			jitter = rng.Int63n(jitterNs)
		}
		return baseNs + jitter
	}
}

// Fixed returns a Generator with zero jitter — a pure constant delay.
func Fixed(baseNs int64) Generator {
	return func(rng *rand.Rand, _ fixedpoint.SimulatedTime) int64 {
		return baseNs
	}
}

// Disabled is the Generator for a channel the trader has not
// subscribed to. Calling it is a programming error: the exchange must
// never draw latency for a channel nobody is listening on.
func Disabled(rng *rand.Rand, at fixedpoint.SimulatedTime) int64 {
	panic("latency: draw requested on a disabled channel")
}

// MsToNs converts milliseconds to nanoseconds. Config latency and
// interval values are already in nanoseconds and are not passed through
// it.
func MsToNs(ms int64) int64 {
	return ms * 1_000_000
}
