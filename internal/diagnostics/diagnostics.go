// Package diagnostics implements the matching engine's Diagnostics
// sink: structured, DEBUG-gated advisory logging. When DEBUG is off
// the matching engine never holds a Sink at all, so logging costs
// nothing on the hot path — spec.md §7's "continues on the assumption
// that the historical tape is authoritative" stays true whether or not
// anyone is watching.
//
// Grounded on the zap.Logger field/NewDevelopment idiom shown in the
// retrieval pack's backtest engine (go-crypto-bot-clean), the only
// example using go.uber.org/zap for exactly this kind of run-advisory
// logging.
package diagnostics

import (
	"go.uber.org/zap"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

// Sink is a zap-backed implementation of matching.Diagnostics.
type Sink struct {
	logger *zap.Logger
}

// New returns a Sink logging at development verbosity (human-readable,
// colorized in a terminal).
func New() *Sink {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

// Advisory logs one non-fatal advisory from the matching engine, e.g. a
// history market order that could not fully execute on a thin book.
func (s *Sink) Advisory(t fixedpoint.SimulatedTime, msg string) {
	s.logger.Warn(msg, zap.Int64("sim_time_ns", int64(t)))
}

// Sync flushes buffered log entries; call once at the end of a run.
func (s *Sink) Sync() error {
	return s.logger.Sync()
}
