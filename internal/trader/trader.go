// Package trader defines the trader capability set — a value holding
// strategy state that reacts to exchange replies, subscription
// payloads, wake-ups, and session open/close notifications by
// returning zero or more requests — plus two reference
// implementations.
//
// Grounded on original_source/src/trader.rs's Trader trait (a
// capability set, not a class hierarchy) and generalized from teacher
// internal/trader/agent.go's Strategy.Decide for NaivePostAtBest's
// re-quote/cancel-on-timeout/cross-on-signal logic.
package trader

import (
	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/protocol"
)

// Trader is the capability set the exchange dispatches into. Every
// method may return requests to submit; the dispatcher schedules each
// at now + trader_tx_latency. Latency generators are supplied
// separately (ExchangeToTraderLatency/TraderToExchangeLatency) rather
// than as Trader methods, since spec.md requires they depend only on
// RNG and time, never on private trader state.
type Trader interface {
	OnExchangeReply(t fixedpoint.SimulatedTime, reply protocol.ExchangeReply) []protocol.TraderRequest
	OnOrderBookSnapshot(t fixedpoint.SimulatedTime, snap protocol.OrderBookSnapshot) []protocol.TraderRequest
	OnTradeInfo(t fixedpoint.SimulatedTime, info protocol.TradeInfo) []protocol.TraderRequest
	OnWakeUp(t fixedpoint.SimulatedTime) []protocol.TraderRequest
	OnOpen(t fixedpoint.SimulatedTime) []protocol.TraderRequest
	OnClose(t fixedpoint.SimulatedTime) []protocol.TraderRequest
}

// VoidTrader never submits a request; it observes every channel and
// does nothing. Grounded on original_source's own test_01 integration
// test, which wires a no-op trader to exercise the history-replay path
// in isolation from any strategy.
type VoidTrader struct{}

func (VoidTrader) OnExchangeReply(fixedpoint.SimulatedTime, protocol.ExchangeReply) []protocol.TraderRequest {
	return nil
}
func (VoidTrader) OnOrderBookSnapshot(fixedpoint.SimulatedTime, protocol.OrderBookSnapshot) []protocol.TraderRequest {
	return nil
}
func (VoidTrader) OnTradeInfo(fixedpoint.SimulatedTime, protocol.TradeInfo) []protocol.TraderRequest {
	return nil
}
func (VoidTrader) OnWakeUp(fixedpoint.SimulatedTime) []protocol.TraderRequest { return nil }
func (VoidTrader) OnOpen(fixedpoint.SimulatedTime) []protocol.TraderRequest   { return nil }
func (VoidTrader) OnClose(fixedpoint.SimulatedTime) []protocol.TraderRequest  { return nil }
