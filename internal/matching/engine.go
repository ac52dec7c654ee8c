// Package matching implements the exchange's core execution logic:
// limit placement with price-time priority, pre-matching against
// queued trader market orders, the four-valued aggressor algorithm
// shared by market orders and crossing limits, the trade-updates-book
// policy, crossing-limit detection, and cancellation.
//
// Grounded on teacher internal/orderbook/book.go's match/processLimit/
// processCancel as the structural starting point (same walk-the-
// opposite-side, FIFO-within-level shape), rewritten to the
// origin-aware, policy-gated algorithm of spec.md's matching-engine
// component, and on original_source/src/order.rs's Order/PricedOrder
// split for the LimitOrder/MarketOrder distinction this engine
// dispatches on.
package matching

import (
	"fmt"
	"sort"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/orderbook"
	"github.com/nrjones/lob-backtester/internal/protocol"
	"github.com/nrjones/lob-backtester/internal/trades"
)

// AggressorKind distinguishes the four ways an order can become an
// aggressor, each with its own residual-exhaustion behavior.
type AggressorKind int8

const (
	TraderMarket AggressorKind = iota
	TraderCrossingLimit
	HistoryMarket
	HistoryCrossingLimit
)

func (k AggressorKind) origin() fixedpoint.OrderOrigin {
	if k == TraderMarket || k == TraderCrossingLimit {
		return fixedpoint.Trader
	}
	return fixedpoint.History
}

func (k AggressorKind) isMarket() bool {
	return k == TraderMarket || k == HistoryMarket
}

// pendingMarket is a queued trader market order still awaiting
// counter-liquidity.
type pendingMarket struct {
	ID        fixedpoint.OrderID
	Direction fixedpoint.Direction
	Remaining fixedpoint.Size
}

// Diagnostics receives non-fatal advisory messages — e.g. a history
// market order that could not fully execute against a thin simulated
// book. Implemented by internal/diagnostics; a nil Diagnostics means
// DEBUG is off and advisories are dropped silently, per spec.md §7
// ("continues on the assumption that the historical tape is
// authoritative").
type Diagnostics interface {
	Advisory(t fixedpoint.SimulatedTime, msg string)
}

// Engine owns the book, the trades window, and every piece of state
// the matching algorithm needs beyond a single call: the set of
// currently-resting history IDs, every ID the trader has ever
// submitted this session, the queue of unfilled trader market orders,
// and the trade-updates-book policy flag.
type Engine struct {
	Book    *orderbook.Book
	Window  *trades.Window
	Diag    Diagnostics

	tradeUpdatesBook bool

	historyIDs        map[fixedpoint.OrderID]struct{}
	traderSubmitted   map[fixedpoint.OrderID]struct{}
	traderPendingLim  map[fixedpoint.OrderID]struct{ Price fixedpoint.Price; Dir fixedpoint.Direction }
	traderPendingMkt  []pendingMarket
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithTradeUpdatesBook enables the policy mode where a history-origin
// aggressor also removes history-origin resting liquidity. Off by
// default.
func WithTradeUpdatesBook() Option {
	return func(e *Engine) { e.tradeUpdatesBook = true }
}

// New returns an Engine over a fresh book and trades window.
func New(opts ...Option) *Engine {
	e := &Engine{
		Book:             orderbook.New(),
		Window:           trades.NewWindow(),
		historyIDs:       make(map[fixedpoint.OrderID]struct{}),
		traderSubmitted:  make(map[fixedpoint.OrderID]struct{}),
		traderPendingLim: make(map[fixedpoint.OrderID]struct{ Price fixedpoint.Price; Dir fixedpoint.Direction }),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) advisory(t fixedpoint.SimulatedTime, msg string) {
	if e.Diag != nil {
		e.Diag.Advisory(t, msg)
	}
}

// ApplyHistoryOBDiff upserts a history-origin resting entry: any
// previous entry for this ID is removed first, then — unless size is
// zero, meaning pure removal — the new (price, size) is routed
// through crossing-limit detection exactly like a submitted limit.
func (e *Engine) ApplyHistoryOBDiff(t fixedpoint.SimulatedTime, id fixedpoint.OrderID, dir fixedpoint.Direction, size fixedpoint.Size, price fixedpoint.Price) []protocol.ExchangeReply {
	if e.Book.Remove(id) {
		delete(e.historyIDs, id)
	}
	if size.IsZero() {
		return nil
	}
	return e.submitLimit(t, fixedpoint.History, id, dir, size, price)
}

// ApplyHistoryTrade replays a historical trade print as a HistoryMarket
// aggressor against the simulated book: an unbounded sweep of the
// opposite side in the trade's direction. The simulated book can
// diverge from the real one (trader orders interleave with the
// replayed tape), so this is the one place a history event can fail to
// fully consume what the tape says it should — any unfilled remainder
// is logged via Diagnostics and dropped, per spec.md's "historical tape
// is assumed consistent."
func (e *Engine) ApplyHistoryTrade(t fixedpoint.SimulatedTime, aggressorDir fixedpoint.Direction, size fixedpoint.Size) []protocol.ExchangeReply {
	_, replies := e.aggress(t, aggressorDir, fixedpoint.History, 0, size, HistoryMarket, nil, false)
	return replies
}

// PlaceTraderLimit submits a trader limit order. Returns the replies
// generated by acceptance/discard and any immediate matching.
func (e *Engine) PlaceTraderLimit(t fixedpoint.SimulatedTime, closed bool, id fixedpoint.OrderID, dir fixedpoint.Direction, size fixedpoint.Size, price fixedpoint.Price) []protocol.ExchangeReply {
	if reply, discarded := e.checkDiscard(closed, id, size); discarded {
		return []protocol.ExchangeReply{reply}
	}
	e.traderSubmitted[id] = struct{}{}
	replies := []protocol.ExchangeReply{protocol.OrderAccepted(id)}
	replies = append(replies, e.submitLimit(t, fixedpoint.Trader, id, dir, size, price)...)
	return replies
}

// PlaceTraderMarket submits a trader market order: an unbounded sweep
// of the opposite side, queuing any unfilled remainder.
func (e *Engine) PlaceTraderMarket(t fixedpoint.SimulatedTime, closed bool, id fixedpoint.OrderID, dir fixedpoint.Direction, size fixedpoint.Size) []protocol.ExchangeReply {
	if reply, discarded := e.checkDiscard(closed, id, size); discarded {
		return []protocol.ExchangeReply{reply}
	}
	e.traderSubmitted[id] = struct{}{}
	replies := []protocol.ExchangeReply{protocol.OrderAccepted(id)}

	remaining, matchReplies := e.aggress(t, dir, fixedpoint.Trader, id, size, TraderMarket, nil, false)
	replies = append(replies, matchReplies...)
	if remaining > 0 {
		e.traderPendingMkt = append(e.traderPendingMkt, pendingMarket{ID: id, Direction: dir, Remaining: remaining})
	}
	return replies
}

func (e *Engine) checkDiscard(closed bool, id fixedpoint.OrderID, size fixedpoint.Size) (protocol.ExchangeReply, bool) {
	if closed {
		return protocol.OrderPlacementDiscarded(id, protocol.DiscardExchangeClosed), true
	}
	if size.IsZero() {
		return protocol.OrderPlacementDiscarded(id, protocol.DiscardZeroSize), true
	}
	if _, ok := e.traderSubmitted[id]; ok {
		return protocol.OrderPlacementDiscarded(id, protocol.DiscardAlreadySubmitted), true
	}
	return protocol.ExchangeReply{}, false
}

// submitLimit is shared by trader and history limit submissions: first
// pre-match against any queued trader market orders on the opposite
// side, then route the remainder through crossing-limit detection.
func (e *Engine) submitLimit(t fixedpoint.SimulatedTime, origin fixedpoint.OrderOrigin, id fixedpoint.OrderID, dir fixedpoint.Direction, size fixedpoint.Size, price fixedpoint.Price) []protocol.ExchangeReply {
	remaining, replies := e.matchAgainstPendingMarkets(t, origin, id, dir, size, price)
	if remaining.IsZero() {
		return replies
	}

	available := e.Book.VolumeAtOrBetter(dir, price)

	var intersection, residual fixedpoint.Size
	if available < remaining {
		intersection = available
		residual = remaining - available
	} else {
		intersection = remaining
		residual = 0
	}

	kind := TraderCrossingLimit
	if origin == fixedpoint.History {
		kind = HistoryCrossingLimit
	}

	if intersection > 0 {
		_, matchReplies := e.aggress(t, dir, origin, id, intersection, kind, &price, residual > 0)
		replies = append(replies, matchReplies...)
	}

	if residual > 0 {
		e.Book.Insert(dir, price, orderbook.Entry{ID: id, Size: residual, Origin: origin})
		if origin == fixedpoint.History {
			e.historyIDs[id] = struct{}{}
		} else {
			e.traderPendingLim[id] = struct{ Price fixedpoint.Price; Dir fixedpoint.Direction }{price, dir}
		}
	}
	return replies
}

// matchAgainstPendingMarkets fills queued trader market orders waiting
// on the opposite side before the incoming limit ever reaches the
// book, per spec.md's "pre-match against pending trader markets" rule.
func (e *Engine) matchAgainstPendingMarkets(t fixedpoint.SimulatedTime, incomingOrigin fixedpoint.OrderOrigin, incomingID fixedpoint.OrderID, incomingDir fixedpoint.Direction, remaining fixedpoint.Size, price fixedpoint.Price) (fixedpoint.Size, []protocol.ExchangeReply) {
	var replies []protocol.ExchangeReply
	waitingDir := incomingDir.Opposite()

	for remaining > 0 && len(e.traderPendingMkt) > 0 && e.traderPendingMkt[0].Direction == waitingDir {
		pm := &e.traderPendingMkt[0]
		matchQty := remaining
		if pm.Remaining < matchQty {
			matchQty = pm.Remaining
		}

		if matchQty == pm.Remaining {
			replies = append(replies, protocol.OrderExecuted(pm.ID, matchQty, price))
		} else {
			replies = append(replies, protocol.OrderPartiallyExecuted(pm.ID, matchQty, price))
		}
		if incomingOrigin == fixedpoint.Trader {
			if matchQty == remaining {
				replies = append(replies, protocol.OrderExecuted(incomingID, matchQty, price))
			} else {
				replies = append(replies, protocol.OrderPartiallyExecuted(incomingID, matchQty, price))
			}
		}
		e.Window.Record(t, price, matchQty, incomingDir)

		pm.Remaining = pm.Remaining.Sub(matchQty)
		remaining = remaining.Sub(matchQty)
		if pm.Remaining.IsZero() {
			e.traderPendingMkt = e.traderPendingMkt[1:]
		}
	}
	return remaining, replies
}

// aggress walks the opposite side of the book (optionally bounded by
// price for a crossing limit) applying the four-case algorithm per
// resting entry. Returns unfilled remainder and the replies generated.
// residualWillRest is true when the caller already knows a nonzero
// residual of the aggressor's order will rest on the book once this
// walk exhausts size — submitLimit's crossing-limit intersection is
// only part of the incoming order, so aggress cannot infer this from
// size/remaining alone and must be told.
func (e *Engine) aggress(t fixedpoint.SimulatedTime, aggressorDir fixedpoint.Direction, aggressorOrigin fixedpoint.OrderOrigin, aggressorID fixedpoint.OrderID, size fixedpoint.Size, kind AggressorKind, priceBound *fixedpoint.Price, residualWillRest bool) (fixedpoint.Size, []protocol.ExchangeReply) {
	var replies []protocol.ExchangeReply
	remaining := size

	levels := e.Book.LevelsFrom(aggressorDir, priceBound)
	for _, level := range levels {
		if remaining <= 0 {
			break
		}
		j := 0
		for remaining > 0 && j < len(level.Entries) {
			restEntry := level.Entries[j]
			matchQty := remaining
			if restEntry.Size < matchQty {
				matchQty = restEntry.Size
			}

			// A History-origin crossing-limit aggressor (an OB-diff that
			// turns out marketable) hitting History-origin resting
			// liquidity is not itself a real execution: the trade print
			// for that same match arrives separately as a HistoryMarket
			// event and records it then. Recording here too would count
			// it twice. A HistoryMarket aggressor (the trade print
			// itself) is the canonical record and always records.
			suppressRecord := aggressorOrigin == fixedpoint.History && restEntry.Origin == fixedpoint.History && kind != HistoryMarket
			removeResting := restEntry.Origin == fixedpoint.Trader || aggressorOrigin == fixedpoint.Trader || e.tradeUpdatesBook

			if !suppressRecord {
				if aggressorOrigin == fixedpoint.Trader {
					if matchQty < remaining || residualWillRest {
						replies = append(replies, protocol.OrderPartiallyExecuted(aggressorID, matchQty, level.Price))
					} else {
						replies = append(replies, protocol.OrderExecuted(aggressorID, matchQty, level.Price))
					}
				}
				if restEntry.Origin == fixedpoint.Trader {
					if matchQty < restEntry.Size {
						replies = append(replies, protocol.OrderPartiallyExecuted(restEntry.ID, matchQty, level.Price))
					} else {
						replies = append(replies, protocol.OrderExecuted(restEntry.ID, matchQty, level.Price))
					}
				}
				e.Window.Record(t, level.Price, matchQty, aggressorDir)
			}

			if removeResting {
				if matchQty == restEntry.Size {
					e.Book.Remove(restEntry.ID)
					delete(e.historyIDs, restEntry.ID)
					delete(e.traderPendingLim, restEntry.ID)
				} else {
					e.Book.ReduceByID(restEntry.ID, matchQty)
				}
				// the level's Entries slice shifted; do not advance j
			} else {
				j++
			}
			remaining -= matchQty
		}
	}

	switch {
	case remaining.IsZero():
		// fully executed, nothing more to do
	case kind.isMarket():
		if kind == HistoryMarket {
			e.advisory(t, fmt.Sprintf("history market order %d did not fully execute on a thin book (%d remaining)", aggressorID, remaining))
		}
		// TraderMarket residual is queued by the caller.
	default:
		panic(fmt.Sprintf("matching: crossing-limit aggressor %d exhausted opposite book with %d remaining — pre-match volume computation was inconsistent", aggressorID, remaining))
	}
	return remaining, replies
}

// CancelTraderLimit resolves a cancel-limit request per spec.md's
// §4.C7 cancellation table.
func (e *Engine) CancelTraderLimit(closed bool, id fixedpoint.OrderID) protocol.ExchangeReply {
	if closed {
		return protocol.CannotCancelOrder(id, protocol.CannotCancelExchangeClosed)
	}
	if _, submitted := e.traderSubmitted[id]; !submitted {
		return protocol.CannotCancelOrder(id, protocol.CannotCancelNotSubmitted)
	}
	loc, pending := e.traderPendingLim[id]
	if !pending {
		return protocol.CannotCancelOrder(id, protocol.CannotCancelAlreadyExecuted)
	}
	e.Book.Remove(id)
	delete(e.traderPendingLim, id)
	_ = loc
	return protocol.OrderCancelled(id, protocol.CancelTraderRequested)
}

// CancelTraderMarket resolves a cancel-market request: a pending
// market order can be cancelled while it awaits counter-liquidity.
func (e *Engine) CancelTraderMarket(closed bool, id fixedpoint.OrderID) protocol.ExchangeReply {
	if closed {
		return protocol.CannotCancelOrder(id, protocol.CannotCancelExchangeClosed)
	}
	if _, submitted := e.traderSubmitted[id]; !submitted {
		return protocol.CannotCancelOrder(id, protocol.CannotCancelNotSubmitted)
	}
	for i, pm := range e.traderPendingMkt {
		if pm.ID == id {
			e.traderPendingMkt = append(e.traderPendingMkt[:i], e.traderPendingMkt[i+1:]...)
			return protocol.OrderCancelled(id, protocol.CancelTraderRequested)
		}
	}
	return protocol.CannotCancelOrder(id, protocol.CannotCancelAlreadyExecuted)
}

// CleanupSession cancels every remaining trader order with
// OrderCancelled(ExchangeClosed). When endOfTrades is true, the
// trader's submitted-ID set is cleared as well; an intra-day close
// preserves it so that a subsequent open can still resolve cancels
// and discards against orders placed earlier the same day.
func (e *Engine) CleanupSession(t fixedpoint.SimulatedTime, endOfTrades bool) []protocol.ExchangeReply {
	var replies []protocol.ExchangeReply

	ids := make([]fixedpoint.OrderID, 0, len(e.traderPendingLim))
	for id := range e.traderPendingLim {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e.Book.Remove(id)
		replies = append(replies, protocol.OrderCancelled(id, protocol.CancelExchangeClosed))
	}
	e.traderPendingLim = make(map[fixedpoint.OrderID]struct{ Price fixedpoint.Price; Dir fixedpoint.Direction })

	for _, pm := range e.traderPendingMkt {
		replies = append(replies, protocol.OrderCancelled(pm.ID, protocol.CancelExchangeClosed))
	}
	e.traderPendingMkt = nil

	if endOfTrades {
		e.traderSubmitted = make(map[fixedpoint.OrderID]struct{})
	}
	return replies
}

// ClearHistory removes all history-origin state, called when the
// session transitions Closed -> Open.
func (e *Engine) ClearHistory() {
	for id := range e.historyIDs {
		e.Book.Remove(id)
	}
	e.historyIDs = make(map[fixedpoint.OrderID]struct{})
}

// QueuePosition exposes the resting queue position of an order, used
// by internal/summary to report average queue position at placement.
func (e *Engine) QueuePosition(id fixedpoint.OrderID) int {
	return e.Book.QueuePosition(id)
}
