// Package exchange owns every mutable resource for one simulation run
// and drives the central dispatch loop: pop from the event queue,
// advance current_time, evaluate the session guard, dispatch by body
// kind, until the queue is empty.
//
// Grounded on teacher internal/sim/runner.go's Runner.handleEvent
// central switch and internal/engine/eventloop.go's Run loop, combined
// into the single Exchange value spec.md requires ("no global state;
// the exchange value owns every mutable resource for the run").
package exchange

import (
	"fmt"
	"math/rand"

	"github.com/nrjones/lob-backtester/internal/eventlog"
	"github.com/nrjones/lob-backtester/internal/eventqueue"
	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/history"
	"github.com/nrjones/lob-backtester/internal/latency"
	"github.com/nrjones/lob-backtester/internal/matching"
	"github.com/nrjones/lob-backtester/internal/protocol"
	"github.com/nrjones/lob-backtester/internal/session"
	"github.com/nrjones/lob-backtester/internal/summary"
	"github.com/nrjones/lob-backtester/internal/trader"
)

// subscriptionPayload is the body of a KindSubscriptionUpdate event —
// the rendered order-book snapshot or trade-info batch a schedule beat
// produced, carried until its trader_rx_latency delay elapses.
type subscriptionPayload struct {
	Kind      session.SubscriptionKind
	OrderBook *protocol.OrderBookSnapshot
	TradeInfo *protocol.TradeInfo
}

// Exchange owns the book/matching engine, the session controller, the
// history source, the trader, the RNG, both latency generators, and
// the event queue — the single value spec.md requires holding all
// mutable state for a run.
type Exchange struct {
	Queue   *eventqueue.Queue
	Engine  *matching.Engine
	Session *session.Controller
	History *history.Source
	Trader  trader.Trader
	RNG     *rand.Rand
	Log     *eventlog.Writer

	ExchangeToTraderLatency latency.Generator
	TraderToExchangeLatency latency.Generator

	SnapshotDepth int

	// Summary is optional; when set the exchange feeds it every
	// request/reply so Summary.Compute() can render a report once Run
	// returns.
	Summary *summary.Collector

	CurrentTime      fixedpoint.SimulatedTime
	historyExhausted bool
}

// New returns an Exchange ready to Run. hist may be nil for a
// history-free run driving the trader purely off its own schedules.
func New(eng *matching.Engine, sess *session.Controller, hist *history.Source, tr trader.Trader, rng *rand.Rand, rxLatency, txLatency latency.Generator, snapshotDepth int) *Exchange {
	return &Exchange{
		Queue:                   eventqueue.New(),
		Engine:                  eng,
		Session:                 sess,
		History:                 hist,
		Trader:                  tr,
		RNG:                     rng,
		ExchangeToTraderLatency: rxLatency,
		TraderToExchangeLatency: txLatency,
		SnapshotDepth:           snapshotDepth,
	}
}

// Run drains the queue until empty, seeding it first with the initial
// history event (if any) and the first session-open probe.
func (ex *Exchange) Run() error {
	var startTime fixedpoint.SimulatedTime
	if ex.History != nil {
		rec, err := ex.History.Next()
		if err != nil {
			return fmt.Errorf("exchange: priming history: %w", err)
		}
		if rec != nil {
			startTime = rec.Time
			ex.Queue.Push(rec.Time, fixedpoint.KindHistoryEvent, rec)
		} else {
			ex.historyExhausted = true
		}
	}
	ex.Queue.Push(ex.Session.NextOpen(startTime), fixedpoint.KindSessionOpenProbe, nil)

	for {
		e := ex.Queue.Pop()
		if e == nil {
			return nil
		}
		ex.CurrentTime = e.Time
		if err := ex.dispatch(e); err != nil {
			return err
		}
	}
}

func (ex *Exchange) dispatch(e *eventqueue.Event) error {
	ex.logEvent(e)
	switch e.Kind {
	case fixedpoint.KindHistoryEvent:
		return ex.handleHistoryEvent(e.Body.(*history.Record))
	case fixedpoint.KindTraderRequest:
		ex.handleTraderRequest(e.Body.(protocol.TraderRequest))
	case fixedpoint.KindExchangeReplyEcho:
		ex.scheduleRequests(ex.Trader.OnExchangeReply(ex.CurrentTime, e.Body.(protocol.ExchangeReply)))
	case fixedpoint.KindSubscriptionUpdate:
		ex.handleSubscriptionUpdate(e.Body.(subscriptionPayload))
	case fixedpoint.KindSubscriptionSchedule:
		ex.handleSubscriptionSchedule(e.Body.(session.SubscriptionKind))
	case fixedpoint.KindTraderWakeUp:
		ex.handleWakeUp()
	case fixedpoint.KindSessionOpenProbe:
		ex.handleSessionOpen()
	case fixedpoint.KindSessionCloseProbe:
		ex.handleSessionClose()
	}
	return nil
}

func (ex *Exchange) handleHistoryEvent(rec *history.Record) error {
	if ex.Session.IsOpen() {
		var replies []protocol.ExchangeReply
		switch rec.Kind {
		case history.OBDiff:
			replies = ex.Engine.ApplyHistoryOBDiff(ex.CurrentTime, rec.OrderID, rec.Direction, rec.Size, rec.Price)
		case history.Trade:
			replies = ex.Engine.ApplyHistoryTrade(ex.CurrentTime, rec.Direction, rec.Size)
		}
		ex.deliverReplies(replies)
	}

	next, err := ex.History.Next()
	if err != nil {
		return fmt.Errorf("exchange: advancing history: %w", err)
	}
	if next != nil {
		ex.Queue.Push(next.Time, fixedpoint.KindHistoryEvent, next)
	} else {
		ex.historyExhausted = true
	}
	return nil
}

func (ex *Exchange) handleTraderRequest(req protocol.TraderRequest) {
	if ex.Summary != nil {
		ex.Summary.RecordRequest(ex.CurrentTime, req)
	}
	closed := !ex.Session.IsOpen()
	var replies []protocol.ExchangeReply
	switch req.Kind {
	case protocol.ReqPlaceLimit:
		replies = ex.Engine.PlaceTraderLimit(ex.CurrentTime, closed, req.ID, req.Direction, req.Size, req.Price)
		if ex.Summary != nil && ex.Engine.Book.Contains(req.ID) {
			ex.Summary.RecordQueuePosition(req.ID, ex.Engine.QueuePosition(req.ID))
		}
	case protocol.ReqPlaceMarket:
		replies = ex.Engine.PlaceTraderMarket(ex.CurrentTime, closed, req.ID, req.Direction, req.Size)
	case protocol.ReqCancelLimit:
		replies = []protocol.ExchangeReply{ex.Engine.CancelTraderLimit(closed, req.CancelID)}
	case protocol.ReqCancelMarket:
		replies = []protocol.ExchangeReply{ex.Engine.CancelTraderMarket(closed, req.CancelID)}
	}
	ex.deliverReplies(replies)
}

func (ex *Exchange) handleSubscriptionUpdate(p subscriptionPayload) {
	switch p.Kind {
	case session.OrderBookSubscription:
		ex.scheduleRequests(ex.Trader.OnOrderBookSnapshot(ex.CurrentTime, *p.OrderBook))
	case session.TradeInfoSubscription:
		ex.scheduleRequests(ex.Trader.OnTradeInfo(ex.CurrentTime, *p.TradeInfo))
	}
}

// handleSubscriptionSchedule is one periodic beat: render the current
// payload, enqueue its delivery after rx latency, and re-arm the next
// beat if the venue is still open.
func (ex *Exchange) handleSubscriptionSchedule(kind session.SubscriptionKind) {
	sub := ex.subscriptionFor(kind)
	if sub == nil {
		return
	}

	var payload subscriptionPayload
	switch kind {
	case session.OrderBookSubscription:
		snap := ex.Engine.Book.Snapshot(sub.Depth)
		payload = subscriptionPayload{Kind: kind, OrderBook: &snap}
	case session.TradeInfoSubscription:
		info := ex.Engine.Window.Drain()
		payload = subscriptionPayload{Kind: kind, TradeInfo: &info}
	}
	delay := ex.ExchangeToTraderLatency(ex.RNG, ex.CurrentTime)
	ex.Queue.Push(ex.CurrentTime+fixedpoint.SimulatedTime(delay), fixedpoint.KindSubscriptionUpdate, payload)

	if ex.Session.IsOpen() {
		next := ex.CurrentTime + fixedpoint.SimulatedTime(sub.Interval(ex.RNG, ex.CurrentTime))
		ex.Queue.Push(next, fixedpoint.KindSubscriptionSchedule, kind)
	}
}

func (ex *Exchange) handleWakeUp() {
	ex.scheduleRequests(ex.Trader.OnWakeUp(ex.CurrentTime))
	if ex.Session.IsOpen() && ex.Session.WakeUp != nil {
		next := ex.CurrentTime + fixedpoint.SimulatedTime(ex.Session.WakeUp.Interval(ex.RNG, ex.CurrentTime))
		ex.Queue.Push(next, fixedpoint.KindTraderWakeUp, nil)
	}
}

func (ex *Exchange) handleSessionOpen() {
	if !ex.Session.TransitionToOpen() {
		return
	}
	ex.Engine.ClearHistory()
	ex.armSubscriptions()
	ex.scheduleRequests(ex.Trader.OnOpen(ex.CurrentTime))
	ex.Queue.Push(ex.Session.NextClose(ex.CurrentTime), fixedpoint.KindSessionCloseProbe, nil)
}

func (ex *Exchange) handleSessionClose() {
	if !ex.Session.TransitionToClose() {
		return
	}
	// NextOpen(t) must advance strictly past CurrentTime for a reopen
	// to actually be in the future; TradingHours implementations like
	// ContinuousHours report "closed for good" by returning a value
	// that is not later than CurrentTime (e.g. NextOpen(End) == End
	// once the venue has closed for the day), so treat that the same
	// as history exhaustion: no reopen probe, and the session's
	// submitted-ID bookkeeping is cleared for good.
	nextOpen := ex.Session.NextOpen(ex.CurrentTime)
	willReopen := nextOpen > ex.CurrentTime
	endOfTrades := ex.historyExhausted || !willReopen
	replies := ex.Engine.CleanupSession(ex.CurrentTime, endOfTrades)
	ex.deliverReplies(replies)
	ex.scheduleRequests(ex.Trader.OnClose(ex.CurrentTime))
	if willReopen {
		ex.Queue.Push(nextOpen, fixedpoint.KindSessionOpenProbe, nil)
	}
}

// armSubscriptions pushes the first beat of every enabled subscription
// at the moment the venue opens.
func (ex *Exchange) armSubscriptions() {
	if ex.Session.OrderBook != nil {
		ex.Queue.Push(ex.CurrentTime, fixedpoint.KindSubscriptionSchedule, session.OrderBookSubscription)
	}
	if ex.Session.TradeInfo != nil {
		ex.Queue.Push(ex.CurrentTime, fixedpoint.KindSubscriptionSchedule, session.TradeInfoSubscription)
	}
	if ex.Session.WakeUp != nil {
		ex.Queue.Push(ex.CurrentTime, fixedpoint.KindTraderWakeUp, nil)
	}
}

func (ex *Exchange) subscriptionFor(kind session.SubscriptionKind) *session.Subscription {
	switch kind {
	case session.OrderBookSubscription:
		return ex.Session.OrderBook
	case session.TradeInfoSubscription:
		return ex.Session.TradeInfo
	case session.WakeUpSubscription:
		return ex.Session.WakeUp
	default:
		return nil
	}
}

func (ex *Exchange) deliverReplies(replies []protocol.ExchangeReply) {
	for _, r := range replies {
		if ex.Summary != nil {
			ex.Summary.RecordReply(ex.CurrentTime, r)
		}
		delay := ex.ExchangeToTraderLatency(ex.RNG, ex.CurrentTime)
		ex.Queue.Push(ex.CurrentTime+fixedpoint.SimulatedTime(delay), fixedpoint.KindExchangeReplyEcho, r)
	}
}

func (ex *Exchange) scheduleRequests(requests []protocol.TraderRequest) {
	for _, r := range requests {
		delay := ex.TraderToExchangeLatency(ex.RNG, ex.CurrentTime)
		ex.Queue.Push(ex.CurrentTime+fixedpoint.SimulatedTime(delay), fixedpoint.KindTraderRequest, r)
	}
}

func (ex *Exchange) logEvent(e *eventqueue.Event) {
	if ex.Log == nil {
		return
	}
	if err := ex.Log.Write(e); err != nil {
		panic(fmt.Sprintf("exchange: failed to write event log: %v", err))
	}
}
