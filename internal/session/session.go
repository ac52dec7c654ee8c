// Package session implements the venue's open/closed lifecycle: the
// Closed/Open state machine driven by pure functions of time, and the
// three independent subscription schedules (order-book snapshot, trade
// info, trader wake-up). Cleanup at a close is done by the exchange and
// internal/matching, not here.
//
// Grounded on teacher internal/sim/runner.go's periodic re-quote
// scheduling (a loop pushing re-arming EventReQuote events at
// now+interval) as the pattern for a self-re-enqueuing subscription
// schedule, generalized to the three typed subscriptions of spec.md's
// session-controller component.
package session

import (
	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/latency"
)

// State is the venue lifecycle state.
type State int8

const (
	Closed State = iota
	Open
)

// TradingHours supplies the two pure functions of time the controller
// needs: the next open boundary at or after t, and the next close
// boundary at or after t.
type TradingHours interface {
	NextOpen(t fixedpoint.SimulatedTime) fixedpoint.SimulatedTime
	NextClose(t fixedpoint.SimulatedTime) fixedpoint.SimulatedTime
}

// ContinuousHours is a TradingHours that is open over [Start, End) —
// the common case for a single-day backtest over one recorded session.
// NextOpen(t) returns t itself for any t at or after Start, End
// included, so after the close at End it never reports an opening later
// than the time it is asked at; the exchange takes that as closed for
// good.
type ContinuousHours struct {
	Start, End fixedpoint.SimulatedTime
}

func (h ContinuousHours) NextOpen(t fixedpoint.SimulatedTime) fixedpoint.SimulatedTime {
	if t < h.Start {
		return h.Start
	}
	return t
}

func (h ContinuousHours) NextClose(t fixedpoint.SimulatedTime) fixedpoint.SimulatedTime {
	if t > h.End {
		return t
	}
	return h.End
}

// SubscriptionKind tags which of the three independent subscriptions a
// schedule event belongs to.
type SubscriptionKind int8

const (
	OrderBookSubscription SubscriptionKind = iota
	TradeInfoSubscription
	WakeUpSubscription
)

// IntervalGenerator draws the next delay, in nanoseconds, until a
// subscription's next delivery — an alias of latency.Generator so a
// builder can hand either kind of delay the same constructor
// (FixedPlusJitter, Fixed, ...) without a wrapper. Depth is the
// order-book subscription's level count and is ignored by the other
// two kinds.
type IntervalGenerator = latency.Generator

// Subscription holds one enabled feature's kind, interval generator and,
// for the order-book feature, depth. A disabled feature has no
// Subscription at all: its pointer on the Controller is nil.
type Subscription struct {
	Kind     SubscriptionKind
	Interval IntervalGenerator
	Depth    int // order-book levels to render; 0 means full depth
}

// Controller owns the venue's state machine and the set of enabled
// subscriptions. It does not own the event queue or the book — the
// exchange dispatcher calls into Controller to decide state
// transitions and to learn what to schedule next.
type Controller struct {
	state State
	hours TradingHours

	OrderBook *Subscription
	TradeInfo *Subscription
	WakeUp    *Subscription
}

// New returns a Controller starting Closed, as spec.md requires.
func New(hours TradingHours) *Controller {
	return &Controller{state: Closed, hours: hours}
}

// State reports the current lifecycle state.
func (c *Controller) State() State { return c.state }

// IsOpen is a convenience guard used by the matching engine's callers.
func (c *Controller) IsOpen() bool { return c.state == Open }

// NextOpen/NextClose expose the underlying TradingHours, used by the
// exchange dispatcher to schedule SessionOpenProbe/SessionCloseProbe.
func (c *Controller) NextOpen(t fixedpoint.SimulatedTime) fixedpoint.SimulatedTime { return c.hours.NextOpen(t) }
func (c *Controller) NextClose(t fixedpoint.SimulatedTime) fixedpoint.SimulatedTime { return c.hours.NextClose(t) }

// TransitionToOpen moves Closed -> Open. Returns true if a transition
// actually occurred (idempotent against a duplicate probe).
func (c *Controller) TransitionToOpen() bool {
	if c.state == Open {
		return false
	}
	c.state = Open
	return true
}

// TransitionToClose moves Open -> Closed. Returns true if a transition
// actually occurred.
func (c *Controller) TransitionToClose() bool {
	if c.state == Closed {
		return false
	}
	c.state = Closed
	return true
}

// EnabledSubscriptions returns the subscriptions currently configured,
// in a fixed order (order book, trade info, wake-up) so that initial
// schedule draws are deterministic.
func (c *Controller) EnabledSubscriptions() []*Subscription {
	var out []*Subscription
	if c.OrderBook != nil {
		out = append(out, c.OrderBook)
	}
	if c.TradeInfo != nil {
		out = append(out, c.TradeInfo)
	}
	if c.WakeUp != nil {
		out = append(out, c.WakeUp)
	}
	return out
}
