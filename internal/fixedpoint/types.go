// Package fixedpoint defines the exact, totally-ordered numeric types the
// rest of the engine is built on: Price, Size, OrderID and SimulatedTime.
// All four are integer-backed so that ordering and arithmetic are exact;
// nothing in this package uses float64 for a value that participates in
// matching or ordering.
package fixedpoint

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is an integer multiple of a configured tick. Two Prices are only
// comparable when drawn from the same tick size; the history source parses
// every tape price with PriceFromDecimalString and the run's one
// configured price step.
type Price int64

// Size is a non-negative quantity. Zero means "removed / fully consumed".
type Size int64

// OrderID is an opaque 64-bit identifier. It is unique within a trader's
// submissions and within the historical tape; the two namespaces are kept
// disjoint by OrderOrigin, not by value.
type OrderID uint64

// SimulatedTime is a monotonic nanosecond timestamp. There is no wall
// clock in this engine; every ordering and latency computation uses this
// type.
type SimulatedTime int64

// Direction selects a book side and labels aggressors.
type Direction int8

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	if d == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other Direction.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"BUY"`:
		*d = Buy
	case `"SELL"`:
		*d = Sell
	default:
		return fmt.Errorf("fixedpoint: unknown direction %s", data)
	}
	return nil
}

// OrderOrigin tags a resting book entry or submitted order as coming from
// the replayed historical tape or from the trader under test.
type OrderOrigin int8

const (
	History OrderOrigin = iota
	Trader
)

func (o OrderOrigin) String() string {
	if o == History {
		return "HISTORY"
	}
	return "TRADER"
}

// Add returns p+delta. Saturates at zero is a Size-only concern; Price has no
// floor since negative prices are rejected at parse time, not at add time.
func (p Price) Add(delta int64) Price { return p + Price(delta) }

// Sub subtracts a fill quantity from a resting size with saturation at
// zero — the debit path can never go negative, matching spec.md's "Size is
// non-negative... Additive with saturating semantics at zero on debit
// paths."
func (s Size) Sub(qty Size) Size {
	r := s - qty
	if r < 0 {
		return 0
	}
	return r
}

// IsZero reports whether the size represents "removed / fully consumed".
func (s Size) IsZero() bool { return s <= 0 }

// ToDecimal converts a Price to an exact decimal.Decimal given the tick
// size, for display and reporting. Grounded on mkhoshkam-orderbook's use
// of shopspring/decimal for all priced domain fields — we use it at the
// boundary (CSV parsing, reporting) rather than on the matching hot path,
// where the plain int64 comparison stays exact and fast.
func (p Price) ToDecimal(tick decimal.Decimal) decimal.Decimal {
	return tick.Mul(decimal.NewFromInt(int64(p)))
}

// PriceFromDecimalString parses a decimal string into a Price given a
// tick size, rejecting values that are not an exact multiple of the tick
// within 1e-11 — ported from original_source/src/types.rs's
// Price::from_decimal_str.
func PriceFromDecimalString(s string, tick decimal.Decimal) (Price, error) {
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("fixedpoint: cannot parse price %q: %w", s, err)
	}
	if tick.IsZero() {
		return 0, fmt.Errorf("fixedpoint: tick size must be positive")
	}
	steps := parsed.Div(tick)
	rounded := steps.Round(0)
	diff := rounded.Sub(steps).Abs()
	epsilon := decimal.New(1, -11)
	if diff.GreaterThan(epsilon) {
		return 0, fmt.Errorf(
			"fixedpoint: cannot convert %s to Price without loss of precision at tick %s (off by %s)",
			parsed.String(), tick.String(), diff.String())
	}
	return Price(rounded.IntPart()), nil
}

// EventKind is the fixed body-kind ordering used to break ties between events
// scheduled at the same SimulatedTime. Lower values sort first. This is
// spec.md §9's fixed tie-break: HistoryEvent < TraderRequest <
// ExchangeReply < SubscriptionUpdate < SubscriptionSchedule <
// TraderWakeUp < SessionProbe.
type EventKind int8

const (
	KindHistoryEvent EventKind = iota
	KindTraderRequest
	KindExchangeReplyEcho
	KindSubscriptionUpdate
	KindSubscriptionSchedule
	KindTraderWakeUp
	KindSessionOpenProbe
	KindSessionCloseProbe
)

func (k EventKind) String() string {
	switch k {
	case KindHistoryEvent:
		return "HISTORY_EVENT"
	case KindTraderRequest:
		return "TRADER_REQUEST"
	case KindExchangeReplyEcho:
		return "EXCHANGE_REPLY_ECHO"
	case KindSubscriptionUpdate:
		return "SUBSCRIPTION_UPDATE"
	case KindSubscriptionSchedule:
		return "SUBSCRIPTION_SCHEDULE"
	case KindTraderWakeUp:
		return "TRADER_WAKE_UP"
	case KindSessionOpenProbe:
		return "SESSION_OPEN_PROBE"
	case KindSessionCloseProbe:
		return "SESSION_CLOSE_PROBE"
	default:
		return "UNKNOWN"
	}
}
