// Package protocol defines the trader-facing message protocol: requests
// the trader issues, replies the exchange sends back, and the payloads
// delivered through the three subscription channels. Ported field-for-
// field from original_source/src/message.rs, with JSON marshaling added
// (grounded on teacher internal/domain/types.go's enum Marshal/Unmarshal
// pattern) so a run's event log can be written as readable JSON and
// hashed.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

// RequestKind tags the variant held by a TraderRequest: everything a
// trader can ask the exchange to do.
type RequestKind int8

const (
	ReqPlaceLimit RequestKind = iota
	ReqPlaceMarket
	ReqCancelLimit
	ReqCancelMarket
)

func (k RequestKind) String() string {
	switch k {
	case ReqPlaceLimit:
		return "PLACE_LIMIT"
	case ReqPlaceMarket:
		return "PLACE_MARKET"
	case ReqCancelLimit:
		return "CANCEL_LIMIT"
	case ReqCancelMarket:
		return "CANCEL_MARKET"
	default:
		return "UNKNOWN"
	}
}

// TraderRequest carries one of PlaceLimit/PlaceMarket/CancelLimit/CancelMarket.
type TraderRequest struct {
	Kind      RequestKind        `json:"kind"`
	ID        fixedpoint.OrderID `json:"id"`
	Direction fixedpoint.Direction `json:"direction,omitempty"`
	Size      fixedpoint.Size    `json:"size,omitempty"`
	Price     fixedpoint.Price   `json:"price,omitempty"` // PlaceLimit only
	CancelID  fixedpoint.OrderID `json:"cancel_id,omitempty"`
}

func PlaceLimit(id fixedpoint.OrderID, dir fixedpoint.Direction, size fixedpoint.Size, price fixedpoint.Price) TraderRequest {
	return TraderRequest{Kind: ReqPlaceLimit, ID: id, Direction: dir, Size: size, Price: price}
}

func PlaceMarket(id fixedpoint.OrderID, dir fixedpoint.Direction, size fixedpoint.Size) TraderRequest {
	return TraderRequest{Kind: ReqPlaceMarket, ID: id, Direction: dir, Size: size}
}

func CancelLimit(id fixedpoint.OrderID) TraderRequest {
	return TraderRequest{Kind: ReqCancelLimit, CancelID: id}
}

func CancelMarket(id fixedpoint.OrderID) TraderRequest {
	return TraderRequest{Kind: ReqCancelMarket, CancelID: id}
}

// DiscardingReason explains why a placement was discarded.
type DiscardingReason int8

const (
	DiscardAlreadySubmitted DiscardingReason = iota
	DiscardZeroSize
	DiscardExchangeClosed
)

func (r DiscardingReason) String() string {
	switch r {
	case DiscardAlreadySubmitted:
		return "ORDER_WITH_SUCH_ID_ALREADY_SUBMITTED"
	case DiscardZeroSize:
		return "ZERO_SIZE"
	case DiscardExchangeClosed:
		return "EXCHANGE_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CancellationReason explains a successful cancellation.
type CancellationReason int8

const (
	CancelTraderRequested CancellationReason = iota
	CancelExchangeClosed
)

func (r CancellationReason) String() string {
	if r == CancelTraderRequested {
		return "TRADER_REQUESTED"
	}
	return "EXCHANGE_CLOSED"
}

// InabilityToCancelReason explains why a cancel request could not be honored.
type InabilityToCancelReason int8

const (
	CannotCancelNotSubmitted InabilityToCancelReason = iota
	CannotCancelAlreadyExecuted
	CannotCancelExchangeClosed
)

func (r InabilityToCancelReason) String() string {
	switch r {
	case CannotCancelNotSubmitted:
		return "ORDER_HAS_NOT_BEEN_SUBMITTED"
	case CannotCancelAlreadyExecuted:
		return "ORDER_ALREADY_EXECUTED"
	case CannotCancelExchangeClosed:
		return "EXCHANGE_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ReplyKind tags the variant held by an ExchangeReply.
type ReplyKind int8

const (
	ReplyOrderAccepted ReplyKind = iota
	ReplyOrderPlacementDiscarded
	ReplyOrderPartiallyExecuted
	ReplyOrderExecuted
	ReplyOrderCancelled
	ReplyCannotCancelOrder
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyOrderAccepted:
		return "ORDER_ACCEPTED"
	case ReplyOrderPlacementDiscarded:
		return "ORDER_PLACEMENT_DISCARDED"
	case ReplyOrderPartiallyExecuted:
		return "ORDER_PARTIALLY_EXECUTED"
	case ReplyOrderExecuted:
		return "ORDER_EXECUTED"
	case ReplyOrderCancelled:
		return "ORDER_CANCELLED"
	case ReplyCannotCancelOrder:
		return "CANNOT_CANCEL_ORDER"
	default:
		return "UNKNOWN"
	}
}

// ExchangeReply is the sum type of every message the exchange can send
// back to the trader about one of its orders.
type ExchangeReply struct {
	Kind      ReplyKind               `json:"kind"`
	ID        fixedpoint.OrderID      `json:"id"`
	Size      fixedpoint.Size         `json:"size,omitempty"`
	Price     fixedpoint.Price        `json:"price,omitempty"`
	Discard   DiscardingReason        `json:"discard_reason,omitempty"`
	Cancel    CancellationReason      `json:"cancel_reason,omitempty"`
	Inability InabilityToCancelReason `json:"inability_reason,omitempty"`
}

func OrderAccepted(id fixedpoint.OrderID) ExchangeReply {
	return ExchangeReply{Kind: ReplyOrderAccepted, ID: id}
}

func OrderPlacementDiscarded(id fixedpoint.OrderID, reason DiscardingReason) ExchangeReply {
	return ExchangeReply{Kind: ReplyOrderPlacementDiscarded, ID: id, Discard: reason}
}

func OrderPartiallyExecuted(id fixedpoint.OrderID, size fixedpoint.Size, price fixedpoint.Price) ExchangeReply {
	return ExchangeReply{Kind: ReplyOrderPartiallyExecuted, ID: id, Size: size, Price: price}
}

func OrderExecuted(id fixedpoint.OrderID, size fixedpoint.Size, price fixedpoint.Price) ExchangeReply {
	return ExchangeReply{Kind: ReplyOrderExecuted, ID: id, Size: size, Price: price}
}

func OrderCancelled(id fixedpoint.OrderID, reason CancellationReason) ExchangeReply {
	return ExchangeReply{Kind: ReplyOrderCancelled, ID: id, Cancel: reason}
}

func CannotCancelOrder(id fixedpoint.OrderID, reason InabilityToCancelReason) ExchangeReply {
	return ExchangeReply{Kind: ReplyCannotCancelOrder, ID: id, Inability: reason}
}

// String renders a human-readable form of the reply.
func (r ExchangeReply) String() string {
	switch r.Kind {
	case ReplyOrderAccepted:
		return fmt.Sprintf("OrderAccepted(%d)", r.ID)
	case ReplyOrderPlacementDiscarded:
		return fmt.Sprintf("OrderPlacementDiscarded(%d, %s)", r.ID, r.Discard)
	case ReplyOrderPartiallyExecuted:
		return fmt.Sprintf("OrderPartiallyExecuted(%d, %d, %d)", r.ID, r.Size, r.Price)
	case ReplyOrderExecuted:
		return fmt.Sprintf("OrderExecuted(%d, %d, %d)", r.ID, r.Size, r.Price)
	case ReplyOrderCancelled:
		return fmt.Sprintf("OrderCancelled(%d, %s)", r.ID, r.Cancel)
	case ReplyCannotCancelOrder:
		return fmt.Sprintf("CannotCancelOrder(%d, %s)", r.ID, r.Inability)
	default:
		return "UnknownReply"
	}
}

// --- Subscription payloads ---

// PriceLevelView is an aggregated (price, size) pair, the unit of an
// OrderBookSnapshot.
type PriceLevelView struct {
	Price fixedpoint.Price `json:"price"`
	Size  fixedpoint.Size  `json:"size"`
}

// OrderBookSnapshot is delivered by the order-book subscription: top-N
// (or full) levels per side, best first.
type OrderBookSnapshot struct {
	Bids []PriceLevelView `json:"bids"`
	Asks []PriceLevelView `json:"asks"`
}

// TradeRecord is one executed trade as reported to a trade-info subscriber.
type TradeRecord struct {
	Time             fixedpoint.SimulatedTime `json:"time"`
	Price            fixedpoint.Price         `json:"price"`
	Size             fixedpoint.Size          `json:"size"`
	AggressorDirection fixedpoint.Direction   `json:"aggressor_direction"`
}

// TradeInfo is delivered by the trade-info subscription: every execution
// since the previous delivery.
type TradeInfo struct {
	Trades []TradeRecord `json:"trades"`
}

// SessionNotification distinguishes ExchangeOpen from ExchangeClosed.
type SessionNotification int8

const (
	NotifyExchangeOpen SessionNotification = iota
	NotifyExchangeClosed
)

func (n SessionNotification) String() string {
	if n == NotifyExchangeOpen {
		return "EXCHANGE_OPEN"
	}
	return "EXCHANGE_CLOSED"
}

// MarshalJSON for the enums above, following the teacher's string-enum
// convention so the eventlog stays human-readable. None of them
// implements UnmarshalJSON.

func (k RequestKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }
func (k ReplyKind) MarshalJSON() ([]byte, error)   { return json.Marshal(k.String()) }
func (r DiscardingReason) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }
func (r CancellationReason) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }
func (r InabilityToCancelReason) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }
func (n SessionNotification) MarshalJSON() ([]byte, error) { return json.Marshal(n.String()) }
