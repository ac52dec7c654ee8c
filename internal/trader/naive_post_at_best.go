package trader

import (
	"sort"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/protocol"
)

// activeOrder tracks one of NaivePostAtBest's own resting limits: the
// side it posted on and the wake-up time it was placed at, so a
// wake-up tick can cancel anything that has aged past CancelTimeout.
type activeOrder struct {
	Direction fixedpoint.Direction
	PlacedAt  fixedpoint.SimulatedTime
}

// NaivePostAtBest posts one resting limit per side at the current best
// bid/ask whenever it doesn't already have one there, cancels anything
// that has rested longer than CancelTimeout, and crosses with a market
// order once the aggressor size summed over one trade-info delivery
// reaches AggressThreshold on one side — a crude proxy for "the tape just moved against me,
// catch up." Generalized from teacher internal/trader/agent.go's
// Strategy.Decide.
type NaivePostAtBest struct {
	CancelTimeout     int64 // nanoseconds
	AggressThreshold  fixedpoint.Size
	TargetSize        fixedpoint.Size

	nextID  fixedpoint.OrderID
	idBase  fixedpoint.OrderID
	active  map[fixedpoint.OrderID]activeOrder
	lastBid, lastAsk fixedpoint.Price
}

// NewNaivePostAtBest returns a strategy allocating order IDs upward
// from idBase+1, so multiple traders in the same run never collide.
func NewNaivePostAtBest(idBase fixedpoint.OrderID) *NaivePostAtBest {
	return &NaivePostAtBest{
		CancelTimeout:    500_000_000, // 500ms
		AggressThreshold: 50,
		TargetSize:       5,
		idBase:           idBase,
		nextID:           idBase,
		active:           make(map[fixedpoint.OrderID]activeOrder),
	}
}

func (s *NaivePostAtBest) allocateID() fixedpoint.OrderID {
	s.nextID++
	return s.nextID
}

func (s *NaivePostAtBest) OnExchangeReply(t fixedpoint.SimulatedTime, reply protocol.ExchangeReply) []protocol.TraderRequest {
	switch reply.Kind {
	case protocol.ReplyOrderExecuted, protocol.ReplyOrderCancelled, protocol.ReplyOrderPlacementDiscarded, protocol.ReplyCannotCancelOrder:
		delete(s.active, reply.ID)
	}
	return nil
}

func (s *NaivePostAtBest) OnOrderBookSnapshot(t fixedpoint.SimulatedTime, snap protocol.OrderBookSnapshot) []protocol.TraderRequest {
	if len(snap.Bids) > 0 {
		s.lastBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		s.lastAsk = snap.Asks[0].Price
	}
	return nil
}

func (s *NaivePostAtBest) OnTradeInfo(t fixedpoint.SimulatedTime, info protocol.TradeInfo) []protocol.TraderRequest {
	var buyVol, sellVol fixedpoint.Size
	for _, rec := range info.Trades {
		if rec.AggressorDirection == fixedpoint.Buy {
			buyVol += rec.Size
		} else {
			sellVol += rec.Size
		}
	}
	var requests []protocol.TraderRequest
	if buyVol >= s.AggressThreshold && s.lastAsk > 0 {
		requests = append(requests, protocol.PlaceMarket(s.allocateID(), fixedpoint.Buy, s.TargetSize))
	}
	if sellVol >= s.AggressThreshold && s.lastBid > 0 {
		requests = append(requests, protocol.PlaceMarket(s.allocateID(), fixedpoint.Sell, s.TargetSize))
	}
	return requests
}

func (s *NaivePostAtBest) OnWakeUp(t fixedpoint.SimulatedTime) []protocol.TraderRequest {
	var requests []protocol.TraderRequest

	ids := make([]fixedpoint.OrderID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	hasBid, hasAsk := false, false
	for _, id := range ids {
		o := s.active[id]
		if t-o.PlacedAt > s.CancelTimeout {
			requests = append(requests, protocol.CancelLimit(id))
			continue
		}
		if o.Direction == fixedpoint.Buy {
			hasBid = true
		} else {
			hasAsk = true
		}
	}

	if !hasBid && s.lastBid > 0 {
		id := s.allocateID()
		s.active[id] = activeOrder{Direction: fixedpoint.Buy, PlacedAt: t}
		requests = append(requests, protocol.PlaceLimit(id, fixedpoint.Buy, s.TargetSize, s.lastBid))
	}
	if !hasAsk && s.lastAsk > 0 {
		id := s.allocateID()
		s.active[id] = activeOrder{Direction: fixedpoint.Sell, PlacedAt: t}
		requests = append(requests, protocol.PlaceLimit(id, fixedpoint.Sell, s.TargetSize, s.lastAsk))
	}
	return requests
}

func (s *NaivePostAtBest) OnOpen(t fixedpoint.SimulatedTime) []protocol.TraderRequest  { return nil }
func (s *NaivePostAtBest) OnClose(t fixedpoint.SimulatedTime) []protocol.TraderRequest {
	s.active = make(map[fixedpoint.OrderID]activeOrder)
	return nil
}
