// Package summary accumulates a per-run execution summary for the
// exchange's single trader: orders sent, fills, time-to-fill, and
// queue position at placement.
//
// Grounded on teacher internal/metrics/collector.go's Collector/
// TraderMetrics shape, trimmed to spec.md §5's single-trader model (no
// per-trader-ID map, no fast-vs-slow framing) and fed directly from
// internal/exchange's dispatch loop instead of replaying an event log,
// since protocol.TraderRequest/ExchangeReply hold everything needed
// without re-deriving state from JSON.
package summary

import (
	"sort"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/protocol"
)

// Collector accumulates metrics as the exchange processes one run.
type Collector struct {
	ordersSent   int
	limitOrders  int
	marketOrders int
	cancelsSent  int

	placedAt  map[fixedpoint.OrderID]fixedpoint.SimulatedTime
	queuePos  map[fixedpoint.OrderID]int
	filled    map[fixedpoint.OrderID]bool
	cancelled map[fixedpoint.OrderID]bool

	fills []fillRecord
}

type fillRecord struct {
	qty          fixedpoint.Size
	timeToFillNs float64
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{
		placedAt:  make(map[fixedpoint.OrderID]fixedpoint.SimulatedTime),
		queuePos:  make(map[fixedpoint.OrderID]int),
		filled:    make(map[fixedpoint.OrderID]bool),
		cancelled: make(map[fixedpoint.OrderID]bool),
	}
}

// RecordRequest observes one outbound trader request, before the
// exchange has processed it.
func (c *Collector) RecordRequest(t fixedpoint.SimulatedTime, req protocol.TraderRequest) {
	switch req.Kind {
	case protocol.ReqPlaceLimit:
		c.ordersSent++
		c.limitOrders++
		c.placedAt[req.ID] = t
	case protocol.ReqPlaceMarket:
		c.ordersSent++
		c.marketOrders++
		c.placedAt[req.ID] = t
	case protocol.ReqCancelLimit, protocol.ReqCancelMarket:
		c.cancelsSent++
	}
}

// RecordQueuePosition observes the resting queue position a limit
// order joined at immediately after placement. Called once, right
// after the matching engine accepts a PlaceLimit request.
func (c *Collector) RecordQueuePosition(id fixedpoint.OrderID, pos int) {
	c.queuePos[id] = pos
}

// RecordReply observes one exchange reply.
func (c *Collector) RecordReply(t fixedpoint.SimulatedTime, reply protocol.ExchangeReply) {
	switch reply.Kind {
	case protocol.ReplyOrderPartiallyExecuted, protocol.ReplyOrderExecuted:
		c.filled[reply.ID] = true
		var ttf float64
		if placed, ok := c.placedAt[reply.ID]; ok {
			ttf = float64(t-placed) / 1e6
		}
		c.fills = append(c.fills, fillRecord{qty: reply.Size, timeToFillNs: ttf})
	case protocol.ReplyOrderCancelled:
		c.cancelled[reply.ID] = true
	}
}

// Summary is the computed, immutable result of a finished run.
type Summary struct {
	OrdersSent   int
	LimitOrders  int
	MarketOrders int
	CancelsSent  int

	TotalFills     int
	TotalQtyFilled fixedpoint.Size
	FillRate       float64

	CanceledBeforeFill int

	AvgTimeToFillMs float64
	TimeToFillDist  []float64

	AvgQueuePosPlace float64
}

// Compute finalizes the accumulated observations into a Summary.
func (c *Collector) Compute() *Summary {
	s := &Summary{
		OrdersSent:   c.ordersSent,
		LimitOrders:  c.limitOrders,
		MarketOrders: c.marketOrders,
		CancelsSent:  c.cancelsSent,
		TotalFills:   len(c.fills),
	}

	placedCount := len(c.placedAt)
	if placedCount > 0 {
		filledCount := 0
		for id := range c.placedAt {
			if c.filled[id] {
				filledCount++
			}
		}
		s.FillRate = float64(filledCount) / float64(placedCount)
	}

	var totalQty fixedpoint.Size
	var totalTTF float64
	for _, f := range c.fills {
		totalQty += f.qty
		totalTTF += f.timeToFillNs
		s.TimeToFillDist = append(s.TimeToFillDist, f.timeToFillNs)
	}
	s.TotalQtyFilled = totalQty
	if len(c.fills) > 0 {
		s.AvgTimeToFillMs = totalTTF / float64(len(c.fills))
	}
	sort.Float64s(s.TimeToFillDist)

	var totalPos float64
	var posCount int
	for id, pos := range c.queuePos {
		_ = id
		totalPos += float64(pos)
		posCount++
	}
	if posCount > 0 {
		s.AvgQueuePosPlace = totalPos / float64(posCount)
	}

	for id := range c.cancelled {
		if !c.filled[id] {
			s.CanceledBeforeFill++
		}
	}

	return s
}
