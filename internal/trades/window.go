// Package trades implements the rolling trade-info window: a buffer of
// executions accumulated since the last delivery to a trade-info
// subscriber, with OHLC and per-price aggressor-size aggregation,
// reset whenever it is drained for delivery.
//
// Grounded on teacher internal/metrics/collector.go's trade-history
// accumulation (tradeHistory slice, price/qty tracking per trade),
// adapted from that package's post-hoc analytics accumulator into a
// live window that resets on every delivery rather than growing for
// the life of a run.
package trades

import (
	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/protocol"
)

// AggressorSizes tracks buy-aggressor and sell-aggressor volume traded
// at one price within the current window.
type AggressorSizes struct {
	BuyAggressed  fixedpoint.Size
	SellAggressed fixedpoint.Size
}

// Window accumulates executions between subscriber deliveries.
type Window struct {
	open, high, low, close fixedpoint.Price
	hasTrade               bool
	buyVolume, sellVolume  fixedpoint.Size
	byPrice                map[fixedpoint.Price]*AggressorSizes
	records                []protocol.TradeRecord
}

// NewWindow returns an empty window.
func NewWindow() *Window {
	return &Window{byPrice: make(map[fixedpoint.Price]*AggressorSizes)}
}

// Record appends one execution to the window, updating OHLC and the
// per-price aggressor map. Called once per fill as the matching engine
// produces trades, regardless of whether any subscriber is currently
// enabled — the window costs nothing extra to keep live since Drain
// is cheap.
func (w *Window) Record(t fixedpoint.SimulatedTime, price fixedpoint.Price, size fixedpoint.Size, aggressor fixedpoint.Direction) {
	if !w.hasTrade {
		w.open = price
		w.high = price
		w.low = price
		w.hasTrade = true
	}
	if price > w.high {
		w.high = price
	}
	if price < w.low {
		w.low = price
	}
	w.close = price

	agg, ok := w.byPrice[price]
	if !ok {
		agg = &AggressorSizes{}
		w.byPrice[price] = agg
	}
	if aggressor == fixedpoint.Buy {
		w.buyVolume += size
		agg.BuyAggressed += size
	} else {
		w.sellVolume += size
		agg.SellAggressed += size
	}

	w.records = append(w.records, protocol.TradeRecord{
		Time: t, Price: price, Size: size, AggressorDirection: aggressor,
	})
}

// Empty reports whether no trade has been recorded since the last reset.
func (w *Window) Empty() bool { return !w.hasTrade }

// OHLC returns the window's open/high/low/close. Zero values if Empty.
func (w *Window) OHLC() (open, high, low, close fixedpoint.Price) {
	return w.open, w.high, w.low, w.close
}

// Volumes returns total buy-aggressor and sell-aggressor size traded
// in the window.
func (w *Window) Volumes() (buy, sell fixedpoint.Size) {
	return w.buyVolume, w.sellVolume
}

// AtPrice returns the aggressor breakdown recorded at a given price, or
// nil if no trade occurred there this window.
func (w *Window) AtPrice(p fixedpoint.Price) *AggressorSizes {
	return w.byPrice[p]
}

// Drain renders the accumulated records as a protocol.TradeInfo payload
// and resets the window, per spec: "buffer is reset on delivery."
func (w *Window) Drain() protocol.TradeInfo {
	info := protocol.TradeInfo{Trades: w.records}
	w.records = nil
	w.byPrice = make(map[fixedpoint.Price]*AggressorSizes)
	w.hasTrade = false
	w.open, w.high, w.low, w.close = 0, 0, 0, 0
	w.buyVolume, w.sellVolume = 0, 0
	return info
}
