package scenario

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"
)

// obHeader and trdHeader are the header rows of the two generated
// streams. Their column names differ from internal/history's
// DefaultColumns, so callers set history.Columns to these names.
var (
	obHeader  = "datetime,order_id,price,size,bs_flag"
	trdHeader = "datetime,order_id,size,bs_flag"
)

// DatetimeFormat is the strftime format the generated timestamps are
// rendered in; callers build an internal/history.Config with this same
// format string so the fixture round-trips.
const DatetimeFormat = "%Y-%m-%d %H:%M:%S%.f"

const goLayout = "2006-01-02 15:04:05.000000000"

// anchor is an arbitrary fixed calendar time; generated records are
// this plus an offset in nanoseconds, so the fixture reads like a real
// trading-session tape rather than a run starting at the Unix epoch.
var anchor = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

type row struct {
	timeNs int64
	id     uint64
	price  string // empty for a trade row
	size   int64
	sell   bool
}

func (r row) bsFlag() string {
	if r.sell {
		return "S"
	}
	return "B"
}

func (r row) format(withPrice bool) string {
	ts := anchor.Add(time.Duration(r.timeNs)).Format(goLayout)
	if withPrice {
		return fmt.Sprintf("%s,%d,%s,%d,%s", ts, r.id, r.price, r.size, r.bsFlag())
	}
	return fmt.Sprintf("%s,%d,%d,%s", ts, r.id, r.size, r.bsFlag())
}

// generator produces background order-book-diff and trade flow around
// a fixed mid price, adapted from the teacher's calm-scenario
// background generator: same Poisson-style inter-arrival loop and
// cancel/market/limit roll, retargeted to emit CSV rows instead of
// in-memory domain.Event values.
type generator struct {
	p      Params
	rng    *rand.Rand
	nextID uint64
}

func newGenerator(p Params) *generator {
	return &generator{p: p, rng: rand.New(rand.NewSource(p.Seed)), nextID: 1}
}

func (g *generator) id() uint64 {
	id := g.nextID
	g.nextID++
	return id
}

func (g *generator) size() int64 {
	if g.p.MaxOrderSize <= g.p.MinOrderSize {
		return g.p.MinOrderSize
	}
	return g.p.MinOrderSize + g.rng.Int63n(g.p.MaxOrderSize-g.p.MinOrderSize+1)
}

func parseTicks(decStr, tickStr string) int64 {
	dv, _ := strconv.ParseFloat(decStr, 64)
	tv, _ := strconv.ParseFloat(tickStr, 64)
	if tv == 0 {
		return 0
	}
	return int64(dv/tv + 0.5)
}

func ticksToDecimal(ticks int64, tickStr string) string {
	tv, _ := strconv.ParseFloat(tickStr, 64)
	return strconv.FormatFloat(float64(ticks)*tv, 'f', 2, 64)
}

// Generate builds a synthetic order-book-diff stream and trade stream
// over Params.DurationNs, seeded initial resting liquidity plus a
// steady background flow of limit orders, market orders, and cancels.
// Each returned string is a complete CSV document (header plus rows)
// in internal/history's OB-diff / trade column layout, individually
// sorted by time as internal/history.Source requires of each stream.
func Generate(p Params) (obCSV, tradeCSV string) {
	g := newGenerator(p)
	midTicks := parseTicks(p.InitialMidPrice, p.PriceTick)
	spreadTicks := parseTicks(p.InitialSpread, p.PriceTick)
	halfSpread := spreadTicks / 2
	bestBid := midTicks - halfSpread
	bestAsk := midTicks + halfSpread

	var obRows, trdRows []row
	var restingIDs []uint64

	for lvl := int64(0); lvl < p.MaxPriceLevels; lvl++ {
		bidTicks := bestBid - lvl
		askTicks := bestAsk + lvl
		for i := int64(0); i < p.DepthPerLevel; i++ {
			bid := row{timeNs: p.StartNs, id: g.id(), price: ticksToDecimal(bidTicks, p.PriceTick), size: g.size(), sell: false}
			ask := row{timeNs: p.StartNs, id: g.id(), price: ticksToDecimal(askTicks, p.PriceTick), size: g.size(), sell: true}
			obRows = append(obRows, bid, ask)
			restingIDs = append(restingIDs, bid.id, ask.id)
		}
	}

	for t := p.StartNs + p.OrderIntervalNs; t < p.StartNs+p.DurationNs; t += p.OrderIntervalNs {
		jitter := int64(0)
		if p.OrderIntervalNs > 1 {
			jitter = g.rng.Int63n(p.OrderIntervalNs / 2)
		}
		eventTime := t + jitter
		if eventTime >= p.StartNs+p.DurationNs {
			break
		}

		roll := g.rng.Float64()
		switch {
		case roll < p.CancelRate && len(restingIDs) > 0:
			idx := g.rng.Intn(len(restingIDs))
			cancelID := restingIDs[idx]
			restingIDs = append(restingIDs[:idx], restingIDs[idx+1:]...)
			// A cancel is represented downstream as a fresh OB-diff row
			// at size 0 for the cancelled ID.
			obRows = append(obRows, row{timeNs: eventTime, id: cancelID, price: "0.00", size: 0, sell: false})
		case roll < p.CancelRate+p.MarketOrderRatio:
			trdRows = append(trdRows, row{timeNs: eventTime, id: g.id(), size: g.size(), sell: g.rng.Float64() < 0.5})
		default:
			sell := g.rng.Float64() < 0.5
			offset := int64(0)
			if p.MaxPriceLevels > 0 {
				offset = g.rng.Int63n(p.MaxPriceLevels)
			}
			var priceTicks int64
			if sell {
				priceTicks = bestAsk + offset
			} else {
				priceTicks = bestBid - offset
			}
			id := g.id()
			obRows = append(obRows, row{timeNs: eventTime, id: id, price: ticksToDecimal(priceTicks, p.PriceTick), size: g.size(), sell: sell})
			restingIDs = append(restingIDs, id)
		}
	}

	sort.SliceStable(obRows, func(i, j int) bool { return obRows[i].timeNs < obRows[j].timeNs })
	sort.SliceStable(trdRows, func(i, j int) bool { return trdRows[i].timeNs < trdRows[j].timeNs })

	var ob, trd strings.Builder
	ob.WriteString(obHeader + "\n")
	for _, r := range obRows {
		ob.WriteString(r.format(true) + "\n")
	}
	trd.WriteString(trdHeader + "\n")
	for _, r := range trdRows {
		trd.WriteString(r.format(false) + "\n")
	}
	return ob.String(), trd.String()
}
