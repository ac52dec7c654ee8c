// Package orderbook implements the dual-sided limit order book:
// resting-order storage with price-time priority, origin-tagged so
// that history-replayed and trader-submitted entries share one price
// level. Matching itself lives in internal/matching — this package
// only stores, inserts, removes and reports.
//
// Adapted from teacher internal/orderbook/book.go: same PriceLevel/
// Book/sort.Search insertion shape and the same AssertInvariants
// check list, generalized from *domain.Order entries (single origin)
// to Entry (ID, Size, Origin) so a history-replayed resting
// order and a trader-submitted resting order can sit in the same FIFO
// queue, as spec.md's order book requires.
package orderbook

import (
	"fmt"
	"sort"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
	"github.com/nrjones/lob-backtester/internal/protocol"
)

// Entry is one resting order at a price level.
type Entry struct {
	ID     fixedpoint.OrderID
	Size   fixedpoint.Size
	Origin fixedpoint.OrderOrigin
}

// PriceLevel holds all resting entries at a single price, in FIFO order.
type PriceLevel struct {
	Price   fixedpoint.Price
	Entries []Entry
}

// TotalSize returns the sum of remaining sizes at this level.
func (pl *PriceLevel) TotalSize() fixedpoint.Size {
	var total fixedpoint.Size
	for _, e := range pl.Entries {
		total += e.Size
	}
	return total
}

// Book is a single-instrument limit order book, one side per
// direction, sorted best-first.
type Book struct {
	Bids []*PriceLevel // descending by price, best bid first
	Asks []*PriceLevel // ascending by price, best ask first

	index map[fixedpoint.OrderID]location
}

type location struct {
	dir   fixedpoint.Direction
	price fixedpoint.Price
}

// New returns an empty book.
func New() *Book {
	return &Book{index: make(map[fixedpoint.OrderID]location)}
}

func (b *Book) sideFor(dir fixedpoint.Direction) *[]*PriceLevel {
	if dir == fixedpoint.Buy {
		return &b.Bids
	}
	return &b.Asks
}

// BestLevel returns the best (first) price level on the given side, or
// nil if that side is empty.
func (b *Book) BestLevel(dir fixedpoint.Direction) *PriceLevel {
	levels := *b.sideFor(dir)
	if len(levels) == 0 {
		return nil
	}
	return levels[0]
}

// Insert adds a resting entry at the given price on the given side,
// creating a new level if necessary, preserving price-time priority.
func (b *Book) Insert(dir fixedpoint.Direction, price fixedpoint.Price, e Entry) {
	levels := b.sideFor(dir)
	*levels = insertIntoLevels(*levels, price, e, dir == fixedpoint.Buy)
	b.index[e.ID] = location{dir: dir, price: price}
}

func insertIntoLevels(levels []*PriceLevel, price fixedpoint.Price, e Entry, descending bool) []*PriceLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].Price <= price
		}
		return levels[i].Price >= price
	})
	if idx < len(levels) && levels[idx].Price == price {
		levels[idx].Entries = append(levels[idx].Entries, e)
		return levels
	}
	newLevel := &PriceLevel{Price: price, Entries: []Entry{e}}
	levels = append(levels, nil)
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = newLevel
	return levels
}

// ReduceFront fills `qty` off the front entry of the given level,
// removing it entirely if exhausted. Caller guarantees qty <=
// level.Entries[0].Size. Empty levels are pruned automatically.
func (b *Book) ReduceFront(dir fixedpoint.Direction, qty fixedpoint.Size) {
	levels := b.sideFor(dir)
	level := (*levels)[0]
	front := &level.Entries[0]
	front.Size = front.Size.Sub(qty)
	if front.Size.IsZero() {
		delete(b.index, front.ID)
		level.Entries = level.Entries[1:]
		if len(level.Entries) == 0 {
			*levels = (*levels)[1:]
		}
	}
}

// LevelsFrom returns a snapshot slice of price-level pointers on the
// side OPPOSITE an incoming order of direction `dir`, best-first,
// optionally bounded by price (inclusive: <=bound for a buy crossing
// asks, >=bound for a sell crossing bids). A nil bound returns the
// whole opposite side. The matching engine walks this fixed list
// level-by-level so that entries left un-mutated by the
// trade-updates-book policy are never revisited within one aggression
// pass.
func (b *Book) LevelsFrom(dir fixedpoint.Direction, bound *fixedpoint.Price) []*PriceLevel {
	levels := *b.sideFor(dir.Opposite())
	out := make([]*PriceLevel, 0, len(levels))
	for _, level := range levels {
		if bound != nil {
			if dir == fixedpoint.Buy && level.Price > *bound {
				break
			}
			if dir == fixedpoint.Sell && level.Price < *bound {
				break
			}
		}
		out = append(out, level)
	}
	return out
}

// ReduceByID reduces a resting entry's size by qty, removing it (and
// its level, if now empty) when the size reaches zero. Returns false
// if the ID is not currently resting.
func (b *Book) ReduceByID(id fixedpoint.OrderID, qty fixedpoint.Size) bool {
	loc, ok := b.index[id]
	if !ok {
		return false
	}
	levels := b.sideFor(loc.dir)
	for i, level := range *levels {
		if level.Price != loc.price {
			continue
		}
		for j := range level.Entries {
			if level.Entries[j].ID != id {
				continue
			}
			level.Entries[j].Size = level.Entries[j].Size.Sub(qty)
			if level.Entries[j].Size.IsZero() {
				level.Entries = append(level.Entries[:j], level.Entries[j+1:]...)
				if len(level.Entries) == 0 {
					*levels = append((*levels)[:i], (*levels)[i+1:]...)
				}
				delete(b.index, id)
			}
			return true
		}
	}
	return false
}

// Remove deletes a resting order by ID, wherever it sits. Returns
// false if the ID is not currently resting.
func (b *Book) Remove(id fixedpoint.OrderID) bool {
	loc, ok := b.index[id]
	if !ok {
		return false
	}
	levels := b.sideFor(loc.dir)
	for i, level := range *levels {
		if level.Price != loc.price {
			continue
		}
		for j, e := range level.Entries {
			if e.ID != id {
				continue
			}
			level.Entries = append(level.Entries[:j], level.Entries[j+1:]...)
			if len(level.Entries) == 0 {
				*levels = append((*levels)[:i], (*levels)[i+1:]...)
			}
			delete(b.index, id)
			return true
		}
	}
	return false
}

// Contains reports whether an order ID currently rests on the book.
func (b *Book) Contains(id fixedpoint.OrderID) bool {
	_, ok := b.index[id]
	return ok
}

// QueuePosition returns the 1-based FIFO position of a resting order
// at its price level, or 0 if it is not on the book.
func (b *Book) QueuePosition(id fixedpoint.OrderID) int {
	loc, ok := b.index[id]
	if !ok {
		return 0
	}
	levels := *b.sideFor(loc.dir)
	for _, level := range levels {
		if level.Price != loc.price {
			continue
		}
		for i, e := range level.Entries {
			if e.ID == id {
				return i + 1
			}
		}
	}
	return 0
}

// VolumeAtOrBetter sums resting size on the side OPPOSITE an incoming
// order of direction `dir`, at prices at least as aggressive as
// `limit` for that direction (<=limit for a buy crossing asks, >=limit
// for a sell crossing bids) — used by the matching engine's
// crossing-limit detection before walking the book.
func (b *Book) VolumeAtOrBetter(dir fixedpoint.Direction, limit fixedpoint.Price) fixedpoint.Size {
	var total fixedpoint.Size
	for _, level := range *b.sideFor(dir.Opposite()) {
		if dir == fixedpoint.Buy {
			if level.Price > limit {
				break
			}
		} else {
			if level.Price < limit {
				break
			}
		}
		total += level.TotalSize()
	}
	return total
}

// Depth returns the number of price levels on each side.
func (b *Book) Depth() (bidLevels, askLevels int) {
	return len(b.Bids), len(b.Asks)
}

// Snapshot renders up to `depth` levels per side (0 means all) as a
// protocol.OrderBookSnapshot, the payload delivered to order-book
// subscribers.
func (b *Book) Snapshot(depth int) protocol.OrderBookSnapshot {
	render := func(levels []*PriceLevel) []protocol.PriceLevelView {
		n := len(levels)
		if depth > 0 && depth < n {
			n = depth
		}
		out := make([]protocol.PriceLevelView, n)
		for i := 0; i < n; i++ {
			out[i] = protocol.PriceLevelView{Price: levels[i].Price, Size: levels[i].TotalSize()}
		}
		return out
	}
	return protocol.OrderBookSnapshot{Bids: render(b.Bids), Asks: render(b.Asks)}
}

// AssertInvariants checks the book's structural invariants and panics
// on violation. Same check list as teacher's book.go, generalized to
// Entries.
func (b *Book) AssertInvariants() {
	for i := 1; i < len(b.Bids); i++ {
		if b.Bids[i].Price >= b.Bids[i-1].Price {
			panic(fmt.Sprintf("orderbook: bid levels not sorted descending: %d >= %d at index %d",
				b.Bids[i].Price, b.Bids[i-1].Price, i))
		}
	}
	for i := 1; i < len(b.Asks); i++ {
		if b.Asks[i].Price <= b.Asks[i-1].Price {
			panic(fmt.Sprintf("orderbook: ask levels not sorted ascending: %d <= %d at index %d",
				b.Asks[i].Price, b.Asks[i-1].Price, i))
		}
	}
	if len(b.Bids) > 0 && len(b.Asks) > 0 && b.Bids[0].Price >= b.Asks[0].Price {
		panic(fmt.Sprintf("orderbook: crossed book: best bid %d >= best ask %d", b.Bids[0].Price, b.Asks[0].Price))
	}
	count := 0
	for _, level := range b.Bids {
		if len(level.Entries) == 0 {
			panic(fmt.Sprintf("orderbook: empty bid level at price %d", level.Price))
		}
		for _, e := range level.Entries {
			if e.Size.IsZero() {
				panic(fmt.Sprintf("orderbook: zero-size entry %d resting on book", e.ID))
			}
		}
		count += len(level.Entries)
	}
	for _, level := range b.Asks {
		if len(level.Entries) == 0 {
			panic(fmt.Sprintf("orderbook: empty ask level at price %d", level.Price))
		}
		for _, e := range level.Entries {
			if e.Size.IsZero() {
				panic(fmt.Sprintf("orderbook: zero-size entry %d resting on book", e.ID))
			}
		}
		count += len(level.Entries)
	}
	if count != len(b.index) {
		panic(fmt.Sprintf("orderbook: index size %d != book entry count %d", len(b.index), count))
	}
}
