package book

import (
	"github.com/tidwall/btree"
)

// location is where a resting order id can be found.
type location struct {
	side  Side
	price int64
}

// OrderBook is one symbol's two-sided book: price-indexed levels iterable in
// price order without a full sort per call, plus an id index (spec §3,
// §4.2). Bids are ordered highest-first, asks lowest-first.
type OrderBook struct {
	Symbol string

	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	index map[string]location
}

// New creates an empty order book for symbol.
func New(symbol string) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: best ask first
	})
	return &OrderBook{
		Symbol: symbol,
		bids:   bids,
		asks:   asks,
		index:  make(map[string]location),
	}
}

func (b *OrderBook) sideTree(s Side) *btree.BTreeG[*PriceLevel] {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Add inserts order into the appropriate side's price-level map, creating
// the level if absent, and records it in the id index.
func (b *OrderBook) Add(o Order) {
	tree := b.sideTree(o.Side)
	search := &PriceLevel{Price: o.Price}

	level, ok := tree.GetMut(search)
	if !ok {
		level = NewPriceLevel(o.Price)
		tree.Set(level)
	}
	level.PushBack(o)
	b.index[o.ID] = location{side: o.Side, price: o.Price}
}

// Cancel removes the order with orderID from the book, deleting its price
// level if it becomes empty. Returns the removed order, or false if unknown.
func (b *OrderBook) Cancel(orderID string) (Order, bool) {
	loc, ok := b.index[orderID]
	if !ok {
		return Order{}, false
	}

	tree := b.sideTree(loc.side)
	search := &PriceLevel{Price: loc.price}
	level, ok := tree.GetMut(search)
	if !ok {
		// Index and book disagree; treat as not found rather than panic.
		delete(b.index, orderID)
		return Order{}, false
	}

	o, ok := level.Remove(orderID)
	if !ok {
		delete(b.index, orderID)
		return Order{}, false
	}
	delete(b.index, orderID)

	if level.IsEmpty() {
		tree.Delete(search)
	}
	return o, true
}

// BestBid returns the highest bid's price and level, or false if no bids rest.
func (b *OrderBook) BestBid() (int64, *PriceLevel, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, nil, false
	}
	return level.Price, level, true
}

// BestAsk returns the lowest ask's price and level, or false if no asks rest.
func (b *OrderBook) BestAsk() (int64, *PriceLevel, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, nil, false
	}
	return level.Price, level, true
}

// MatchStep consumes up to requestedQty from the best resting level on the
// side opposite aggressorSide (a Buy aggressor matches asks, a Sell
// aggressor matches bids). It mutates the book in place: if the matched
// level becomes empty it is removed from its tree, and if the maker is
// fully depleted it is dropped from the id index. ok is false iff the
// opposite side has no resting orders.
func (b *OrderBook) MatchStep(aggressorSide Side, requestedQty uint64) (maker Order, fillPrice int64, filled uint64, ok bool) {
	tree := b.sideTree(aggressorSide.Opposite())

	level, found := tree.MinMut()
	if !found {
		return Order{}, 0, 0, false
	}

	maker, filled, ok = level.MatchPartial(requestedQty)
	if !ok {
		return Order{}, 0, 0, false
	}
	fillPrice = level.Price

	if maker.Remaining == 0 {
		delete(b.index, maker.ID)
	}
	if level.IsEmpty() {
		tree.Delete(&PriceLevel{Price: level.Price})
	}
	return maker, fillPrice, filled, true
}

// Contains reports whether orderID is currently resting in the book.
func (b *OrderBook) Contains(orderID string) bool {
	_, ok := b.index[orderID]
	return ok
}

// PriceVolume is one (price, aggregate volume) pair in a snapshot.
type PriceVolume struct {
	Price  int64
	Volume uint64
}

// Snapshot is the book depth view returned by Snapshot and used to compute
// market-data deltas (spec §4.2, §4.5).
type Snapshot struct {
	Symbol string
	Bids   []PriceVolume // descending price
	Asks   []PriceVolume // ascending price
}

// Snapshot returns up to depth price levels per side.
func (b *OrderBook) Snapshot(depth int) Snapshot {
	s := Snapshot{Symbol: b.Symbol}

	bidLevels := b.bids.Items()
	for i, lvl := range bidLevels {
		if i >= depth {
			break
		}
		s.Bids = append(s.Bids, PriceVolume{Price: lvl.Price, Volume: lvl.TotalVolume()})
	}

	askLevels := b.asks.Items()
	for i, lvl := range askLevels {
		if i >= depth {
			break
		}
		s.Asks = append(s.Asks, PriceVolume{Price: lvl.Price, Volume: lvl.TotalVolume()})
	}

	return s
}
