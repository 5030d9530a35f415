package book

import "container/list"

// PriceLevel is the ordered FIFO of resting orders at one price on one side
// of one book (spec §3, §4.1). A doubly linked list plus an id->element
// index gives O(1) push, O(1) cancel, and preserves strict time priority.
type PriceLevel struct {
	Price       int64
	orders      *list.List
	byID        map[string]*list.Element
	totalVolume uint64
}

// NewPriceLevel creates an empty level at price.
func NewPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		orders: list.New(),
		byID:   make(map[string]*list.Element),
	}
}

// PushBack appends order to the FIFO.
func (l *PriceLevel) PushBack(o Order) {
	el := l.orders.PushBack(o)
	l.byID[o.ID] = el
	l.totalVolume += o.Remaining
}

// MatchPartial consumes up to requestedQty from the front order of the
// level. filled = min(requestedQty, front.Remaining); if that fully depletes
// the front order it is removed, otherwise its Remaining is reduced in
// place. The returned maker snapshot carries the maker's post-fill
// Remaining. ok is false iff the level is empty.
func (l *PriceLevel) MatchPartial(requestedQty uint64) (maker Order, filled uint64, ok bool) {
	front := l.orders.Front()
	if front == nil {
		return Order{}, 0, false
	}

	o := front.Value.(Order)
	filled = min(requestedQty, o.Remaining)
	o.Remaining -= filled
	l.totalVolume -= filled

	if o.Remaining == 0 {
		l.orders.Remove(front)
		delete(l.byID, o.ID)
	} else {
		front.Value = o
	}

	return o, filled, true
}

// Remove removes the order with orderID from the FIFO in O(1), returning it.
func (l *PriceLevel) Remove(orderID string) (Order, bool) {
	el, ok := l.byID[orderID]
	if !ok {
		return Order{}, false
	}

	o := el.Value.(Order)
	l.orders.Remove(el)
	delete(l.byID, orderID)
	l.totalVolume -= o.Remaining
	return o, true
}

// IsEmpty reports whether the level holds no orders.
func (l *PriceLevel) IsEmpty() bool { return l.orders.Len() == 0 }

// Len returns the number of resting orders at this level.
func (l *PriceLevel) Len() int { return l.orders.Len() }

// TotalVolume returns the sum of Remaining across contained orders.
func (l *PriceLevel) TotalVolume() uint64 { return l.totalVolume }

// Orders returns the resting orders in FIFO order. Intended for snapshots
// and tests; callers must not mutate the returned slice's elements in place
// to affect level state.
func (l *PriceLevel) Orders() []Order {
	out := make([]Order, 0, l.orders.Len())
	for e := l.orders.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Order))
	}
	return out
}
