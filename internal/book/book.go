// Package book implements per-instrument order books at L1/L2/L3
// granularity. Ladders are B-trees keyed by (price, sequence, order ID) so
// iteration order is price/time priority; a secondary index gives O(log n)
// removal by order ID.
package book

import (
	"github.com/google/btree"

	"tradesim/internal/domain"
)

// Reserved entry IDs for the synthetic L1 levels maintained from quote and
// trade ticks.
const (
	l1BidID uint64 = 1
	l1AskID uint64 = 2
)

// Entry is a single resting liquidity entry. Client entries (resting
// simulated orders) survive snapshots; market entries are replaced by data.
type Entry struct {
	Price    domain.Price
	Size     domain.Quantity
	Side     domain.OrderSide
	OrderID  uint64
	Seq      uint64 // insertion sequence, the time-priority key
	IsClient bool
}

// bidLess orders the bid side: price descending, then sequence ascending,
// then order ID ascending. Min() is the best bid.
func bidLess(a, b Entry) bool {
	if a.Price.Raw != b.Price.Raw {
		return a.Price.Raw > b.Price.Raw
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.OrderID < b.OrderID
}

// askLess orders the ask side: price ascending, then sequence ascending,
// then order ID ascending. Min() is the best ask.
func askLess(a, b Entry) bool {
	if a.Price.Raw != b.Price.Raw {
		return a.Price.Raw < b.Price.Raw
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.OrderID < b.OrderID
}

// Level is an aggregated price level for depth queries and reports.
type Level struct {
	Price      domain.Price
	Size       domain.Quantity
	OrderCount int
}

// Fill is one (price, qty) pair produced by SimulateFills, naming the
// resting entry that provided the liquidity.
type Fill struct {
	Price    domain.Price
	Qty      domain.Quantity
	MakerID  uint64
	IsClient bool
}

// Book is a single-instrument order book. It is not safe for concurrent
// use; the exchange owns it and mutates it from the single-threaded
// dispatch path.
type Book struct {
	instrumentID domain.InstrumentID
	bookType     domain.BookType

	bids  *btree.BTreeG[Entry]
	asks  *btree.BTreeG[Entry]
	index map[uint64]Entry

	seq       uint64
	lastPrice domain.Price
	update    uint64 // mutation count, for staleness checks
}

// New creates an empty book of the given type.
func New(instrumentID domain.InstrumentID, bookType domain.BookType) *Book {
	const degree = 32
	return &Book{
		instrumentID: instrumentID,
		bookType:     bookType,
		bids:         btree.NewG[Entry](degree, bidLess),
		asks:         btree.NewG[Entry](degree, askLess),
		index:        make(map[uint64]Entry),
	}
}

// InstrumentID returns the book's instrument.
func (b *Book) InstrumentID() domain.InstrumentID { return b.instrumentID }

// Type returns the book granularity.
func (b *Book) Type() domain.BookType { return b.bookType }

// UpdateCount returns the number of mutations applied.
func (b *Book) UpdateCount() uint64 { return b.update }

// LastPrice returns the most recent trade price seen, if any.
func (b *Book) LastPrice() (domain.Price, bool) {
	return b.lastPrice, !b.lastPrice.IsZero()
}

func (b *Book) tree(side domain.OrderSide) *btree.BTreeG[Entry] {
	if side == domain.OrderSideBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) insert(e Entry) {
	b.seq++
	e.Seq = b.seq
	b.tree(e.Side).ReplaceOrInsert(e)
	b.index[e.OrderID] = e
	b.update++
}

// remove deletes an entry by order ID, returning whether it existed.
func (b *Book) remove(orderID uint64) bool {
	e, ok := b.index[orderID]
	if !ok {
		return false
	}
	delete(b.index, orderID)
	b.tree(e.Side).Delete(e)
	b.update++
	return true
}

// setSize replaces an entry's size in place, keeping its queue position.
func (b *Book) setSize(orderID uint64, size domain.Quantity) bool {
	e, ok := b.index[orderID]
	if !ok {
		return false
	}
	tree := b.tree(e.Side)
	tree.Delete(e)
	if size.IsZero() {
		delete(b.index, orderID)
	} else {
		e.Size = size
		tree.ReplaceOrInsert(e)
		b.index[orderID] = e
	}
	b.update++
	return true
}

// InsertClientOrder rests a simulated order in the book so top-of-book and
// depth queries reflect it. Client entries keep time priority through
// partial fills and are untouched by data snapshots.
func (b *Book) InsertClientOrder(side domain.OrderSide, px domain.Price, size domain.Quantity, orderID uint64) {
	b.insert(Entry{Price: px, Size: size, Side: side, OrderID: orderID, IsClient: true})
}

// RemoveClientOrder removes a resting simulated order.
func (b *Book) RemoveClientOrder(orderID uint64) bool { return b.remove(orderID) }

// UpdateClientOrder sets a resting simulated order's size in place. The
// entry keeps its queue position; growing the size does not re-queue it, so
// callers re-insert when venue rules demand priority loss.
func (b *Book) UpdateClientOrder(orderID uint64, size domain.Quantity) bool {
	return b.setSize(orderID, size)
}

// EntryByID returns the resting entry with the given internal ID.
func (b *Book) EntryByID(orderID uint64) (Entry, bool) {
	e, ok := b.index[orderID]
	return e, ok
}

// ReduceEntry shrinks a resting entry after a fill, deleting it when fully
// consumed. The entry keeps its queue position.
func (b *Book) ReduceEntry(orderID uint64, by domain.Quantity) bool {
	e, ok := b.index[orderID]
	if !ok {
		return false
	}
	if by.Raw >= e.Size.Raw {
		return b.remove(orderID)
	}
	return b.setSize(orderID, e.Size.Sub(by))
}

// ApplyDelta applies a single book mutation per the delta's action.
func (b *Book) ApplyDelta(d domain.OrderBookDelta) error {
	switch d.Action {
	case domain.BookActionClear:
		b.clearMarket()
		return nil
	case domain.BookActionAdd:
		b.addMarket(d.Order)
		return nil
	case domain.BookActionUpdate:
		b.updateMarket(d.Order)
		return nil
	case domain.BookActionDelete:
		b.remove(b.marketID(d.Order))
		return nil
	}
	return domain.Validationf("invalid book action %q", d.Action)
}

// ApplySnapshot atomically replaces the market liquidity: all market
// entries are cleared, then the snapshot levels load. Client entries are
// preserved.
func (b *Book) ApplySnapshot(s domain.OrderBookSnapshot) {
	b.clearMarket()
	for _, o := range s.Bids {
		b.addMarket(o)
	}
	for _, o := range s.Asks {
		b.addMarket(o)
	}
}

// marketID resolves the book-internal entry ID for a data order. L3 books
// trust the feed's order IDs; L2 books aggregate per price so the price is
// the identity; L1 books keep one entry per side.
func (b *Book) marketID(o domain.BookOrder) uint64 {
	switch b.bookType {
	case domain.BookTypeL3MBO:
		return o.OrderID
	case domain.BookTypeL2MBP:
		// Price-keyed: shift into a range that cannot collide with client
		// or L1 synthetic IDs (top bit set).
		return 1<<63 | uint64(o.Price.Raw)<<1 | sideBit(o.Side)
	default:
		if o.Side == domain.OrderSideBuy {
			return l1BidID
		}
		return l1AskID
	}
}

func sideBit(side domain.OrderSide) uint64 {
	if side == domain.OrderSideBuy {
		return 0
	}
	return 1
}

func (b *Book) addMarket(o domain.BookOrder) {
	id := b.marketID(o)
	if existing, ok := b.index[id]; ok {
		if b.bookType == domain.BookTypeL2MBP {
			// Aggregate into the level.
			b.setSize(id, existing.Size.Add(o.Size))
			return
		}
		b.remove(id)
	}
	b.insert(Entry{Price: o.Price, Size: o.Size, Side: o.Side, OrderID: id})
}

func (b *Book) updateMarket(o domain.BookOrder) {
	id := b.marketID(o)
	existing, ok := b.index[id]
	if !ok {
		b.insert(Entry{Price: o.Price, Size: o.Size, Side: o.Side, OrderID: id})
		return
	}
	if existing.Price.Raw != o.Price.Raw {
		// Price change re-keys the entry and loses queue position.
		b.remove(id)
		b.insert(Entry{Price: o.Price, Size: o.Size, Side: o.Side, OrderID: id})
		return
	}
	b.setSize(id, o.Size)
}

// clearMarket removes every market entry, leaving client orders resting.
func (b *Book) clearMarket() {
	var toRemove []uint64
	for id, e := range b.index {
		if !e.IsClient {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		b.remove(id)
	}
}

// UpdateQuoteTick refreshes the synthetic L1 levels from a quote. Books of
// deeper granularity are maintained from deltas and ignore quotes.
func (b *Book) UpdateQuoteTick(q domain.QuoteTick) {
	if b.bookType != domain.BookTypeL1TBBO {
		return
	}
	b.setL1(domain.OrderSideBuy, q.Bid, q.BidSize)
	b.setL1(domain.OrderSideSell, q.Ask, q.AskSize)
}

// UpdateTradeTick records the last trade price and, for L1 books, collapses
// both synthetic levels onto the trade so resting orders crossed by the
// print can match.
func (b *Book) UpdateTradeTick(t domain.TradeTick) {
	b.lastPrice = t.Price
	if b.bookType == domain.BookTypeL1TBBO {
		b.setL1(domain.OrderSideBuy, t.Price, t.Size)
		b.setL1(domain.OrderSideSell, t.Price, t.Size)
	}
}

func (b *Book) setL1(side domain.OrderSide, px domain.Price, size domain.Quantity) {
	id := l1BidID
	if side == domain.OrderSideSell {
		id = l1AskID
	}
	if _, ok := b.index[id]; ok {
		b.remove(id)
	}
	b.insert(Entry{Price: px, Size: size, Side: side, OrderID: id})
}

// bestEntry returns the top entry on a side.
func (b *Book) bestEntry(side domain.OrderSide) (Entry, bool) {
	return b.tree(side).Min()
}

// BestBid returns the highest bid price.
func (b *Book) BestBid() (domain.Price, bool) {
	e, ok := b.bestEntry(domain.OrderSideBuy)
	return e.Price, ok
}

// BestAsk returns the lowest ask price.
func (b *Book) BestAsk() (domain.Price, bool) {
	e, ok := b.bestEntry(domain.OrderSideSell)
	return e.Price, ok
}

// BestBidSize returns the size at the best bid.
func (b *Book) BestBidSize() (domain.Quantity, bool) {
	e, ok := b.bestEntry(domain.OrderSideBuy)
	return e.Size, ok
}

// BestAskSize returns the size at the best ask.
func (b *Book) BestAskSize() (domain.Quantity, bool) {
	e, ok := b.bestEntry(domain.OrderSideSell)
	return e.Size, ok
}

// Spread returns best ask − best bid.
func (b *Book) Spread() (domain.Price, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return domain.Price{}, false
	}
	return ask.Sub(bid), true
}

// Midpoint returns the mid of the best bid/ask with one extra digit of
// precision.
func (b *Book) Midpoint() (domain.Price, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return domain.Price{}, false
	}
	return domain.MidPrice(bid, ask), true
}

// IsCrossed reports whether best bid >= best ask.
func (b *Book) IsCrossed() bool {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	return okB && okA && !bid.Less(ask)
}

// VolumeAt returns the aggregate size resting at exactly the given price on
// a side.
func (b *Book) VolumeAt(side domain.OrderSide, px domain.Price) domain.Quantity {
	var total uint64
	var precision uint8
	b.tree(side).Ascend(func(e Entry) bool {
		if e.Price.Raw == px.Raw {
			total += e.Size.Raw
			precision = e.Size.Precision
			return true
		}
		// Trees are price-ordered; once past the price, stop.
		if side == domain.OrderSideBuy {
			return e.Price.Raw > px.Raw
		}
		return e.Price.Raw < px.Raw
	})
	return domain.QtyFromRaw(total, precision)
}

// Levels returns up to n aggregated price levels on a side, best first.
func (b *Book) Levels(side domain.OrderSide, n int) []Level {
	if n <= 0 {
		return nil
	}
	var levels []Level
	b.tree(side).Ascend(func(e Entry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price.Raw == e.Price.Raw {
			levels[len(levels)-1].Size = levels[len(levels)-1].Size.Add(e.Size)
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, Level{Price: e.Price, Size: e.Size, OrderCount: 1})
		return true
	})
	return levels
}

// SimulateFills walks the opposing side from the top, producing (price,
// qty) pairs that would fill an aggressive order of the given side and
// quantity. A zero limit price means unlimited (market). maxDepth bounds
// the number of entries consumed; 0 means unbounded. The book is not
// mutated.
func (b *Book) SimulateFills(side domain.OrderSide, qty domain.Quantity, limitPx domain.Price, maxDepth int, excludeID func(uint64) bool) []Fill {
	var fills []Fill
	remaining := qty
	depth := 0
	b.tree(side.Opposite()).Ascend(func(e Entry) bool {
		if remaining.IsZero() {
			return false
		}
		if maxDepth > 0 && depth >= maxDepth {
			return false
		}
		if !limitPx.IsZero() {
			if side == domain.OrderSideBuy && e.Price.Greater(limitPx) {
				return false
			}
			if side == domain.OrderSideSell && e.Price.Less(limitPx) {
				return false
			}
		}
		if excludeID != nil && excludeID(e.OrderID) {
			return true
		}
		fillQty := domain.MinQty(remaining, e.Size)
		if fillQty.IsZero() {
			return true
		}
		fills = append(fills, Fill{Price: e.Price, Qty: fillQty, MakerID: e.OrderID, IsClient: e.IsClient})
		remaining = remaining.Sub(fillQty)
		depth++
		return true
	})
	return fills
}

// Clear removes everything, including client orders. Used on reset.
func (b *Book) Clear() {
	b.bids.Clear(false)
	b.asks.Clear(false)
	b.index = make(map[uint64]Entry)
	b.lastPrice = domain.Price{}
	b.update++
}
