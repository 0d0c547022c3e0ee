package exchange

import (
	"fmt"
	"log/slog"

	"tradesim/internal/book"
	"tradesim/internal/domain"
)

// EngineConfig selects venue behavior for one matching engine.
type EngineConfig struct {
	OmsType  domain.OmsType
	BookType domain.BookType

	// RejectStopOrders rejects stop orders whose trigger is already inside
	// the market at submission instead of firing them immediately.
	RejectStopOrders bool

	// SupportContingentOrders enables OTO/OCO/OUO handling. When false,
	// contingency links are ignored and every order works independently.
	SupportContingentOrders bool
}

// EngineDeps wires a matching engine to its owning exchange.
type EngineDeps struct {
	FillModel  *FillModel
	Commission domain.CommissionModel
	IDs        *IDGenerator
	AccountID  domain.AccountID
	Log        *slog.Logger

	// Emit routes every applied order event out of the engine. The exchange
	// uses it for accounting and for the external event stream.
	Emit func(domain.OrderEvent)

	// PositionFor resolves the position ID a fill on the order books to,
	// honoring the OMS type.
	PositionFor func(o *domain.Order) domain.PositionID

	// NetPosition returns the signed open quantity (raw units) for the
	// strategy on this instrument. Used for reduce-only enforcement.
	NetPosition func(strategyID domain.StrategyID) int64
}

// MatchingEngine matches orders for a single instrument against its book.
// Aggressive orders fill at book level prices (taker); resting orders fill
// at their own limit price (maker). All mutations happen on the exchange's
// single dispatch goroutine.
type MatchingEngine struct {
	instrument *domain.Instrument
	book       *book.Book
	cfg        EngineConfig
	deps       EngineDeps
	log        *slog.Logger

	orders   map[domain.ClientOrderID]*domain.Order
	orderSeq []domain.ClientOrderID

	restingID  map[domain.ClientOrderID]uint64
	entryOwner map[uint64]domain.ClientOrderID
	stopIDs    []domain.ClientOrderID

	// held holds OTO children keyed by parent until the parent's first fill.
	held map[domain.ClientOrderID][]*domain.Order

	// busy guards contingency fan-out against cancel/update cycles.
	busy map[domain.ClientOrderID]bool

	nowNs int64
}

// NewMatchingEngine creates an engine with an empty book.
func NewMatchingEngine(instrument *domain.Instrument, cfg EngineConfig, deps EngineDeps) *MatchingEngine {
	m := &MatchingEngine{
		instrument: instrument,
		book:       book.New(instrument.ID, cfg.BookType),
		cfg:        cfg,
		deps:       deps,
		log:        deps.Log.With("instrument", instrument.ID.String()),
	}
	m.resetState()
	return m
}

func (m *MatchingEngine) resetState() {
	m.orders = make(map[domain.ClientOrderID]*domain.Order)
	m.orderSeq = nil
	m.restingID = make(map[domain.ClientOrderID]uint64)
	m.entryOwner = make(map[uint64]domain.ClientOrderID)
	m.stopIDs = nil
	m.held = make(map[domain.ClientOrderID][]*domain.Order)
	m.busy = make(map[domain.ClientOrderID]bool)
}

// Book returns the engine's order book.
func (m *MatchingEngine) Book() *book.Book { return m.book }

// Instrument returns the instrument definition.
func (m *MatchingEngine) Instrument() *domain.Instrument { return m.instrument }

// Order returns a tracked order by client order ID.
func (m *MatchingEngine) Order(id domain.ClientOrderID) (*domain.Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// Orders returns every order the engine has seen, in submission order.
func (m *MatchingEngine) Orders() []*domain.Order {
	out := make([]*domain.Order, 0, len(m.orderSeq))
	for _, id := range m.orderSeq {
		out = append(out, m.orders[id])
	}
	return out
}

// OpenOrders returns the orders currently working at the venue.
func (m *MatchingEngine) OpenOrders() []*domain.Order {
	var out []*domain.Order
	for _, id := range m.orderSeq {
		if o := m.orders[id]; o.IsOpen() {
			out = append(out, o)
		}
	}
	return out
}

// Reset drops all orders and book contents.
func (m *MatchingEngine) Reset() {
	m.book.Clear()
	m.resetState()
	m.nowNs = 0
}

// ---------------------------------------------------------------------------
// Command processing
// ---------------------------------------------------------------------------

// ProcessOrder handles a committed order submission.
func (m *MatchingEngine) ProcessOrder(o *domain.Order, nowNs int64) {
	m.nowNs = nowNs
	if _, dup := m.orders[o.ClientOrderID]; dup {
		m.log.Error("duplicate client order id", "client_order_id", o.ClientOrderID)
		return
	}
	m.track(o)
	m.apply(o, domain.OrderSubmitted{OrderEventBase: m.base(o)})

	if reason, ok := m.validateOrder(o); !ok {
		m.reject(o, reason)
		return
	}
	if m.cfg.SupportContingentOrders && m.holdIfChild(o) {
		return
	}
	m.place(o)
}

// ProcessOrderList handles a committed atomic list submission. Parents are
// expected before their children, the order NewOrderList preserves.
func (m *MatchingEngine) ProcessOrderList(list *domain.OrderList, nowNs int64) {
	for _, o := range list.Orders {
		m.ProcessOrder(o, nowNs)
	}
}

// ProcessModify handles a committed modify request.
func (m *MatchingEngine) ProcessModify(cmd domain.ModifyOrder, nowNs int64) {
	m.nowNs = nowNs
	o, ok := m.orders[cmd.ClientOrderID]
	if !ok {
		m.deps.Emit(domain.OrderModifyRejected{
			OrderEventBase: m.cmdBase(cmd.CommandBase, cmd.ClientOrderID, cmd.VenueOrderID),
			Reason:         "order not found",
		})
		return
	}
	if o.IsClosed() {
		m.deps.Emit(domain.OrderModifyRejected{
			OrderEventBase: m.base(o),
			Reason:         fmt.Sprintf("order already closed: %s", o.Status()),
		})
		return
	}
	m.apply(o, domain.OrderPendingUpdate{OrderEventBase: m.base(o)})

	if reason, ok := m.validateModify(o, cmd); !ok {
		m.apply(o, domain.OrderModifyRejected{OrderEventBase: m.base(o), Reason: reason})
		return
	}

	priceChanged := cmd.Price != nil && cmd.Price.Raw != o.Price.Raw
	m.apply(o, domain.OrderUpdated{
		OrderEventBase: m.base(o),
		Quantity:       cmd.Quantity,
		Price:          cmd.Price,
		TriggerPrice:   cmd.TriggerPrice,
	})
	m.syncResting(o, priceChanged)

	if m.cfg.SupportContingentOrders && o.ContingencyType == domain.ContingencyTypeOUO {
		m.mirrorQuantity(o)
	}
	if m.isStopResting(o.ClientOrderID) {
		m.tryFireStop(o)
	}
}

// ProcessCancel handles a committed cancel request.
func (m *MatchingEngine) ProcessCancel(cmd domain.CancelOrder, nowNs int64) {
	m.nowNs = nowNs
	o, ok := m.orders[cmd.ClientOrderID]
	if !ok {
		m.deps.Emit(domain.OrderCancelRejected{
			OrderEventBase: m.cmdBase(cmd.CommandBase, cmd.ClientOrderID, cmd.VenueOrderID),
			Reason:         "order not found",
		})
		return
	}
	if o.IsClosed() {
		m.deps.Emit(domain.OrderCancelRejected{
			OrderEventBase: m.base(o),
			Reason:         fmt.Sprintf("order already closed: %s", o.Status()),
		})
		return
	}
	m.apply(o, domain.OrderPendingCancel{OrderEventBase: m.base(o)})
	m.cancelOrder(o, "")
}

// ProcessCancelAll sweeps the strategy's working orders, optionally
// narrowed to one side.
func (m *MatchingEngine) ProcessCancelAll(cmd domain.CancelAllOrders, nowNs int64) {
	m.nowNs = nowNs
	ids := make([]domain.ClientOrderID, len(m.orderSeq))
	copy(ids, m.orderSeq)
	for _, id := range ids {
		o := m.orders[id]
		if !o.IsOpen() && o.Status() != domain.OrderStatusSubmitted {
			continue
		}
		if o.StrategyID != cmd.StrategyID {
			continue
		}
		if cmd.Side != "" && o.Side != cmd.Side {
			continue
		}
		if o.IsOpen() {
			m.apply(o, domain.OrderPendingCancel{OrderEventBase: m.base(o)})
		}
		m.cancelOrder(o, "")
	}
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// OnQuoteTick refreshes top-of-book and re-evaluates working orders.
func (m *MatchingEngine) OnQuoteTick(q domain.QuoteTick) {
	m.book.UpdateQuoteTick(q)
	m.iterate(q.TsEvent)
}

// OnTradeTick records the print and re-evaluates working orders.
func (m *MatchingEngine) OnTradeTick(t domain.TradeTick) {
	m.book.UpdateTradeTick(t)
	m.iterate(t.TsEvent)
}

// OnBar replays the bar as four touches in OHLC path order: a bullish bar
// visits open, low, high, close; a bearish bar visits open, high, low,
// close. Each touch carries a quarter of the bar volume.
func (m *MatchingEngine) OnBar(b domain.Bar) {
	var touches [4]domain.Price
	if b.IsBullish() {
		touches = [4]domain.Price{b.Open, b.Low, b.High, b.Close}
	} else {
		touches = [4]domain.Price{b.Open, b.High, b.Low, b.Close}
	}
	quarterRaw := b.Volume.Raw / 4
	if quarterRaw == 0 {
		quarterRaw = m.instrument.SizeIncrement.Raw
	}
	size := domain.QtyFromRaw(quarterRaw, b.Volume.Precision)
	for _, px := range touches {
		m.book.UpdateTradeTick(domain.TradeTick{
			InstrumentID:  m.instrument.ID,
			Price:         px,
			Size:          size,
			AggressorSide: domain.AggressorSideNone,
			TsEvent:       b.TsEvent,
			TsInit:        b.TsInit,
		})
		m.iterate(b.TsEvent)
	}
}

// OnDelta applies a book mutation and re-evaluates working orders.
func (m *MatchingEngine) OnDelta(d domain.OrderBookDelta) {
	if err := m.book.ApplyDelta(d); err != nil {
		m.log.Error("bad book delta", "err", err)
		return
	}
	m.iterate(d.TsEvent)
}

// OnSnapshot replaces the market liquidity and re-evaluates working orders.
func (m *MatchingEngine) OnSnapshot(s domain.OrderBookSnapshot) {
	m.book.ApplySnapshot(s)
	m.iterate(s.TsEvent)
}

// iterate runs one evaluation pass after the book changed: expiry, trailing
// recalculation, stop triggers, then resting limit matches.
func (m *MatchingEngine) iterate(nowNs int64) {
	m.nowNs = nowNs
	m.expireOrders(nowNs)
	m.updateTrailingStops()
	m.checkStopTriggers()
	m.matchRestingOrders()
}

// ---------------------------------------------------------------------------
// Placement
// ---------------------------------------------------------------------------

func (m *MatchingEngine) place(o *domain.Order) {
	switch o.Type {
	case domain.OrderTypeMarket:
		m.placeMarketOrder(o)
	case domain.OrderTypeLimit:
		m.placeLimitOrder(o)
	case domain.OrderTypeMarketToLimit:
		m.placeMarketToLimitOrder(o)
	default:
		m.placeStopOrder(o)
	}
}

func (m *MatchingEngine) placeMarketOrder(o *domain.Order) {
	if _, ok := m.bestOpposing(o.Side); !ok {
		m.reject(o, fmt.Sprintf("no market for %s", o.InstrumentID))
		return
	}
	if o.TimeInForce == domain.TimeInForceFOK && !m.fullQtyAvailable(o.Side, o.LeavesQty(), domain.Price{}) {
		m.reject(o, "insufficient depth")
		return
	}
	m.fillAggressive(o, domain.Price{})
}

func (m *MatchingEngine) placeLimitOrder(o *domain.Order) {
	marketable := m.isMarketable(o.Side, o.Price)
	if o.PostOnly && marketable {
		m.reject(o, fmt.Sprintf("POST_ONLY %s %s order limit px %s would have been a TAKER",
			o.Side, o.Type, o.Price))
		return
	}
	if o.TimeInForce == domain.TimeInForceFOK && !m.fullQtyAvailable(o.Side, o.LeavesQty(), o.Price) {
		m.reject(o, "insufficient depth")
		return
	}
	m.accept(o)
	if marketable {
		m.fillAggressive(o, o.Price)
	}
	m.finishAggressivePass(o)
}

func (m *MatchingEngine) placeMarketToLimitOrder(o *domain.Order) {
	best, ok := m.bestOpposing(o.Side)
	if !ok {
		m.reject(o, fmt.Sprintf("no market for %s", o.InstrumentID))
		return
	}
	m.accept(o)
	// The order executes at the top level, then any remainder rests there.
	px := best
	m.apply(o, domain.OrderUpdated{OrderEventBase: m.base(o), Price: &px})
	m.fillAggressive(o, px)
	m.finishAggressivePass(o)
}

// finishAggressivePass rests or cancels whatever remains of an order that
// just swept the book, honoring IOC/FOK.
func (m *MatchingEngine) finishAggressivePass(o *domain.Order) {
	if o.IsClosed() || !o.LeavesQty().IsPositive() {
		return
	}
	switch o.TimeInForce {
	case domain.TimeInForceIOC, domain.TimeInForceFOK:
		m.cancelOrder(o, "unfilled balance canceled")
	default:
		m.rest(o)
	}
}

func (m *MatchingEngine) placeStopOrder(o *domain.Order) {
	if isTrailingType(o.Type) && o.TriggerPrice.IsZero() {
		tp, ok := m.computeTrailingTrigger(o)
		if !ok {
			m.reject(o, "no market data to initialize trailing stop")
			return
		}
		o.TriggerPrice = tp
	}
	if m.cfg.RejectStopOrders && !isTrailingType(o.Type) && m.stopConditionMet(o) {
		m.reject(o, fmt.Sprintf("%s %s order trigger px %s is already in the market",
			o.Side, o.Type, o.TriggerPrice))
		return
	}
	m.accept(o)
	if m.tryFireStop(o) {
		return
	}
	m.stopIDs = append(m.stopIDs, o.ClientOrderID)
}

// rest inserts the order's working slice into the book so depth queries and
// other participants see it. Iceberg orders display at most DisplayQty.
func (m *MatchingEngine) rest(o *domain.Order) {
	size := o.LeavesQty()
	if o.DisplayQty.IsPositive() {
		size = domain.MinQty(size, o.DisplayQty)
	}
	id := m.deps.IDs.NextBookEntryID()
	m.book.InsertClientOrder(o.Side, o.Price, size, id)
	m.restingID[o.ClientOrderID] = id
	m.entryOwner[id] = o.ClientOrderID
}

func (m *MatchingEngine) removeResting(o *domain.Order) {
	if id, ok := m.restingID[o.ClientOrderID]; ok {
		m.book.RemoveClientOrder(id)
		delete(m.restingID, o.ClientOrderID)
		delete(m.entryOwner, id)
	}
	m.removeStopID(o.ClientOrderID)
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

// fillAggressive sweeps the opposing side as a taker. A zero limit price
// means unlimited (market). Market-type orders that exhaust the book fill
// their residual at the final level touched, slipped one tick when the fill
// model says so.
func (m *MatchingEngine) fillAggressive(o *domain.Order, limitPx domain.Price) {
	ownEntry := m.restingID[o.ClientOrderID]
	fills := m.book.SimulateFills(o.Side, o.LeavesQty(), limitPx, 0, func(id uint64) bool {
		return id == ownEntry && ownEntry != 0
	})
	marketSweep := limitPx.IsZero()
	var lastPx domain.Price
	for _, f := range fills {
		if o.IsClosed() {
			return
		}
		px := f.Price
		if marketSweep && m.deps.FillModel.IsSlipped() {
			px = m.slip(px, o.Side)
		}
		lastPx = px
		if f.IsClient {
			maker := m.orders[m.entryOwner[f.MakerID]]
			makerEntry := f.MakerID
			m.book.ReduceEntry(f.MakerID, f.Qty)
			if maker != nil {
				m.fillOrder(maker, f.Price, f.Qty, domain.LiquiditySideMaker)
				m.refreshResting(maker, makerEntry)
			}
		} else {
			m.book.ReduceEntry(f.MakerID, f.Qty)
		}
		m.fillOrder(o, px, f.Qty, domain.LiquiditySideTaker)
	}
	if marketSweep && !o.IsClosed() && o.LeavesQty().IsPositive() {
		px := lastPx
		if px.IsZero() {
			if last, ok := m.book.LastPrice(); ok {
				px = last
			} else if !o.TriggerPrice.IsZero() {
				px = o.TriggerPrice
			} else {
				return
			}
		}
		if m.deps.FillModel.IsSlipped() {
			px = m.slip(px, o.Side)
		}
		m.fillOrder(o, px, o.LeavesQty(), domain.LiquiditySideTaker)
	}
}

// matchRestingOrders fills resting client limit orders crossed by market
// liquidity. Makers execute at their own limit price; when the market only
// touches the level, the fill model decides whether the fill happens.
func (m *MatchingEngine) matchRestingOrders() {
	ids := make([]domain.ClientOrderID, len(m.orderSeq))
	copy(ids, m.orderSeq)
	for _, id := range ids {
		o := m.orders[id]
		entryID, resting := m.restingID[id]
		if !resting || !o.IsOpen() {
			continue
		}
		fills := m.book.SimulateFills(o.Side, o.LeavesQty(), o.Price, 0, func(eid uint64) bool {
			e, ok := m.book.EntryByID(eid)
			return !ok || e.IsClient
		})
		if len(fills) == 0 {
			continue
		}
		through := fills[0].Price.Raw != o.Price.Raw
		if !through && !m.deps.FillModel.IsLimitFilled() {
			continue
		}
		entry, _ := m.book.EntryByID(entryID)
		var total domain.Quantity
		for _, f := range fills {
			portion := f.Qty
			if total.Add(portion).Greater(entry.Size) {
				portion = entry.Size.Sub(total)
			}
			if portion.IsZero() {
				break
			}
			m.book.ReduceEntry(f.MakerID, portion)
			total = total.Add(portion)
		}
		if total.IsZero() {
			continue
		}
		m.book.ReduceEntry(entryID, total)
		m.fillOrder(o, o.Price, total, domain.LiquiditySideMaker)
		m.refreshResting(o, entryID)
	}
}

// refreshResting reconciles an order's book entry after maker fills:
// closed orders leave the book, and icebergs whose displayed slice was
// consumed re-display at the back of the queue.
func (m *MatchingEngine) refreshResting(o *domain.Order, entryID uint64) {
	if o.IsClosed() {
		m.removeResting(o)
		return
	}
	if _, exists := m.book.EntryByID(entryID); exists {
		return
	}
	delete(m.restingID, o.ClientOrderID)
	delete(m.entryOwner, entryID)
	if o.LeavesQty().IsPositive() {
		m.rest(o)
	}
}

// fillOrder produces one fill event against the order.
func (m *MatchingEngine) fillOrder(o *domain.Order, px domain.Price, qty domain.Quantity, liquidity domain.LiquiditySide) {
	base := m.base(o)
	if base.VenueOrderID == "" {
		base.VenueOrderID = m.deps.IDs.NextVenueOrderID(m.instrument.ID)
	}
	ev := domain.OrderFilled{
		OrderEventBase: base,
		TradeID:        m.deps.IDs.NextTradeID(),
		PositionID:     m.deps.PositionFor(o),
		Side:           o.Side,
		LastQty:        qty,
		LastPx:         px,
		Commission:     m.deps.Commission.Commission(m.instrument, qty, px, liquidity),
		LiquiditySide:  liquidity,
	}
	if !m.apply(o, ev) {
		return
	}
	m.afterFill(o)
}

// afterFill runs contingency fan-out once a fill has been applied.
func (m *MatchingEngine) afterFill(o *domain.Order) {
	if !m.cfg.SupportContingentOrders {
		return
	}
	if children, ok := m.held[o.ClientOrderID]; ok && o.FilledQty.IsPositive() {
		delete(m.held, o.ClientOrderID)
		for _, child := range children {
			if !child.IsClosed() {
				m.place(child)
			}
		}
	}
	switch o.ContingencyType {
	case domain.ContingencyTypeOCO, domain.ContingencyTypeOUO:
		if o.Status() == domain.OrderStatusFilled {
			m.cancelPeers(o, "contingent order filled")
		} else {
			m.mirrorQuantity(o)
		}
	}
}

// mirrorQuantity resizes each open linked peer so its remaining quantity
// matches the source order's leaves.
func (m *MatchingEngine) mirrorQuantity(o *domain.Order) {
	if m.busy[o.ClientOrderID] {
		return
	}
	m.busy[o.ClientOrderID] = true
	defer delete(m.busy, o.ClientOrderID)

	leaves := o.LeavesQty()
	for _, peerID := range o.LinkedOrderIDs {
		peer, ok := m.orders[peerID]
		if !ok || !peer.IsOpen() || m.busy[peerID] {
			continue
		}
		target := peer.FilledQty.Add(leaves)
		if target.Raw == peer.Quantity.Raw {
			continue
		}
		qty := target
		m.apply(peer, domain.OrderUpdated{OrderEventBase: m.base(peer), Quantity: &qty})
		m.syncResting(peer, false)
	}
}

// cancelPeers cancels every open linked order.
func (m *MatchingEngine) cancelPeers(o *domain.Order, reason string) {
	if m.busy[o.ClientOrderID] {
		return
	}
	m.busy[o.ClientOrderID] = true
	defer delete(m.busy, o.ClientOrderID)

	for _, peerID := range o.LinkedOrderIDs {
		peer, ok := m.orders[peerID]
		if !ok || peer.IsClosed() || m.busy[peerID] {
			continue
		}
		m.cancelOrder(peer, reason)
	}
}

// ---------------------------------------------------------------------------
// Stops and expiry
// ---------------------------------------------------------------------------

// stopConditionMet reports whether the order's trigger condition holds
// against its reference price.
func (m *MatchingEngine) stopConditionMet(o *domain.Order) bool {
	ref, ok := m.triggerRef(o)
	if !ok {
		return false
	}
	if o.Side == domain.OrderSideBuy {
		return !ref.Less(o.TriggerPrice)
	}
	return !ref.Greater(o.TriggerPrice)
}

// triggerRef resolves the reference price for a stop per its trigger type.
func (m *MatchingEngine) triggerRef(o *domain.Order) (domain.Price, bool) {
	switch o.TriggerType {
	case domain.TriggerTypeBidAsk:
		return m.bestOpposing(o.Side)
	case domain.TriggerTypeMidPoint:
		return m.book.Midpoint()
	default:
		if last, ok := m.book.LastPrice(); ok {
			return last, true
		}
		return m.bestOpposing(o.Side)
	}
}

// tryFireStop fires the stop when its condition is met, returning whether
// it fired. A reference that only touches the trigger defers to the fill
// model; a failed draw leaves the stop working.
func (m *MatchingEngine) tryFireStop(o *domain.Order) bool {
	ref, ok := m.triggerRef(o)
	if !ok || !m.stopConditionMet(o) {
		return false
	}
	through := ref.Raw != o.TriggerPrice.Raw
	if !through && !m.deps.FillModel.IsStopFilled() {
		return false
	}
	m.removeStopID(o.ClientOrderID)

	switch o.Type {
	case domain.OrderTypeStopMarket, domain.OrderTypeTrailingStopMarket:
		m.fillAggressive(o, domain.Price{})
	default: // STOP_LIMIT, TRAILING_STOP_LIMIT
		m.apply(o, domain.OrderTriggered{OrderEventBase: m.base(o)})
		if m.isMarketable(o.Side, o.Price) {
			if o.PostOnly {
				m.cancelOrder(o, fmt.Sprintf("POST_ONLY %s order limit px %s would have been a TAKER",
					o.Type, o.Price))
				return true
			}
			m.fillAggressive(o, o.Price)
		}
		m.finishAggressivePass(o)
	}
	return true
}

// checkStopTriggers evaluates every working stop against the current book.
func (m *MatchingEngine) checkStopTriggers() {
	ids := make([]domain.ClientOrderID, len(m.stopIDs))
	copy(ids, m.stopIDs)
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || !o.IsOpen() {
			m.removeStopID(id)
			continue
		}
		m.tryFireStop(o)
	}
}

// updateTrailingStops ratchets trailing triggers in the favorable
// direction: a BUY trail follows the market down, a SELL trail follows it
// up. The trigger never loosens.
func (m *MatchingEngine) updateTrailingStops() {
	for _, id := range m.stopIDs {
		o, ok := m.orders[id]
		if !ok || !o.IsOpen() || !isTrailingType(o.Type) {
			continue
		}
		tp, ok := m.computeTrailingTrigger(o)
		if !ok {
			continue
		}
		favorable := (o.Side == domain.OrderSideBuy && tp.Less(o.TriggerPrice)) ||
			(o.Side == domain.OrderSideSell && tp.Greater(o.TriggerPrice))
		if !favorable {
			continue
		}
		trigger := tp
		m.apply(o, domain.OrderUpdated{OrderEventBase: m.base(o), TriggerPrice: &trigger})
	}
}

// computeTrailingTrigger derives the trigger price from the current
// reference plus the order's offset: above the market for BUY trails,
// below for SELL.
func (m *MatchingEngine) computeTrailingTrigger(o *domain.Order) (domain.Price, bool) {
	ref, ok := m.triggerRef(o)
	if !ok {
		return domain.Price{}, false
	}
	offset := m.trailingOffsetRaw(o, ref)
	if o.Side == domain.OrderSideBuy {
		return ref.AddRaw(offset), true
	}
	return ref.AddRaw(-offset), true
}

// trailingOffsetRaw converts the order's offset into raw price units.
// PRICE_TIER venues define their own ladder; it degrades to PRICE here.
func (m *MatchingEngine) trailingOffsetRaw(o *domain.Order, ref domain.Price) int64 {
	switch o.TrailingOffsetType {
	case domain.TrailingOffsetTypeBasisPoints:
		return int64(float64(ref.Raw) * o.TrailingOffset.Float64() / 10000.0)
	case domain.TrailingOffsetTypeTicks:
		return int64(o.TrailingOffset.Float64()+0.5) * m.instrument.PriceIncrement.Raw
	default:
		return o.TrailingOffset.Raw
	}
}

// expireOrders expires working GTD orders whose expiry has passed.
func (m *MatchingEngine) expireOrders(nowNs int64) {
	ids := make([]domain.ClientOrderID, len(m.orderSeq))
	copy(ids, m.orderSeq)
	for _, id := range ids {
		o := m.orders[id]
		if !o.IsOpen() || o.TimeInForce != domain.TimeInForceGTD {
			continue
		}
		if o.ExpireTimeNs > nowNs {
			continue
		}
		m.removeResting(o)
		m.apply(o, domain.OrderExpired{OrderEventBase: m.base(o)})
		m.onClosed(o, "contingent order expired")
	}
}

// ---------------------------------------------------------------------------
// Lifecycle helpers
// ---------------------------------------------------------------------------

func (m *MatchingEngine) track(o *domain.Order) {
	m.orders[o.ClientOrderID] = o
	m.orderSeq = append(m.orderSeq, o.ClientOrderID)
}

// holdIfChild parks an OTO child until its parent's first fill. A child of
// an already-filled parent proceeds immediately; a child of a dead parent
// is canceled.
func (m *MatchingEngine) holdIfChild(o *domain.Order) bool {
	if o.ParentOrderID == "" {
		return false
	}
	parent, ok := m.orders[o.ParentOrderID]
	if !ok {
		return false
	}
	if parent.FilledQty.IsPositive() {
		return false
	}
	if parent.IsClosed() {
		m.cancelOrder(o, fmt.Sprintf("parent order %s closed without fills", parent.ClientOrderID))
		return true
	}
	m.held[parent.ClientOrderID] = append(m.held[parent.ClientOrderID], o)
	return true
}

func (m *MatchingEngine) accept(o *domain.Order) {
	base := m.base(o)
	base.VenueOrderID = m.deps.IDs.NextVenueOrderID(m.instrument.ID)
	m.apply(o, domain.OrderAccepted{OrderEventBase: base})
}

func (m *MatchingEngine) reject(o *domain.Order, reason string) {
	m.apply(o, domain.OrderRejected{OrderEventBase: m.base(o), Reason: reason})
	m.log.Debug("order rejected", "client_order_id", o.ClientOrderID, "reason", reason)
	m.onClosed(o, "contingent order rejected")
}

// cancelOrder cancels from any working state, then fans out to held
// children and contingent peers.
func (m *MatchingEngine) cancelOrder(o *domain.Order, reason string) {
	m.removeResting(o)
	m.apply(o, domain.OrderCanceled{OrderEventBase: m.base(o), Reason: reason})
	m.onClosed(o, "contingent order canceled")
}

// onClosed cleans up after a terminal transition that is not a full fill:
// held children die with the parent, and OCO/OUO peers of a leg that
// closed unfilled are canceled.
func (m *MatchingEngine) onClosed(o *domain.Order, peerReason string) {
	if !m.cfg.SupportContingentOrders {
		return
	}
	if children, ok := m.held[o.ClientOrderID]; ok {
		delete(m.held, o.ClientOrderID)
		for _, child := range children {
			if !child.IsClosed() {
				m.cancelOrder(child, fmt.Sprintf("parent order %s closed without fills", o.ClientOrderID))
			}
		}
	}
	switch o.ContingencyType {
	case domain.ContingencyTypeOCO, domain.ContingencyTypeOUO:
		switch o.Status() {
		case domain.OrderStatusCanceled, domain.OrderStatusExpired, domain.OrderStatusRejected:
			m.cancelPeers(o, peerReason)
		}
	}
}

// syncResting reconciles the book entry after an order update. Price
// changes re-enter the matching path and lose queue priority; pure size
// decreases keep it.
func (m *MatchingEngine) syncResting(o *domain.Order, priceChanged bool) {
	entryID, resting := m.restingID[o.ClientOrderID]
	if !resting {
		return
	}
	if priceChanged {
		m.book.RemoveClientOrder(entryID)
		delete(m.restingID, o.ClientOrderID)
		delete(m.entryOwner, entryID)
		if m.isMarketable(o.Side, o.Price) {
			if o.PostOnly {
				m.cancelOrder(o, fmt.Sprintf("POST_ONLY %s order limit px %s would have been a TAKER",
					o.Type, o.Price))
				return
			}
			m.fillAggressive(o, o.Price)
		}
		m.finishAggressivePass(o)
		return
	}
	size := o.LeavesQty()
	if o.DisplayQty.IsPositive() {
		size = domain.MinQty(size, o.DisplayQty)
	}
	entry, ok := m.book.EntryByID(entryID)
	if !ok {
		if size.IsPositive() {
			m.rest(o)
		}
		return
	}
	if size.Greater(entry.Size) {
		// Size increases requeue at the back.
		m.book.RemoveClientOrder(entryID)
		delete(m.restingID, o.ClientOrderID)
		delete(m.entryOwner, entryID)
		m.rest(o)
		return
	}
	m.book.UpdateClientOrder(entryID, size)
}

// apply validates the event against the order FSM, records it, and emits
// it. An invalid transition is an engine bug; it is logged and dropped.
func (m *MatchingEngine) apply(o *domain.Order, ev domain.OrderEvent) bool {
	if err := o.Apply(ev); err != nil {
		m.log.Error("invalid order event",
			"client_order_id", o.ClientOrderID,
			"event", ev.EventType(),
			"status", o.Status(),
			"err", err)
		return false
	}
	m.deps.Emit(ev)
	return true
}

func (m *MatchingEngine) base(o *domain.Order) domain.OrderEventBase {
	return domain.OrderEventBase{
		TraderID:      o.TraderID,
		StrategyID:    o.StrategyID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
		AccountID:     m.deps.AccountID,
		EventID:       m.deps.IDs.NextEventID(),
		TsEvent:       m.nowNs,
		TsInit:        m.nowNs,
	}
}

// cmdBase builds an event base for rejections of commands naming unknown
// orders.
func (m *MatchingEngine) cmdBase(cb domain.CommandBase, clientOrderID domain.ClientOrderID, venueOrderID domain.VenueOrderID) domain.OrderEventBase {
	return domain.OrderEventBase{
		TraderID:      cb.TraderID,
		StrategyID:    cb.StrategyID,
		InstrumentID:  cb.InstrumentID,
		ClientOrderID: clientOrderID,
		VenueOrderID:  venueOrderID,
		AccountID:     m.deps.AccountID,
		EventID:       m.deps.IDs.NextEventID(),
		TsEvent:       m.nowNs,
		TsInit:        m.nowNs,
	}
}

// ---------------------------------------------------------------------------
// Validation and market queries
// ---------------------------------------------------------------------------

func (m *MatchingEngine) validateOrder(o *domain.Order) (string, bool) {
	if o.Quantity.Precision != m.instrument.SizePrecision {
		return fmt.Sprintf("quantity precision %d does not match instrument size precision %d",
			o.Quantity.Precision, m.instrument.SizePrecision), false
	}
	if !o.Price.IsZero() && o.Price.Precision != m.instrument.PricePrecision {
		return fmt.Sprintf("price precision %d does not match instrument price precision %d",
			o.Price.Precision, m.instrument.PricePrecision), false
	}
	if !o.TriggerPrice.IsZero() && o.TriggerPrice.Precision != m.instrument.PricePrecision {
		return fmt.Sprintf("trigger price precision %d does not match instrument price precision %d",
			o.TriggerPrice.Precision, m.instrument.PricePrecision), false
	}
	if o.ReduceOnly {
		net := m.deps.NetPosition(o.StrategyID)
		switch {
		case net == 0:
			return "reduce-only order would open a position", false
		case net > 0 && o.Side == domain.OrderSideBuy,
			net < 0 && o.Side == domain.OrderSideSell:
			return "reduce-only order would increase position", false
		case int64(o.Quantity.Raw) > abs64(net):
			return "reduce-only quantity exceeds open position", false
		}
	}
	return "", true
}

func (m *MatchingEngine) validateModify(o *domain.Order, cmd domain.ModifyOrder) (string, bool) {
	if cmd.Quantity == nil && cmd.Price == nil && cmd.TriggerPrice == nil {
		return "modify carries no changes", false
	}
	if cmd.Quantity != nil {
		if !cmd.Quantity.IsPositive() {
			return "new quantity must be positive", false
		}
		if cmd.Quantity.Raw < o.FilledQty.Raw {
			return fmt.Sprintf("new quantity %s is less than filled quantity %s",
				cmd.Quantity, o.FilledQty), false
		}
		if cmd.Quantity.Precision != m.instrument.SizePrecision {
			return "new quantity precision does not match instrument", false
		}
	}
	if cmd.Price != nil {
		if o.Price.IsZero() && o.Type != domain.OrderTypeMarketToLimit {
			return fmt.Sprintf("%s order has no limit price to modify", o.Type), false
		}
		if !cmd.Price.IsPositive() || cmd.Price.Precision != m.instrument.PricePrecision {
			return "new price invalid for instrument", false
		}
	}
	if cmd.TriggerPrice != nil {
		if !o.HasTriggerPrice() {
			return fmt.Sprintf("%s order has no trigger price to modify", o.Type), false
		}
		if o.IsTriggeredFlag {
			return "order already triggered", false
		}
		if !cmd.TriggerPrice.IsPositive() || cmd.TriggerPrice.Precision != m.instrument.PricePrecision {
			return "new trigger price invalid for instrument", false
		}
	}
	return "", true
}

func (m *MatchingEngine) bestOpposing(side domain.OrderSide) (domain.Price, bool) {
	if side == domain.OrderSideBuy {
		return m.book.BestAsk()
	}
	return m.book.BestBid()
}

// isMarketable reports whether an order of the side and limit would cross.
func (m *MatchingEngine) isMarketable(side domain.OrderSide, limitPx domain.Price) bool {
	best, ok := m.bestOpposing(side)
	if !ok {
		return false
	}
	if side == domain.OrderSideBuy {
		return !best.Greater(limitPx)
	}
	return !best.Less(limitPx)
}

// fullQtyAvailable reports whether the book can fill qty in full within the
// limit. Used for FOK.
func (m *MatchingEngine) fullQtyAvailable(side domain.OrderSide, qty domain.Quantity, limitPx domain.Price) bool {
	fills := m.book.SimulateFills(side, qty, limitPx, 0, nil)
	var total uint64
	for _, f := range fills {
		total += f.Qty.Raw
	}
	return total >= qty.Raw
}

// slip worsens the price by one tick against the taker.
func (m *MatchingEngine) slip(px domain.Price, side domain.OrderSide) domain.Price {
	if side == domain.OrderSideBuy {
		return px.AddRaw(m.instrument.PriceIncrement.Raw)
	}
	return px.AddRaw(-m.instrument.PriceIncrement.Raw)
}

func (m *MatchingEngine) isStopResting(id domain.ClientOrderID) bool {
	for _, sid := range m.stopIDs {
		if sid == id {
			return true
		}
	}
	return false
}

func (m *MatchingEngine) removeStopID(id domain.ClientOrderID) {
	for i, sid := range m.stopIDs {
		if sid == id {
			m.stopIDs = append(m.stopIDs[:i], m.stopIDs[i+1:]...)
			return
		}
	}
}

func isTrailingType(t domain.OrderType) bool {
	return t == domain.OrderTypeTrailingStopMarket || t == domain.OrderTypeTrailingStopLimit
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
