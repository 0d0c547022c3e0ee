package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// initEventID derives the ORDER_INITIALIZED event ID from the order's own
// identity, never from process randomness: client order IDs are unique per
// trader, so identical inputs yield identical event streams.
func initEventID(trader TraderID, strategy StrategyID, clientOrderID ClientOrderID, tsInit int64) string {
	name := fmt.Sprintf("%s-%s-%s-%d-init", trader, strategy, clientOrderID, tsInit)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Order is a mutable trading order owned by exactly one matching engine
// from submission until a terminal status. The Type tag determines which of
// the optional parameters are meaningful; NewOrder enforces presence.
//
// Events are stored in a per-order slice (no back-references); positions
// hold trade IDs rather than order pointers.
type Order struct {
	TraderID       TraderID
	StrategyID     StrategyID
	InstrumentID   InstrumentID
	ClientOrderID  ClientOrderID
	VenueOrderID   VenueOrderID
	AccountID      AccountID
	PositionID     PositionID
	OrderListID    OrderListID
	ParentOrderID  ClientOrderID
	LinkedOrderIDs []ClientOrderID

	Side        OrderSide
	Type        OrderType
	Quantity    Quantity
	FilledQty   Quantity
	TimeInForce TimeInForce

	Price              Price // limit price; zero when the type carries none
	TriggerPrice       Price // stop trigger; zero when the type carries none
	TriggerType        TriggerType
	TrailingOffset     Price // decimal offset, interpreted per TrailingOffsetType
	TrailingOffsetType TrailingOffsetType
	ExpireTimeNs       int64
	PostOnly           bool
	ReduceOnly         bool
	DisplayQty         Quantity // iceberg display size; zero means fully displayed

	ContingencyType ContingencyType

	status         OrderStatus
	previousStatus OrderStatus
	events         []OrderEvent
	tradeIDs       []TradeID

	IsTriggeredFlag bool // set once a stop/trailing trigger has fired
	AvgPx           float64
	Slippage        float64
	LiquiditySide   LiquiditySide
	TsInit          int64
	TsLast          int64
}

// hasLimitPrice reports whether the order type carries a limit price.
func hasLimitPrice(t OrderType) bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLimit, OrderTypeTrailingStopLimit:
		return true
	}
	return false
}

// hasTriggerPrice reports whether the order type carries a trigger price.
func hasTriggerPrice(t OrderType) bool {
	switch t {
	case OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeTrailingStopMarket, OrderTypeTrailingStopLimit:
		return true
	}
	return false
}

// isTrailing reports whether the order type trails the market.
func isTrailing(t OrderType) bool {
	return t == OrderTypeTrailingStopMarket || t == OrderTypeTrailingStopLimit
}

// NewOrderParams carries every construction parameter for NewOrder.
type NewOrderParams struct {
	TraderID      TraderID
	StrategyID    StrategyID
	InstrumentID  InstrumentID
	ClientOrderID ClientOrderID

	Side        OrderSide
	Type        OrderType
	Quantity    Quantity
	TimeInForce TimeInForce

	Price              Price
	TriggerPrice       Price
	TriggerType        TriggerType
	TrailingOffset     Price
	TrailingOffsetType TrailingOffsetType
	ExpireTimeNs       int64
	PostOnly           bool
	ReduceOnly         bool
	DisplayQty         Quantity

	ContingencyType ContingencyType
	OrderListID     OrderListID
	ParentOrderID   ClientOrderID
	LinkedOrderIDs  []ClientOrderID

	TsInit int64
}

// NewOrder validates the parameters against the order type's contract and
// returns an order in status INITIALIZED with its OrderInitialized event
// already recorded.
func NewOrder(p NewOrderParams) (*Order, error) {
	if p.ClientOrderID == "" {
		return nil, Validationf("client_order_id is required")
	}
	if p.Side != OrderSideBuy && p.Side != OrderSideSell {
		return nil, Validationf("invalid order side %q", p.Side)
	}
	if !p.Quantity.IsPositive() {
		return nil, Validationf("order quantity must be positive: %s", p.Quantity)
	}
	if hasLimitPrice(p.Type) && !p.Price.IsPositive() {
		return nil, Validationf("%s order requires a limit price", p.Type)
	}
	if !hasLimitPrice(p.Type) && p.Type != OrderTypeMarketToLimit && !p.Price.IsZero() {
		return nil, Validationf("%s order must not carry a limit price", p.Type)
	}
	if hasTriggerPrice(p.Type) && !isTrailing(p.Type) && !p.TriggerPrice.IsPositive() {
		return nil, Validationf("%s order requires a trigger price", p.Type)
	}
	if !hasTriggerPrice(p.Type) && !p.TriggerPrice.IsZero() {
		return nil, Validationf("%s order must not carry a trigger price", p.Type)
	}
	if isTrailing(p.Type) {
		if p.TrailingOffsetType == "" || p.TrailingOffsetType == TrailingOffsetTypeNone {
			return nil, Validationf("%s order requires a trailing offset type", p.Type)
		}
		if !p.TrailingOffset.IsPositive() {
			return nil, Validationf("%s order requires a positive trailing offset", p.Type)
		}
	}
	if p.TimeInForce == TimeInForceGTD && p.ExpireTimeNs <= 0 {
		return nil, Validationf("GTD order requires expire_time_ns")
	}
	if p.TimeInForce != TimeInForceGTD && p.ExpireTimeNs != 0 {
		return nil, Validationf("expire_time_ns only valid with GTD")
	}
	if p.PostOnly && !hasLimitPrice(p.Type) {
		return nil, Validationf("post_only requires a limit order type")
	}
	if !p.DisplayQty.IsZero() && p.DisplayQty.Greater(p.Quantity) {
		return nil, Validationf("display_qty %s exceeds quantity %s", p.DisplayQty, p.Quantity)
	}
	if p.Type == OrderTypeMarket && p.TimeInForce == TimeInForceGTD {
		return nil, Validationf("MARKET order cannot be GTD")
	}
	triggerType := p.TriggerType
	if hasTriggerPrice(p.Type) && (triggerType == "" || triggerType == TriggerTypeNoTrigger) {
		triggerType = TriggerTypeDefault
	}

	o := &Order{
		TraderID:           p.TraderID,
		StrategyID:         p.StrategyID,
		InstrumentID:       p.InstrumentID,
		ClientOrderID:      p.ClientOrderID,
		OrderListID:        p.OrderListID,
		ParentOrderID:      p.ParentOrderID,
		LinkedOrderIDs:     p.LinkedOrderIDs,
		Side:               p.Side,
		Type:               p.Type,
		Quantity:           p.Quantity,
		FilledQty:          QtyFromRaw(0, p.Quantity.Precision),
		TimeInForce:        p.TimeInForce,
		Price:              p.Price,
		TriggerPrice:       p.TriggerPrice,
		TriggerType:        triggerType,
		TrailingOffset:     p.TrailingOffset,
		TrailingOffsetType: p.TrailingOffsetType,
		ExpireTimeNs:       p.ExpireTimeNs,
		PostOnly:           p.PostOnly,
		ReduceOnly:         p.ReduceOnly,
		DisplayQty:         p.DisplayQty,
		ContingencyType:    p.ContingencyType,
		status:             OrderStatusInitialized,
		previousStatus:     OrderStatusInitialized,
		LiquiditySide:      LiquiditySideNone,
		TsInit:             p.TsInit,
		TsLast:             p.TsInit,
	}

	init := OrderInitialized{
		OrderEventBase: OrderEventBase{
			TraderID:      o.TraderID,
			StrategyID:    o.StrategyID,
			InstrumentID:  o.InstrumentID,
			ClientOrderID: o.ClientOrderID,
			EventID:       initEventID(o.TraderID, o.StrategyID, o.ClientOrderID, p.TsInit),
			TsEvent:       p.TsInit,
			TsInit:        p.TsInit,
		},
		Side:            o.Side,
		OrderType:       o.Type,
		Quantity:        o.Quantity,
		TimeInForce:     o.TimeInForce,
		TriggerType:     o.TriggerType,
		ExpireTimeNs:    o.ExpireTimeNs,
		PostOnly:        o.PostOnly,
		ReduceOnly:      o.ReduceOnly,
		ContingencyType: o.ContingencyType,
		OrderListID:     o.OrderListID,
		ParentOrderID:   o.ParentOrderID,
		LinkedOrderIDs:  o.LinkedOrderIDs,
	}
	if !o.Price.IsZero() {
		px := o.Price
		init.Price = &px
	}
	if !o.TriggerPrice.IsZero() {
		tp := o.TriggerPrice
		init.TriggerPrice = &tp
	}
	if isTrailing(o.Type) {
		init.TrailingOffset = o.TrailingOffset.String()
		init.TrailingOffsetType = o.TrailingOffsetType
	}
	if !o.DisplayQty.IsZero() {
		dq := o.DisplayQty
		init.DisplayQty = &dq
	}
	o.events = append(o.events, init)
	return o, nil
}

// Status returns the current FSM status.
func (o *Order) Status() OrderStatus { return o.status }

// PreviousStatus returns the status before the last transition.
func (o *Order) PreviousStatus() OrderStatus { return o.previousStatus }

// Events returns the recorded event trail.
func (o *Order) Events() []OrderEvent { return o.events }

// TradeIDs returns the IDs of all fills against the order.
func (o *Order) TradeIDs() []TradeID { return o.tradeIDs }

// LeavesQty returns quantity − filled quantity.
func (o *Order) LeavesQty() Quantity { return o.Quantity.Sub(o.FilledQty) }

// IsClosed reports whether the order is in a terminal status.
func (o *Order) IsClosed() bool { return o.status.IsTerminal() }

// IsOpen reports whether the order is working at the venue.
func (o *Order) IsOpen() bool {
	switch o.status {
	case OrderStatusAccepted, OrderStatusTriggered, OrderStatusPendingUpdate,
		OrderStatusPendingCancel, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// IsAggressive reports whether the order takes liquidity on arrival.
func (o *Order) IsAggressive() bool {
	return o.Type == OrderTypeMarket || o.Type == OrderTypeMarketToLimit
}

// IsPassive reports whether the order rests pending a price or trigger.
func (o *Order) IsPassive() bool { return !o.IsAggressive() }

// HasTriggerPrice reports whether the order's type carries a trigger.
func (o *Order) HasTriggerPrice() bool { return hasTriggerPrice(o.Type) }

// IsContingent reports whether the order participates in a contingency.
func (o *Order) IsContingent() bool {
	return o.ContingencyType != "" && o.ContingencyType != ContingencyTypeNone
}

// Apply validates ev against the FSM and mutates the order. On an illegal
// transition it returns an InvalidStateTrigger and changes nothing.
func (o *Order) Apply(ev OrderEvent) error {
	switch e := ev.(type) {
	case OrderInitialized:
		// Recorded at construction; applying another is a bug.
		return &InvalidStateTrigger{Status: o.status, Trigger: OrderStatusInitialized}

	case OrderUpdated:
		if err := o.applyUpdated(e); err != nil {
			return err
		}

	case OrderModifyRejected:
		if o.status != OrderStatusPendingUpdate {
			return &InvalidStateTrigger{Status: o.status, Trigger: o.previousStatus}
		}
		o.transition(o.previousStatus)

	case OrderCancelRejected:
		if o.status != OrderStatusPendingCancel {
			return &InvalidStateTrigger{Status: o.status, Trigger: o.previousStatus}
		}
		o.transition(o.previousStatus)

	case OrderFilled:
		if err := o.applyFilled(e); err != nil {
			return err
		}

	default:
		target, ok := triggerStatus(ev)
		if !ok {
			return Validationf("unhandled order event %T", ev)
		}
		if err := validateTransition(o.status, target); err != nil {
			return err
		}
		o.transition(target)
		switch acc := ev.(type) {
		case OrderAccepted:
			o.VenueOrderID = acc.VenueOrderID
			if acc.AccountID != "" {
				o.AccountID = acc.AccountID
			}
		case OrderTriggered:
			o.IsTriggeredFlag = true
		}
	}

	o.events = append(o.events, ev)
	o.TsLast = ev.EventTsEvent()
	return nil
}

// applyUpdated mutates quantity/price/trigger. From PENDING_UPDATE the
// order reverts to its previous working status; direct venue-initiated
// updates keep the current status.
func (o *Order) applyUpdated(e OrderUpdated) error {
	switch o.status {
	case OrderStatusAccepted, OrderStatusTriggered, OrderStatusPartiallyFilled:
		// status unchanged
	case OrderStatusPendingUpdate:
		o.transition(o.previousStatus)
	default:
		return &InvalidStateTrigger{Status: o.status, Trigger: o.status}
	}
	if e.Quantity != nil {
		o.Quantity = *e.Quantity
	}
	if e.Price != nil {
		o.Price = *e.Price
	}
	if e.TriggerPrice != nil {
		o.TriggerPrice = *e.TriggerPrice
	}
	return nil
}

// applyFilled aggregates the fill into filled quantity, average price,
// slippage, and the trade trail, then transitions to PARTIALLY_FILLED or
// FILLED.
func (o *Order) applyFilled(e OrderFilled) error {
	target := OrderStatusPartiallyFilled
	if o.FilledQty.Raw+e.LastQty.Raw >= o.Quantity.Raw {
		target = OrderStatusFilled
	}
	if err := validateTransition(o.status, target); err != nil {
		return err
	}

	prevFilled := o.FilledQty.Float64()
	lastQty := e.LastQty.Float64()
	if prevFilled+lastQty > 0 {
		o.AvgPx = (o.AvgPx*prevFilled + e.LastPx.Float64()*lastQty) / (prevFilled + lastQty)
	}
	o.FilledQty = o.FilledQty.Add(e.LastQty)
	o.tradeIDs = append(o.tradeIDs, e.TradeID)
	o.LiquiditySide = e.LiquiditySide
	if e.PositionID != "" {
		o.PositionID = e.PositionID
	}
	if e.VenueOrderID != "" && o.VenueOrderID == "" {
		o.VenueOrderID = e.VenueOrderID
	}
	o.updateSlippage()
	o.transition(target)
	return nil
}

// updateSlippage recomputes signed slippage versus the order's limit or
// trigger reference price. Orders with neither reference keep zero.
func (o *Order) updateSlippage() {
	var ref float64
	switch {
	case !o.Price.IsZero():
		ref = o.Price.Float64()
	case !o.TriggerPrice.IsZero():
		ref = o.TriggerPrice.Float64()
	default:
		return
	}
	if o.Side == OrderSideBuy {
		o.Slippage = o.AvgPx - ref
	} else {
		o.Slippage = ref - o.AvgPx
	}
}

func (o *Order) transition(to OrderStatus) {
	if to == o.status {
		return
	}
	o.previousStatus = o.status
	o.status = to
}

// OrderList is a set of orders submitted atomically under one list ID.
// All orders must share an instrument.
type OrderList struct {
	ID           OrderListID
	InstrumentID InstrumentID
	Orders       []*Order
	TsInit       int64
}

// NewOrderList validates that all orders share the list's instrument.
func NewOrderList(id OrderListID, orders []*Order, tsInit int64) (*OrderList, error) {
	if len(orders) == 0 {
		return nil, Validationf("order list %s is empty", id)
	}
	inst := orders[0].InstrumentID
	for _, o := range orders {
		if o.InstrumentID != inst {
			return nil, Validationf("order list %s mixes instruments %s and %s", id, inst, o.InstrumentID)
		}
		o.OrderListID = id
	}
	return &OrderList{ID: id, InstrumentID: inst, Orders: orders, TsInit: tsInit}, nil
}
