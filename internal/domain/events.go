package domain

import (
	"encoding/json"
	"fmt"
)

// OrderEvent is the union of lifecycle events applied to an order and
// published to the event stream. Every event names the order it belongs to
// and carries the (ts_event, ts_init) pair.
type OrderEvent interface {
	// EventType returns the canonical UPPERCASE event name used in the
	// serialized envelope, e.g. "ORDER_FILLED".
	EventType() string

	// OrderID returns the client order ID the event applies to.
	OrderID() ClientOrderID

	// EventStrategyID returns the strategy that owns the order.
	EventStrategyID() StrategyID

	// EventTsEvent returns when the event occurred in simulated time.
	EventTsEvent() int64
}

// OrderEventBase holds the fields shared by every order event.
type OrderEventBase struct {
	TraderID      TraderID      `json:"trader_id"`
	StrategyID    StrategyID    `json:"strategy_id"`
	InstrumentID  InstrumentID  `json:"instrument_id"`
	ClientOrderID ClientOrderID `json:"client_order_id"`
	VenueOrderID  VenueOrderID  `json:"venue_order_id,omitempty"`
	AccountID     AccountID     `json:"account_id,omitempty"`
	EventID       string        `json:"event_id"`
	TsEvent       int64         `json:"ts_event"`
	TsInit        int64         `json:"ts_init"`
}

// OrderID implements OrderEvent.
func (b OrderEventBase) OrderID() ClientOrderID { return b.ClientOrderID }

// EventStrategyID implements OrderEvent.
func (b OrderEventBase) EventStrategyID() StrategyID { return b.StrategyID }

// EventTsEvent implements OrderEvent.
func (b OrderEventBase) EventTsEvent() int64 { return b.TsEvent }

// OrderInitialized records the creation of an order, carrying the full
// order definition so the event stream alone can reconstruct it.
type OrderInitialized struct {
	OrderEventBase
	Side               OrderSide          `json:"side"`
	OrderType          OrderType          `json:"order_type"`
	Quantity           Quantity           `json:"quantity"`
	TimeInForce        TimeInForce        `json:"time_in_force"`
	Price              *Price             `json:"price,omitempty"`
	TriggerPrice       *Price             `json:"trigger_price,omitempty"`
	TriggerType        TriggerType        `json:"trigger_type,omitempty"`
	TrailingOffset     string             `json:"trailing_offset,omitempty"`
	TrailingOffsetType TrailingOffsetType `json:"trailing_offset_type,omitempty"`
	ExpireTimeNs       int64              `json:"expire_time_ns,omitempty"`
	PostOnly           bool               `json:"post_only,omitempty"`
	ReduceOnly         bool               `json:"reduce_only,omitempty"`
	DisplayQty         *Quantity          `json:"display_qty,omitempty"`
	ContingencyType    ContingencyType    `json:"contingency_type,omitempty"`
	OrderListID        OrderListID        `json:"order_list_id,omitempty"`
	ParentOrderID      ClientOrderID      `json:"parent_order_id,omitempty"`
	LinkedOrderIDs     []ClientOrderID    `json:"linked_order_ids,omitempty"`
}

// EventType implements OrderEvent.
func (OrderInitialized) EventType() string { return "ORDER_INITIALIZED" }

// OrderDenied records a pre-submission denial by the platform.
type OrderDenied struct {
	OrderEventBase
	Reason string `json:"reason"`
}

// EventType implements OrderEvent.
func (OrderDenied) EventType() string { return "ORDER_DENIED" }

// OrderSubmitted records transmission of the order to the venue.
type OrderSubmitted struct {
	OrderEventBase
}

// EventType implements OrderEvent.
func (OrderSubmitted) EventType() string { return "ORDER_SUBMITTED" }

// OrderAccepted records venue acceptance; VenueOrderID is assigned here.
type OrderAccepted struct {
	OrderEventBase
}

// EventType implements OrderEvent.
func (OrderAccepted) EventType() string { return "ORDER_ACCEPTED" }

// OrderRejected records a venue-side refusal.
type OrderRejected struct {
	OrderEventBase
	Reason string `json:"reason"`
}

// EventType implements OrderEvent.
func (OrderRejected) EventType() string { return "ORDER_REJECTED" }

// OrderPendingUpdate records that a modify request is in flight.
type OrderPendingUpdate struct {
	OrderEventBase
}

// EventType implements OrderEvent.
func (OrderPendingUpdate) EventType() string { return "ORDER_PENDING_UPDATE" }

// OrderPendingCancel records that a cancel request is in flight.
type OrderPendingCancel struct {
	OrderEventBase
}

// EventType implements OrderEvent.
func (OrderPendingCancel) EventType() string { return "ORDER_PENDING_CANCEL" }

// OrderModifyRejected records refusal of a modify request; the order
// reverts to its previous status.
type OrderModifyRejected struct {
	OrderEventBase
	Reason string `json:"reason"`
}

// EventType implements OrderEvent.
func (OrderModifyRejected) EventType() string { return "ORDER_MODIFY_REJECTED" }

// OrderCancelRejected records refusal of a cancel request; the order
// reverts to its previous status.
type OrderCancelRejected struct {
	OrderEventBase
	Reason string `json:"reason"`
}

// EventType implements OrderEvent.
func (OrderCancelRejected) EventType() string { return "ORDER_CANCEL_REJECTED" }

// OrderUpdated records an applied modification. Unchanged attributes are
// nil.
type OrderUpdated struct {
	OrderEventBase
	Quantity     *Quantity `json:"quantity,omitempty"`
	Price        *Price    `json:"price,omitempty"`
	TriggerPrice *Price    `json:"trigger_price,omitempty"`
}

// EventType implements OrderEvent.
func (OrderUpdated) EventType() string { return "ORDER_UPDATED" }

// OrderTriggered records that a stop order's trigger condition fired.
type OrderTriggered struct {
	OrderEventBase
}

// EventType implements OrderEvent.
func (OrderTriggered) EventType() string { return "ORDER_TRIGGERED" }

// OrderCanceled records removal of the order from the venue.
type OrderCanceled struct {
	OrderEventBase
	Reason string `json:"reason,omitempty"`
}

// EventType implements OrderEvent.
func (OrderCanceled) EventType() string { return "ORDER_CANCELED" }

// OrderExpired records GTD/DAY expiry.
type OrderExpired struct {
	OrderEventBase
}

// EventType implements OrderEvent.
func (OrderExpired) EventType() string { return "ORDER_EXPIRED" }

// OrderFilled records a single execution against the order.
type OrderFilled struct {
	OrderEventBase
	TradeID       TradeID       `json:"trade_id"`
	PositionID    PositionID    `json:"position_id,omitempty"`
	Side          OrderSide     `json:"side"`
	LastQty       Quantity      `json:"last_qty"`
	LastPx        Price         `json:"last_px"`
	Commission    Money         `json:"commission"`
	LiquiditySide LiquiditySide `json:"liquidity_side"`
}

// EventType implements OrderEvent.
func (OrderFilled) EventType() string { return "ORDER_FILLED" }

// triggerStatus maps an event to the FSM trigger it represents. Events that
// revert to the order's previous status (modify/cancel rejects) and events
// that do not move the FSM (initialized, updated) return ("", false).
func triggerStatus(ev OrderEvent) (OrderStatus, bool) {
	switch ev.(type) {
	case OrderDenied:
		return OrderStatusDenied, true
	case OrderSubmitted:
		return OrderStatusSubmitted, true
	case OrderAccepted:
		return OrderStatusAccepted, true
	case OrderRejected:
		return OrderStatusRejected, true
	case OrderPendingUpdate:
		return OrderStatusPendingUpdate, true
	case OrderPendingCancel:
		return OrderStatusPendingCancel, true
	case OrderTriggered:
		return OrderStatusTriggered, true
	case OrderCanceled:
		return OrderStatusCanceled, true
	case OrderExpired:
		return OrderStatusExpired, true
	case OrderFilled:
		return OrderStatusFilled, true // refined to PARTIALLY_FILLED by the order
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// eventEnvelope wraps a serialized event with its type tag.
type eventEnvelope struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

// MarshalOrderEvent serializes an event into a stable, typed JSON envelope.
func MarshalOrderEvent(ev OrderEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{Type: ev.EventType(), Event: body})
}

// UnmarshalOrderEvent reverses MarshalOrderEvent.
func UnmarshalOrderEvent(data []byte) (OrderEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var ev OrderEvent
	switch env.Type {
	case "ORDER_INITIALIZED":
		ev = &OrderInitialized{}
	case "ORDER_DENIED":
		ev = &OrderDenied{}
	case "ORDER_SUBMITTED":
		ev = &OrderSubmitted{}
	case "ORDER_ACCEPTED":
		ev = &OrderAccepted{}
	case "ORDER_REJECTED":
		ev = &OrderRejected{}
	case "ORDER_PENDING_UPDATE":
		ev = &OrderPendingUpdate{}
	case "ORDER_PENDING_CANCEL":
		ev = &OrderPendingCancel{}
	case "ORDER_MODIFY_REJECTED":
		ev = &OrderModifyRejected{}
	case "ORDER_CANCEL_REJECTED":
		ev = &OrderCancelRejected{}
	case "ORDER_UPDATED":
		ev = &OrderUpdated{}
	case "ORDER_TRIGGERED":
		ev = &OrderTriggered{}
	case "ORDER_CANCELED":
		ev = &OrderCanceled{}
	case "ORDER_EXPIRED":
		ev = &OrderExpired{}
	case "ORDER_FILLED":
		ev = &OrderFilled{}
	default:
		return nil, fmt.Errorf("unknown order event type %q", env.Type)
	}
	if err := json.Unmarshal(env.Event, ev); err != nil {
		return nil, err
	}
	return deref(ev), nil
}

// deref returns the value form of the decoded event pointer so round-trips
// compare equal structurally.
func deref(ev OrderEvent) OrderEvent {
	switch e := ev.(type) {
	case *OrderInitialized:
		return *e
	case *OrderDenied:
		return *e
	case *OrderSubmitted:
		return *e
	case *OrderAccepted:
		return *e
	case *OrderRejected:
		return *e
	case *OrderPendingUpdate:
		return *e
	case *OrderPendingCancel:
		return *e
	case *OrderModifyRejected:
		return *e
	case *OrderCancelRejected:
		return *e
	case *OrderUpdated:
		return *e
	case *OrderTriggered:
		return *e
	case *OrderCanceled:
		return *e
	case *OrderExpired:
		return *e
	case *OrderFilled:
		return *e
	}
	return ev
}
