package domain

import "encoding/json"

// orderDTO is the wire form of an Order. Prices and quantities serialize as
// decimal strings preserving precision; the event trail is not part of the
// wire form (reports describe observable state).
type orderDTO struct {
	TraderID       TraderID        `json:"trader_id"`
	StrategyID     StrategyID      `json:"strategy_id"`
	InstrumentID   InstrumentID    `json:"instrument_id"`
	ClientOrderID  ClientOrderID   `json:"client_order_id"`
	VenueOrderID   VenueOrderID    `json:"venue_order_id,omitempty"`
	AccountID      AccountID       `json:"account_id,omitempty"`
	PositionID     PositionID      `json:"position_id,omitempty"`
	OrderListID    OrderListID     `json:"order_list_id,omitempty"`
	ParentOrderID  ClientOrderID   `json:"parent_order_id,omitempty"`
	LinkedOrderIDs []ClientOrderID `json:"linked_order_ids,omitempty"`

	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Quantity    string      `json:"quantity"`
	FilledQty   string      `json:"filled_qty"`
	TimeInForce TimeInForce `json:"time_in_force"`

	Price              string             `json:"price,omitempty"`
	TriggerPrice       string             `json:"trigger_price,omitempty"`
	TriggerType        TriggerType        `json:"trigger_type,omitempty"`
	TrailingOffset     string             `json:"trailing_offset,omitempty"`
	TrailingOffsetType TrailingOffsetType `json:"trailing_offset_type,omitempty"`
	ExpireTimeNs       int64              `json:"expire_time_ns,omitempty"`
	PostOnly           bool               `json:"post_only,omitempty"`
	ReduceOnly         bool               `json:"reduce_only,omitempty"`
	DisplayQty         string             `json:"display_qty,omitempty"`

	ContingencyType ContingencyType `json:"contingency_type,omitempty"`

	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status"`
	TsInit         int64       `json:"ts_init"`
	TsLast         int64       `json:"ts_last"`
}

// MarshalJSON implements json.Marshaler.
func (o *Order) MarshalJSON() ([]byte, error) {
	dto := orderDTO{
		TraderID:        o.TraderID,
		StrategyID:      o.StrategyID,
		InstrumentID:    o.InstrumentID,
		ClientOrderID:   o.ClientOrderID,
		VenueOrderID:    o.VenueOrderID,
		AccountID:       o.AccountID,
		PositionID:      o.PositionID,
		OrderListID:     o.OrderListID,
		ParentOrderID:   o.ParentOrderID,
		LinkedOrderIDs:  o.LinkedOrderIDs,
		Side:            o.Side,
		Type:            o.Type,
		Quantity:        o.Quantity.String(),
		FilledQty:       o.FilledQty.String(),
		TimeInForce:     o.TimeInForce,
		TriggerType:     o.TriggerType,
		ExpireTimeNs:    o.ExpireTimeNs,
		PostOnly:        o.PostOnly,
		ReduceOnly:      o.ReduceOnly,
		ContingencyType: o.ContingencyType,
		Status:          o.status,
		PreviousStatus:  o.previousStatus,
		TsInit:          o.TsInit,
		TsLast:          o.TsLast,
	}
	if !o.Price.IsZero() {
		dto.Price = o.Price.String()
	}
	if !o.TriggerPrice.IsZero() {
		dto.TriggerPrice = o.TriggerPrice.String()
	}
	if isTrailing(o.Type) {
		dto.TrailingOffset = o.TrailingOffset.String()
		dto.TrailingOffsetType = o.TrailingOffsetType
	}
	if !o.DisplayQty.IsZero() {
		dto.DisplayQty = o.DisplayQty.String()
	}
	return json.Marshal(dto)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Order) UnmarshalJSON(data []byte) error {
	var dto orderDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	qty, err := QtyFromStr(dto.Quantity)
	if err != nil {
		return err
	}
	filled, err := QtyFromStr(dto.FilledQty)
	if err != nil {
		return err
	}
	*o = Order{
		TraderID:        dto.TraderID,
		StrategyID:      dto.StrategyID,
		InstrumentID:    dto.InstrumentID,
		ClientOrderID:   dto.ClientOrderID,
		VenueOrderID:    dto.VenueOrderID,
		AccountID:       dto.AccountID,
		PositionID:      dto.PositionID,
		OrderListID:     dto.OrderListID,
		ParentOrderID:   dto.ParentOrderID,
		LinkedOrderIDs:  dto.LinkedOrderIDs,
		Side:            dto.Side,
		Type:            dto.Type,
		Quantity:        qty,
		FilledQty:       filled,
		TimeInForce:     dto.TimeInForce,
		TriggerType:     dto.TriggerType,
		ExpireTimeNs:    dto.ExpireTimeNs,
		PostOnly:        dto.PostOnly,
		ReduceOnly:      dto.ReduceOnly,
		ContingencyType: dto.ContingencyType,
		status:          dto.Status,
		previousStatus:  dto.PreviousStatus,
		LiquiditySide:   LiquiditySideNone,
		TsInit:          dto.TsInit,
		TsLast:          dto.TsLast,
	}
	if dto.Price != "" {
		if o.Price, err = PriceFromStr(dto.Price); err != nil {
			return err
		}
	}
	if dto.TriggerPrice != "" {
		if o.TriggerPrice, err = PriceFromStr(dto.TriggerPrice); err != nil {
			return err
		}
	}
	if dto.TrailingOffset != "" {
		if o.TrailingOffset, err = PriceFromStr(dto.TrailingOffset); err != nil {
			return err
		}
		o.TrailingOffsetType = dto.TrailingOffsetType
	}
	if dto.DisplayQty != "" {
		if o.DisplayQty, err = QtyFromStr(dto.DisplayQty); err != nil {
			return err
		}
	}
	return nil
}
