package domain

// Execution reports are outbound value records describing observable venue
// state. They serialize with decimal-string numerics and int64 nanosecond
// timestamps.

// OrderStatusReport describes the venue's view of a single order.
type OrderStatusReport struct {
	AccountID      AccountID     `json:"account_id"`
	InstrumentID   InstrumentID  `json:"instrument_id"`
	ClientOrderID  ClientOrderID `json:"client_order_id"`
	VenueOrderID   VenueOrderID  `json:"venue_order_id,omitempty"`
	OrderSide      OrderSide     `json:"order_side"`
	OrderType      OrderType     `json:"order_type"`
	TimeInForce    TimeInForce   `json:"time_in_force"`
	OrderStatus    OrderStatus   `json:"order_status"`
	Quantity       string        `json:"quantity"`
	FilledQty      string        `json:"filled_qty"`
	LeavesQty      string        `json:"leaves_qty"`
	Price          string        `json:"price,omitempty"`
	TriggerPrice   string        `json:"trigger_price,omitempty"`
	AvgPx          string        `json:"avg_px,omitempty"`
	PostOnly       bool          `json:"post_only,omitempty"`
	ReduceOnly     bool          `json:"reduce_only,omitempty"`
	ExpireTimeNs   int64         `json:"expire_time_ns,omitempty"`
	TsAccepted     int64         `json:"ts_accepted"`
	TsLast         int64         `json:"ts_last"`
	TsInit         int64         `json:"ts_init"`
}

// TradeReport describes a single fill.
type TradeReport struct {
	AccountID     AccountID     `json:"account_id"`
	InstrumentID  InstrumentID  `json:"instrument_id"`
	ClientOrderID ClientOrderID `json:"client_order_id"`
	VenueOrderID  VenueOrderID  `json:"venue_order_id"`
	TradeID       TradeID       `json:"trade_id"`
	PositionID    PositionID    `json:"position_id,omitempty"`
	OrderSide     OrderSide     `json:"order_side"`
	LastQty       string        `json:"last_qty"`
	LastPx        string        `json:"last_px"`
	Commission    string        `json:"commission"`
	LiquiditySide LiquiditySide `json:"liquidity_side"`
	TsEvent       int64         `json:"ts_event"`
	TsInit        int64         `json:"ts_init"`
}

// PositionStatusReport describes the venue's view of a position.
type PositionStatusReport struct {
	AccountID    AccountID    `json:"account_id"`
	InstrumentID InstrumentID `json:"instrument_id"`
	PositionID   PositionID   `json:"position_id"`
	PositionSide PositionSide `json:"position_side"`
	Quantity     string       `json:"quantity"`
	AvgPxOpen    string       `json:"avg_px_open,omitempty"`
	RealizedPnl  string       `json:"realized_pnl,omitempty"`
	TsLast       int64        `json:"ts_last"`
	TsInit       int64        `json:"ts_init"`
}

// ExecutionMassStatus aggregates all reports for an account at a moment in
// time.
type ExecutionMassStatus struct {
	AccountID       AccountID              `json:"account_id"`
	Venue           Venue                  `json:"venue"`
	OrderReports    []OrderStatusReport    `json:"order_reports"`
	TradeReports    []TradeReport          `json:"trade_reports"`
	PositionReports []PositionStatusReport `json:"position_reports"`
	TsInit          int64                  `json:"ts_init"`
}
