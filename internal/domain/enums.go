// Package domain defines the value types of the simulated exchange core:
// fixed-precision numerics, identifiers, instruments, market data, orders
// and their lifecycle events, trading commands, and execution reports.
package domain

import "fmt"

// OrderSide indicates whether an order buys or sells the instrument.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType enumerates the supported order kinds. Per-kind parameters live
// on the Order struct and are valid only for the kinds that demand them.
type OrderType string

const (
	OrderTypeMarket             OrderType = "MARKET"
	OrderTypeLimit              OrderType = "LIMIT"
	OrderTypeStopMarket         OrderType = "STOP_MARKET"
	OrderTypeStopLimit          OrderType = "STOP_LIMIT"
	OrderTypeMarketToLimit      OrderType = "MARKET_TO_LIMIT"
	OrderTypeTrailingStopMarket OrderType = "TRAILING_STOP_MARKET"
	OrderTypeTrailingStopLimit  OrderType = "TRAILING_STOP_LIMIT"
)

// OrderStatus is the lifecycle state of an order. Legal transitions are
// defined by the FSM table in fsm.go.
type OrderStatus string

const (
	OrderStatusInitialized     OrderStatus = "INITIALIZED"
	OrderStatusDenied          OrderStatus = "DENIED"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusPendingUpdate   OrderStatus = "PENDING_UPDATE"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusTriggered       OrderStatus = "TRIGGERED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDenied, OrderStatusRejected, OrderStatusCanceled,
		OrderStatusExpired, OrderStatusFilled:
		return true
	}
	return false
}

// TimeInForce controls how long an order remains in force.
type TimeInForce string

const (
	TimeInForceGTC        TimeInForce = "GTC"
	TimeInForceIOC        TimeInForce = "IOC"
	TimeInForceFOK        TimeInForce = "FOK"
	TimeInForceGTD        TimeInForce = "GTD"
	TimeInForceDay        TimeInForce = "DAY"
	TimeInForceAtTheOpen  TimeInForce = "AT_THE_OPEN"
	TimeInForceAtTheClose TimeInForce = "AT_THE_CLOSE"
)

// TriggerType selects the reference price a stop order triggers against.
type TriggerType string

const (
	TriggerTypeNoTrigger TriggerType = "NO_TRIGGER"
	TriggerTypeDefault   TriggerType = "DEFAULT"
	TriggerTypeLastPrice TriggerType = "LAST_PRICE"
	TriggerTypeBidAsk    TriggerType = "BID_ASK"
	TriggerTypeDoubleLast TriggerType = "DOUBLE_LAST"
	TriggerTypeMidPoint  TriggerType = "MID_POINT"
	TriggerTypeMarkPrice TriggerType = "MARK_PRICE"
	TriggerTypeIndexPrice TriggerType = "INDEX_PRICE"
)

// TrailingOffsetType determines how a trailing stop's trigger tracks the
// market.
type TrailingOffsetType string

const (
	TrailingOffsetTypeNone        TrailingOffsetType = "NO_TRAILING_OFFSET"
	TrailingOffsetTypePrice       TrailingOffsetType = "PRICE"
	TrailingOffsetTypeBasisPoints TrailingOffsetType = "BASIS_POINTS"
	TrailingOffsetTypeTicks       TrailingOffsetType = "TICKS"
	TrailingOffsetTypePriceTier   TrailingOffsetType = "PRICE_TIER"
)

// ContingencyType links orders submitted as a list.
type ContingencyType string

const (
	ContingencyTypeNone ContingencyType = "NONE"
	ContingencyTypeOTO  ContingencyType = "OTO" // on fill, submit children
	ContingencyTypeOCO  ContingencyType = "OCO" // one cancels others
	ContingencyTypeOUO  ContingencyType = "OUO" // one updates others
)

// LiquiditySide records whether a fill made or took liquidity.
type LiquiditySide string

const (
	LiquiditySideNone  LiquiditySide = "NONE"
	LiquiditySideMaker LiquiditySide = "MAKER"
	LiquiditySideTaker LiquiditySide = "TAKER"
)

// AggressorSide is the side of the party that crossed the spread on a trade
// tick.
type AggressorSide string

const (
	AggressorSideNone   AggressorSide = "NONE"
	AggressorSideBuyer  AggressorSide = "BUYER"
	AggressorSideSeller AggressorSide = "SELLER"
)

// PositionSide is the direction of a position's net exposure.
type PositionSide string

const (
	PositionSideFlat  PositionSide = "FLAT"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// BookType selects the granularity of an order book.
type BookType string

const (
	BookTypeL1TBBO BookType = "L1_TBBO" // top of book only
	BookTypeL2MBP  BookType = "L2_MBP"  // market by price
	BookTypeL3MBO  BookType = "L3_MBO"  // market by order
)

// BookAction is the mutation carried by an order book delta.
type BookAction string

const (
	BookActionAdd    BookAction = "ADD"
	BookActionUpdate BookAction = "UPDATE"
	BookActionDelete BookAction = "DELETE"
	BookActionClear  BookAction = "CLEAR"
)

// OmsType selects the order management convention for position IDs.
type OmsType string

const (
	// OmsTypeNetting maintains a single position per (instrument, strategy).
	OmsTypeNetting OmsType = "NETTING"
	// OmsTypeHedging assigns a fresh position ID per order.
	OmsTypeHedging OmsType = "HEDGING"
)

// AccountType distinguishes cash accounts from margin accounts.
type AccountType string

const (
	AccountTypeCash   AccountType = "CASH"
	AccountTypeMargin AccountType = "MARGIN"
)

// CurrencyKind classifies a currency.
type CurrencyKind string

const (
	CurrencyKindFiat   CurrencyKind = "FIAT"
	CurrencyKindCrypto CurrencyKind = "CRYPTO"
)

// PriceType selects which book-derived price to extract.
type PriceType string

const (
	PriceTypeBid  PriceType = "BID"
	PriceTypeAsk  PriceType = "ASK"
	PriceTypeMid  PriceType = "MID"
	PriceTypeLast PriceType = "LAST"
)

// ParseOrderSide converts the canonical UPPERCASE name into an OrderSide.
func ParseOrderSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), nil
	}
	return "", fmt.Errorf("invalid order side %q", s)
}

// ParseOrderType converts the canonical UPPERCASE name into an OrderType.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopMarket, OrderTypeStopLimit,
		OrderTypeMarketToLimit, OrderTypeTrailingStopMarket, OrderTypeTrailingStopLimit:
		return OrderType(s), nil
	}
	return "", fmt.Errorf("invalid order type %q", s)
}

// ParseTimeInForce converts the canonical UPPERCASE name into a TimeInForce.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch TimeInForce(s) {
	case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK, TimeInForceGTD,
		TimeInForceDay, TimeInForceAtTheOpen, TimeInForceAtTheClose:
		return TimeInForce(s), nil
	}
	return "", fmt.Errorf("invalid time in force %q", s)
}
