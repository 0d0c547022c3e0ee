package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TradingCommand is the union of commands the exchange accepts through its
// latency-delayed inflight queue.
type TradingCommand interface {
	// CommandType returns the canonical UPPERCASE command name.
	CommandType() string

	// CommandID returns the UUIDv4 assigned at construction.
	CommandID() uuid.UUID

	// CommandInstrumentID returns the instrument the command routes to.
	CommandInstrumentID() InstrumentID

	// CommandTsInit returns when the command was created.
	CommandTsInit() int64
}

// CommandBase holds fields shared by all trading commands.
type CommandBase struct {
	TraderID     TraderID     `json:"trader_id"`
	StrategyID   StrategyID   `json:"strategy_id"`
	InstrumentID InstrumentID `json:"instrument_id"`
	ClientID     ClientID     `json:"client_id,omitempty"`
	ID           uuid.UUID    `json:"command_id"`
	TsInit       int64        `json:"ts_init"`
}

// CommandID implements TradingCommand.
func (b CommandBase) CommandID() uuid.UUID { return b.ID }

// CommandInstrumentID implements TradingCommand.
func (b CommandBase) CommandInstrumentID() InstrumentID { return b.InstrumentID }

// CommandTsInit implements TradingCommand.
func (b CommandBase) CommandTsInit() int64 { return b.TsInit }

// NewCommandBase assigns a fresh UUIDv4 command ID.
func NewCommandBase(trader TraderID, strategy StrategyID, instrument InstrumentID, tsInit int64) CommandBase {
	return CommandBase{
		TraderID:     trader,
		StrategyID:   strategy,
		InstrumentID: instrument,
		ID:           uuid.New(),
		TsInit:       tsInit,
	}
}

// SubmitOrder submits a single order to the venue.
type SubmitOrder struct {
	CommandBase
	Order              *Order     `json:"order"`
	PositionID         PositionID `json:"position_id,omitempty"`
	CheckPositionExists bool      `json:"check_position_exists,omitempty"`
}

// CommandType implements TradingCommand.
func (SubmitOrder) CommandType() string { return "SUBMIT_ORDER" }

// SubmitOrderList submits a grouped set of orders atomically.
type SubmitOrderList struct {
	CommandBase
	List *OrderList `json:"list"`
}

// CommandType implements TradingCommand.
func (SubmitOrderList) CommandType() string { return "SUBMIT_ORDER_LIST" }

// ModifyOrder requests a change to quantity, price, or trigger price.
// Unchanged attributes are nil.
type ModifyOrder struct {
	CommandBase
	ClientOrderID ClientOrderID `json:"client_order_id"`
	VenueOrderID  VenueOrderID  `json:"venue_order_id,omitempty"`
	Quantity      *Quantity     `json:"quantity,omitempty"`
	Price         *Price        `json:"price,omitempty"`
	TriggerPrice  *Price        `json:"trigger_price,omitempty"`
}

// CommandType implements TradingCommand.
func (ModifyOrder) CommandType() string { return "MODIFY_ORDER" }

// CancelOrder requests removal of a working order.
type CancelOrder struct {
	CommandBase
	ClientOrderID ClientOrderID `json:"client_order_id"`
	VenueOrderID  VenueOrderID  `json:"venue_order_id,omitempty"`
}

// CommandType implements TradingCommand.
func (CancelOrder) CommandType() string { return "CANCEL_ORDER" }

// CancelAllOrders sweeps every working order for the strategy on the
// instrument. Side narrows the sweep; empty means both sides.
type CancelAllOrders struct {
	CommandBase
	Side OrderSide `json:"side,omitempty"`
}

// CommandType implements TradingCommand.
func (CancelAllOrders) CommandType() string { return "CANCEL_ALL_ORDERS" }

// QueryOrder requests an OrderStatusReport for a single order.
type QueryOrder struct {
	CommandBase
	ClientOrderID ClientOrderID `json:"client_order_id"`
	VenueOrderID  VenueOrderID  `json:"venue_order_id,omitempty"`
}

// CommandType implements TradingCommand.
func (QueryOrder) CommandType() string { return "QUERY_ORDER" }

// commandEnvelope wraps a serialized command with its type tag.
type commandEnvelope struct {
	Type    string          `json:"type"`
	Command json.RawMessage `json:"command"`
}

// MarshalTradingCommand serializes a command into a typed JSON envelope.
func MarshalTradingCommand(cmd TradingCommand) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(commandEnvelope{Type: cmd.CommandType(), Command: body})
}

// UnmarshalTradingCommand reverses MarshalTradingCommand.
func UnmarshalTradingCommand(data []byte) (TradingCommand, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "SUBMIT_ORDER":
		var c SubmitOrder
		if err := json.Unmarshal(env.Command, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "SUBMIT_ORDER_LIST":
		var c SubmitOrderList
		if err := json.Unmarshal(env.Command, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "MODIFY_ORDER":
		var c ModifyOrder
		if err := json.Unmarshal(env.Command, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "CANCEL_ORDER":
		var c CancelOrder
		if err := json.Unmarshal(env.Command, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "CANCEL_ALL_ORDERS":
		var c CancelAllOrders
		if err := json.Unmarshal(env.Command, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "QUERY_ORDER":
		var c QueryOrder
		if err := json.Unmarshal(env.Command, &c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown trading command type %q", env.Type)
}
