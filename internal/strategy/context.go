package strategy

import (
	"fmt"
	"log/slog"

	"tradesim/internal/domain"
	"tradesim/internal/exchange"
)

// Context is a strategy's handle on the simulated venue. It issues client
// order IDs, builds commands stamped with the strategy's identity, and
// queues them through the venue's latency model.
type Context struct {
	TraderID   domain.TraderID
	StrategyID domain.StrategyID
	Venue      *exchange.SimulatedExchange
	Log        *slog.Logger

	// Risk, when set, vets every order before it is queued. A non-nil
	// error keeps the order off the venue.
	Risk func(o *domain.Order) error

	orderSeq int
}

// NewContext creates a Context bound to one strategy identity on one venue.
func NewContext(traderID domain.TraderID, strategyID domain.StrategyID, venue *exchange.SimulatedExchange, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{
		TraderID:   traderID,
		StrategyID: strategyID,
		Venue:      venue,
		Log:        log.With("strategy", string(strategyID)),
	}
}

// NowNs returns the venue's logical clock.
func (c *Context) NowNs() int64 { return c.Venue.NowNs() }

// Instrument returns the venue's definition of an instrument.
func (c *Context) Instrument(id domain.InstrumentID) (*domain.Instrument, bool) {
	return c.Venue.Instrument(id)
}

// NetPosition returns the strategy's signed net position (raw fixed-point
// units) on the instrument. Zero means flat.
func (c *Context) NetPosition(id domain.InstrumentID) int64 {
	return c.Venue.Portfolio().NetRaw(id, c.StrategyID)
}

// NextClientOrderID issues the next client order ID for this strategy.
func (c *Context) NextClientOrderID() domain.ClientOrderID {
	c.orderSeq++
	return domain.ClientOrderID(fmt.Sprintf("O-%s-%03d", c.StrategyID, c.orderSeq))
}

// Submit queues a SUBMIT_ORDER command for the given order.
func (c *Context) Submit(o *domain.Order) error {
	if c.Risk != nil {
		if err := c.Risk(o); err != nil {
			return err
		}
	}
	return c.Venue.Send(domain.SubmitOrder{
		CommandBase: c.commandBase(o.InstrumentID),
		Order:       o,
	})
}

// SubmitList queues the orders as one atomic SUBMIT_ORDER_LIST command.
func (c *Context) SubmitList(list *domain.OrderList) error {
	if c.Risk != nil {
		for _, o := range list.Orders {
			if err := c.Risk(o); err != nil {
				return err
			}
		}
	}
	return c.Venue.Send(domain.SubmitOrderList{
		CommandBase: c.commandBase(list.InstrumentID),
		List:        list,
	})
}

// SubmitMarket builds and queues a market order, returning its client order
// ID.
func (c *Context) SubmitMarket(id domain.InstrumentID, side domain.OrderSide, qty domain.Quantity) (domain.ClientOrderID, error) {
	clientOrderID := c.NextClientOrderID()
	o, err := domain.NewOrder(domain.NewOrderParams{
		TraderID:      c.TraderID,
		StrategyID:    c.StrategyID,
		InstrumentID:  id,
		ClientOrderID: clientOrderID,
		Side:          side,
		Type:          domain.OrderTypeMarket,
		Quantity:      qty,
		TimeInForce:   domain.TimeInForceIOC,
		TsInit:        c.NowNs(),
	})
	if err != nil {
		return "", err
	}
	return clientOrderID, c.Submit(o)
}

// SubmitLimit builds and queues a GTC limit order, returning its client
// order ID.
func (c *Context) SubmitLimit(id domain.InstrumentID, side domain.OrderSide, qty domain.Quantity, price domain.Price) (domain.ClientOrderID, error) {
	clientOrderID := c.NextClientOrderID()
	o, err := domain.NewOrder(domain.NewOrderParams{
		TraderID:      c.TraderID,
		StrategyID:    c.StrategyID,
		InstrumentID:  id,
		ClientOrderID: clientOrderID,
		Side:          side,
		Type:          domain.OrderTypeLimit,
		Quantity:      qty,
		Price:         price,
		TimeInForce:   domain.TimeInForceGTC,
		TsInit:        c.NowNs(),
	})
	if err != nil {
		return "", err
	}
	return clientOrderID, c.Submit(o)
}

// Modify queues a MODIFY_ORDER command. Nil attributes are left unchanged.
func (c *Context) Modify(id domain.InstrumentID, clientOrderID domain.ClientOrderID, qty *domain.Quantity, price, trigger *domain.Price) error {
	return c.Venue.Send(domain.ModifyOrder{
		CommandBase:   c.commandBase(id),
		ClientOrderID: clientOrderID,
		Quantity:      qty,
		Price:         price,
		TriggerPrice:  trigger,
	})
}

// Cancel queues a CANCEL_ORDER command.
func (c *Context) Cancel(id domain.InstrumentID, clientOrderID domain.ClientOrderID) error {
	return c.Venue.Send(domain.CancelOrder{
		CommandBase:   c.commandBase(id),
		ClientOrderID: clientOrderID,
	})
}

// CancelAll queues a CANCEL_ALL_ORDERS sweep. An empty side cancels both
// sides.
func (c *Context) CancelAll(id domain.InstrumentID, side domain.OrderSide) error {
	return c.Venue.Send(domain.CancelAllOrders{
		CommandBase: c.commandBase(id),
		Side:        side,
	})
}

// Query requests an order status report.
func (c *Context) Query(id domain.InstrumentID, clientOrderID domain.ClientOrderID) error {
	return c.Venue.Send(domain.QueryOrder{
		CommandBase:   c.commandBase(id),
		ClientOrderID: clientOrderID,
	})
}

func (c *Context) commandBase(id domain.InstrumentID) domain.CommandBase {
	return domain.NewCommandBase(c.TraderID, c.StrategyID, id, c.NowNs())
}
