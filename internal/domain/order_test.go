package domain

import (
	"fmt"
	"testing"
)

var orderTestInstrument = NewInstrumentID("AAPL", "XNAS")

func baseParams(id string) NewOrderParams {
	return NewOrderParams{
		TraderID:      "TRADER-001",
		StrategyID:    "S-001",
		InstrumentID:  orderTestInstrument,
		ClientOrderID: ClientOrderID(id),
		Side:          OrderSideBuy,
		Type:          OrderTypeLimit,
		Quantity:      NewQty(100, 0),
		TimeInForce:   TimeInForceGTC,
		Price:         NewPrice(100.00, 2),
	}
}

func TestNewOrderValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*NewOrderParams)
	}{
		{"missing client order id", func(p *NewOrderParams) { p.ClientOrderID = "" }},
		{"invalid side", func(p *NewOrderParams) { p.Side = "SIDEWAYS" }},
		{"zero quantity", func(p *NewOrderParams) { p.Quantity = NewQty(0, 0) }},
		{"limit without price", func(p *NewOrderParams) { p.Price = Price{} }},
		{"market with price", func(p *NewOrderParams) {
			p.Type = OrderTypeMarket
			p.TimeInForce = TimeInForceIOC
		}},
		{"stop without trigger", func(p *NewOrderParams) {
			p.Type = OrderTypeStopMarket
			p.Price = Price{}
		}},
		{"limit with trigger", func(p *NewOrderParams) { p.TriggerPrice = NewPrice(99.00, 2) }},
		{"trailing without offset", func(p *NewOrderParams) {
			p.Type = OrderTypeTrailingStopMarket
			p.Price = Price{}
		}},
		{"gtd without expiry", func(p *NewOrderParams) { p.TimeInForce = TimeInForceGTD }},
		{"expiry without gtd", func(p *NewOrderParams) { p.ExpireTimeNs = 100 }},
		{"post-only market", func(p *NewOrderParams) {
			p.Type = OrderTypeMarket
			p.Price = Price{}
			p.TimeInForce = TimeInForceIOC
			p.PostOnly = true
		}},
		{"display qty above quantity", func(p *NewOrderParams) { p.DisplayQty = NewQty(200, 0) }},
		{"market gtd", func(p *NewOrderParams) {
			p.Type = OrderTypeMarket
			p.Price = Price{}
			p.TimeInForce = TimeInForceGTD
			p.ExpireTimeNs = 100
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := baseParams("O-1")
			c.mutate(&p)
			if _, err := NewOrder(p); err == nil {
				t.Errorf("NewOrder accepted %s", c.name)
			}
		})
	}
}

func TestNewOrderDefaultsTriggerType(t *testing.T) {
	p := baseParams("O-1")
	p.Type = OrderTypeStopLimit
	p.TriggerPrice = NewPrice(101.00, 2)
	o, err := NewOrder(p)
	if err != nil {
		t.Fatal(err)
	}
	if o.TriggerType != TriggerTypeDefault {
		t.Errorf("trigger type = %s, want DEFAULT", o.TriggerType)
	}
	if o.Status() != OrderStatusInitialized {
		t.Errorf("status = %s, want INITIALIZED", o.Status())
	}
	if len(o.Events()) != 1 || o.Events()[0].EventType() != "ORDER_INITIALIZED" {
		t.Errorf("initial event trail = %v", o.Events())
	}
}

var eventSeq int

func evBase(o *Order, ts int64) OrderEventBase {
	eventSeq++
	return OrderEventBase{
		TraderID:      o.TraderID,
		StrategyID:    o.StrategyID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
		AccountID:     "XNAS-001",
		EventID:       fmt.Sprintf("evt-%d", eventSeq),
		TsEvent:       ts,
		TsInit:        ts,
	}
}

func mustApply(t *testing.T, o *Order, ev OrderEvent) {
	t.Helper()
	if err := o.Apply(ev); err != nil {
		t.Fatalf("applying %s in %s: %v", ev.EventType(), o.Status(), err)
	}
}

func filled(o *Order, qty, px float64, ts int64) OrderFilled {
	eventSeq++
	return OrderFilled{
		OrderEventBase: evBase(o, ts),
		TradeID:        TradeID(fmt.Sprintf("T-%d", eventSeq)),
		PositionID:     "P-1",
		Side:           o.Side,
		LastQty:        NewQty(qty, 0),
		LastPx:         NewPrice(px, 2),
		Commission:     NewMoney(0, USD),
		LiquiditySide:  LiquiditySideTaker,
	}
}

func TestOrderLifecycleToFilled(t *testing.T) {
	o, err := NewOrder(baseParams("O-1"))
	if err != nil {
		t.Fatal(err)
	}

	mustApply(t, o, OrderSubmitted{OrderEventBase: evBase(o, 1)})
	acc := OrderAccepted{OrderEventBase: evBase(o, 2)}
	acc.VenueOrderID = "XNAS-AAPL-001"
	mustApply(t, o, acc)
	if o.VenueOrderID != "XNAS-AAPL-001" {
		t.Errorf("venue order id = %s", o.VenueOrderID)
	}

	mustApply(t, o, filled(o, 40, 100.00, 3))
	if o.Status() != OrderStatusPartiallyFilled {
		t.Fatalf("status = %s", o.Status())
	}
	if o.LeavesQty().Raw != NewQty(60, 0).Raw {
		t.Errorf("leaves = %s, want 60", o.LeavesQty())
	}

	mustApply(t, o, filled(o, 60, 100.10, 4))
	if o.Status() != OrderStatusFilled {
		t.Fatalf("status = %s", o.Status())
	}
	if !o.IsClosed() || o.IsOpen() {
		t.Error("terminal state flags wrong")
	}

	want := (40*100.00 + 60*100.10) / 100
	if diff := o.AvgPx - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg px = %f, want %f", o.AvgPx, want)
	}
	// Buy slippage is avg px above the limit.
	if diff := o.Slippage - (want - 100.00); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("slippage = %f", o.Slippage)
	}
	if len(o.TradeIDs()) != 2 {
		t.Errorf("trade ids = %v", o.TradeIDs())
	}
}

func TestOrderDeniedFromInitialized(t *testing.T) {
	o, err := NewOrder(baseParams("O-1"))
	if err != nil {
		t.Fatal(err)
	}
	mustApply(t, o, OrderDenied{OrderEventBase: evBase(o, 1), Reason: "max notional exceeded"})
	if o.Status() != OrderStatusDenied || !o.IsClosed() {
		t.Errorf("status = %s, want DENIED", o.Status())
	}
}

func TestOrderRejectsEventsAfterTerminal(t *testing.T) {
	o, err := NewOrder(baseParams("O-1"))
	if err != nil {
		t.Fatal(err)
	}
	mustApply(t, o, OrderSubmitted{OrderEventBase: evBase(o, 1)})
	mustApply(t, o, OrderCanceled{OrderEventBase: evBase(o, 2)})

	before := o.Status()
	if err := o.Apply(filled(o, 10, 100.00, 3)); err == nil {
		t.Fatal("fill accepted after cancel")
	}
	if o.Status() != before || o.FilledQty.IsPositive() {
		t.Error("failed apply mutated the order")
	}
}

func TestPendingUpdateRevertsOnReject(t *testing.T) {
	o, err := NewOrder(baseParams("O-1"))
	if err != nil {
		t.Fatal(err)
	}
	mustApply(t, o, OrderSubmitted{OrderEventBase: evBase(o, 1)})
	mustApply(t, o, OrderAccepted{OrderEventBase: evBase(o, 2)})
	mustApply(t, o, OrderPendingUpdate{OrderEventBase: evBase(o, 3)})
	if o.Status() != OrderStatusPendingUpdate {
		t.Fatalf("status = %s", o.Status())
	}

	mustApply(t, o, OrderModifyRejected{OrderEventBase: evBase(o, 4), Reason: "no changes"})
	if o.Status() != OrderStatusAccepted {
		t.Errorf("status = %s, want reverted ACCEPTED", o.Status())
	}
}

func TestOrderUpdatedMutatesAttributes(t *testing.T) {
	o, err := NewOrder(baseParams("O-1"))
	if err != nil {
		t.Fatal(err)
	}
	mustApply(t, o, OrderSubmitted{OrderEventBase: evBase(o, 1)})
	mustApply(t, o, OrderAccepted{OrderEventBase: evBase(o, 2)})

	qty := NewQty(50, 0)
	px := NewPrice(99.50, 2)
	mustApply(t, o, OrderUpdated{OrderEventBase: evBase(o, 3), Quantity: &qty, Price: &px})

	if o.Quantity.Raw != qty.Raw || o.Price.Raw != px.Raw {
		t.Errorf("update not applied: qty=%s px=%s", o.Quantity, o.Price)
	}
	if o.Status() != OrderStatusAccepted {
		t.Errorf("venue-initiated update changed status to %s", o.Status())
	}
}

func TestOrderListRejectsMixedInstruments(t *testing.T) {
	a, _ := NewOrder(baseParams("O-A"))
	pb := baseParams("O-B")
	pb.InstrumentID = NewInstrumentID("MSFT", "XNAS")
	b, _ := NewOrder(pb)

	if _, err := NewOrderList("L-1", []*Order{a, b}, 1); err == nil {
		t.Error("mixed-instrument list accepted")
	}
	if _, err := NewOrderList("L-2", nil, 1); err == nil {
		t.Error("empty list accepted")
	}

	list, err := NewOrderList("L-3", []*Order{a}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a.OrderListID != "L-3" || list.InstrumentID != orderTestInstrument {
		t.Errorf("list not stamped onto orders")
	}
}
