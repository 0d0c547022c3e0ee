package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOrderEventEnvelopeRoundTrip(t *testing.T) {
	fill := OrderFilled{
		OrderEventBase: OrderEventBase{
			TraderID:      "TRADER-001",
			StrategyID:    "S-001",
			InstrumentID:  orderTestInstrument,
			ClientOrderID: "O-1",
			VenueOrderID:  "XNAS-AAPL-001",
			AccountID:     "XNAS-001",
			EventID:       "evt-1",
			TsEvent:       100,
			TsInit:        100,
		},
		TradeID:       "T-1",
		PositionID:    "P-1",
		Side:          OrderSideBuy,
		LastQty:       NewQty(40, 0),
		LastPx:        NewPrice(100.25, 2),
		Commission:    NewMoney(1.5, USD),
		LiquiditySide: LiquiditySideTaker,
	}

	data, err := MarshalOrderEvent(fill)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalOrderEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := back.(*OrderFilled)
	if !ok {
		t.Fatalf("decoded %T, want *OrderFilled", back)
	}
	if got.LastPx.Raw != fill.LastPx.Raw || got.LastPx.Precision != fill.LastPx.Precision {
		t.Errorf("last px = %s, want %s", got.LastPx, fill.LastPx)
	}
	if got.Commission.Raw != fill.Commission.Raw || got.Commission.Currency.Code != "USD" {
		t.Errorf("commission = %s", got.Commission)
	}
	if got.OrderID() != "O-1" || got.EventStrategyID() != "S-001" {
		t.Errorf("base fields lost: %+v", got.OrderEventBase)
	}
}

// Prices, quantities, and money cross the wire as decimal strings, never as
// raw fixed-point objects.
func TestEventWireFormUsesDecimalStrings(t *testing.T) {
	fill := OrderFilled{
		OrderEventBase: OrderEventBase{
			TraderID:      "TRADER-001",
			StrategyID:    "S-001",
			InstrumentID:  orderTestInstrument,
			ClientOrderID: "O-1",
			EventID:       "evt-1",
		},
		Side:          OrderSideBuy,
		LastQty:       NewQty(40, 0),
		LastPx:        NewPrice(100.25, 2),
		Commission:    NewMoney(1.5, USD),
		LiquiditySide: LiquiditySideTaker,
	}
	data, err := MarshalOrderEvent(fill)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"last_px":"100.25"`,
		`"last_qty":"40"`,
		`"commission":{"amount":"1.50","currency":"USD"}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("wire form missing %s:\n%s", want, data)
		}
	}
	if strings.Contains(string(data), `"raw"`) {
		t.Errorf("wire form leaks raw fixed-point values:\n%s", data)
	}
}

func TestModifyOrderOptionalFieldsRoundTrip(t *testing.T) {
	qty := NewQty(25, 0)
	px := NewPrice(99.9900, 4)
	cmd := ModifyOrder{
		CommandBase:   NewCommandBase("TRADER-001", "S-001", orderTestInstrument, 10),
		ClientOrderID: "O-1",
		Quantity:      &qty,
		Price:         &px,
	}
	data, err := MarshalTradingCommand(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"price":"99.9900"`) {
		t.Errorf("modify price not a decimal string:\n%s", data)
	}
	back, err := UnmarshalTradingCommand(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := back.(ModifyOrder)
	if !ok {
		t.Fatalf("decoded %T, want ModifyOrder", back)
	}
	if got.Quantity == nil || got.Quantity.Raw != qty.Raw || got.Quantity.Precision != 0 {
		t.Errorf("quantity = %v", got.Quantity)
	}
	if got.Price == nil || got.Price.Raw != px.Raw || got.Price.Precision != 4 {
		t.Errorf("price = %v", got.Price)
	}
	if got.TriggerPrice != nil {
		t.Errorf("trigger price = %v, want nil", got.TriggerPrice)
	}
}

func TestMoneyUnknownCurrencyInfersPrecision(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`{"amount":"0.125","currency":"DOGE"}`), &m); err != nil {
		t.Fatal(err)
	}
	if m.Currency.Code != "DOGE" || m.Currency.Precision != 3 {
		t.Errorf("currency = %+v", m.Currency)
	}
	if m.Amount() != "0.125" {
		t.Errorf("amount = %s, want 0.125", m.Amount())
	}
}

func TestOrderEventEnvelopeUnknownType(t *testing.T) {
	if _, err := UnmarshalOrderEvent([]byte(`{"type":"ORDER_TELEPORTED","event":{}}`)); err == nil {
		t.Error("unknown event type accepted")
	}
}

func TestTradingCommandEnvelopeRoundTrip(t *testing.T) {
	o, err := NewOrder(baseParams("O-1"))
	if err != nil {
		t.Fatal(err)
	}
	cmd := SubmitOrder{
		CommandBase: NewCommandBase("TRADER-001", "S-001", orderTestInstrument, 50),
		Order:       o,
	}

	data, err := MarshalTradingCommand(cmd)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalTradingCommand(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := back.(SubmitOrder)
	if !ok {
		t.Fatalf("decoded %T, want SubmitOrder", back)
	}
	if got.CommandType() != "SUBMIT_ORDER" || got.CommandID() != cmd.ID {
		t.Errorf("command identity lost")
	}
	if got.Order == nil || got.Order.ClientOrderID != "O-1" {
		t.Fatal("order payload lost")
	}
	if got.Order.Quantity.Raw != o.Quantity.Raw || got.Order.Price.Raw != o.Price.Raw {
		t.Errorf("order numerics = %s @ %s", got.Order.Quantity, got.Order.Price)
	}
	if got.Order.Status() != OrderStatusInitialized {
		t.Errorf("status = %s", got.Order.Status())
	}

	if _, err := UnmarshalTradingCommand([]byte(`{"type":"NOPE","command":{}}`)); err == nil {
		t.Error("unknown command type accepted")
	}
}

func TestOrderWireFormPreservesPrecision(t *testing.T) {
	p := baseParams("O-1")
	p.Type = OrderTypeStopLimit
	p.TriggerPrice = NewPrice(101.50, 2)
	o, err := NewOrder(p)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	var back Order
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Price.String() != "100.00" || back.TriggerPrice.String() != "101.50" {
		t.Errorf("prices = %s / %s", back.Price, back.TriggerPrice)
	}
	if back.Quantity.String() != "100" || back.Quantity.Precision != 0 {
		t.Errorf("quantity = %s precision %d", back.Quantity, back.Quantity.Precision)
	}
}

func TestQuoteTickExtractPrice(t *testing.T) {
	q, err := NewQuoteTick(orderTestInstrument,
		NewPrice(100.00, 2), NewPrice(100.02, 2),
		NewQty(100, 0), NewQty(200, 0), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := q.ExtractPrice(PriceTypeBid); got.Raw != NewPrice(100.00, 2).Raw {
		t.Errorf("bid = %s", got)
	}
	if got := q.ExtractPrice(PriceTypeAsk); got.Raw != NewPrice(100.02, 2).Raw {
		t.Errorf("ask = %s", got)
	}
	if got := q.ExtractPrice(PriceTypeMid); got.Raw != NewPrice(100.01, 2).Raw {
		t.Errorf("mid = %s", got)
	}
}

func TestDataConstructorsRejectBadTimestamps(t *testing.T) {
	if _, err := NewQuoteTick(orderTestInstrument,
		NewPrice(100.00, 2), NewPrice(100.02, 2),
		NewQty(100, 0), NewQty(200, 0), 5, 1); err == nil {
		t.Error("ts_init before ts_event accepted")
	}
	if _, err := NewBar(BarType{InstrumentID: orderTestInstrument, Spec: "1-DAY"},
		NewPrice(100, 2), NewPrice(99, 2), NewPrice(98, 2), NewPrice(99.5, 2),
		NewQty(1000, 0), 1, 1); err == nil {
		t.Error("bar with high below open accepted")
	}
}
