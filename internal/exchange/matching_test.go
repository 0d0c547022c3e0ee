package exchange

import (
	"testing"

	"tradesim/internal/domain"
)

func l3Venue(t *testing.T, cfg Config) (*SimulatedExchange, *domain.Instrument) {
	cfg.BookType = domain.BookTypeL3MBO
	return newTestVenue(t, cfg)
}

func delta(x *SimulatedExchange, side domain.OrderSide, px, size float64, orderID uint64, ts int64) {
	x.ProcessOrderBookDelta(domain.OrderBookDelta{
		InstrumentID: testInstrument().ID,
		Action:       domain.BookActionAdd,
		Order: domain.BookOrder{
			Side:    side,
			Price:   domain.NewPrice(px, 2),
			Size:    domain.NewQty(size, 0),
			OrderID: orderID,
		},
		TsEvent: ts,
		TsInit:  ts,
	})
}

func fillsOf(events []domain.OrderEvent, id domain.ClientOrderID) []domain.OrderFilled {
	var out []domain.OrderFilled
	for _, ev := range events {
		if f, ok := ev.(domain.OrderFilled); ok && f.ClientOrderID == id {
			out = append(out, f)
		}
	}
	return out
}

func orderAt(t *testing.T, x *SimulatedExchange, id domain.ClientOrderID) *domain.Order {
	t.Helper()
	eng, ok := x.Engine(testInstrument().ID)
	if !ok {
		t.Fatal("no engine")
	}
	o, ok := eng.Order(id)
	if !ok {
		t.Fatalf("order %s not tracked", id)
	}
	return o
}

func TestMarketOrderSweepsLevels(t *testing.T) {
	x, _ := l3Venue(t, Config{})
	events := collectEvents(x)

	delta(x, domain.OrderSideSell, 100.02, 100, 21, 1)
	delta(x, domain.OrderSideSell, 100.05, 100, 22, 2)

	submit(t, x, marketOrder(t, "O-1", domain.OrderSideBuy, 250))

	fills := fillsOf(*events, "O-1")
	if len(fills) != 3 {
		t.Fatalf("got %d fills, want 3 (two levels plus residual)", len(fills))
	}
	if fills[0].LastPx.Raw != domain.NewPrice(100.02, 2).Raw || fills[0].LastQty.Raw != domain.NewQty(100, 0).Raw {
		t.Errorf("fill 0 = %s @ %s", fills[0].LastQty, fills[0].LastPx)
	}
	if fills[1].LastPx.Raw != domain.NewPrice(100.05, 2).Raw {
		t.Errorf("fill 1 px = %s, want 100.05", fills[1].LastPx)
	}
	// The exhausted book fills the residual at the last level touched.
	if fills[2].LastPx.Raw != domain.NewPrice(100.05, 2).Raw || fills[2].LastQty.Raw != domain.NewQty(50, 0).Raw {
		t.Errorf("residual fill = %s @ %s", fills[2].LastQty, fills[2].LastPx)
	}

	o := orderAt(t, x, "O-1")
	if o.Status() != domain.OrderStatusFilled {
		t.Errorf("status = %s, want FILLED", o.Status())
	}
	want := (100*100.02 + 150*100.05) / 250
	if diff := o.AvgPx - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg px = %f, want %f", o.AvgPx, want)
	}
}

func TestMarketOrderNoMarketRejected(t *testing.T) {
	x, _ := l3Venue(t, Config{})
	submit(t, x, marketOrder(t, "O-1", domain.OrderSideBuy, 10))
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", got)
	}
}

func TestRestingLimitFillsAsMakerAtOwnPrice(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	events := collectEvents(x)

	quote(x, 99.90, 100.10, 1)
	submit(t, x, limitOrder(t, "O-1", domain.OrderSideBuy, 100.00, 100))
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", got)
	}

	// A print through the limit fills the maker at its own price.
	trade(x, 99.95, 50, 2)

	fills := fillsOf(*events, "O-1")
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	f := fills[0]
	if f.LastPx.Raw != domain.NewPrice(100.00, 2).Raw {
		t.Errorf("maker filled at %s, want own limit 100.00", f.LastPx)
	}
	if f.LiquiditySide != domain.LiquiditySideMaker {
		t.Errorf("liquidity side = %s, want MAKER", f.LiquiditySide)
	}
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusPartiallyFilled {
		t.Errorf("status = %s, want PARTIALLY_FILLED", got)
	}
}

func TestMarketableLimitTakesAtBookPrice(t *testing.T) {
	x, _ := l3Venue(t, Config{})
	events := collectEvents(x)

	delta(x, domain.OrderSideSell, 100.02, 100, 21, 1)

	submit(t, x, limitOrder(t, "O-1", domain.OrderSideBuy, 100.05, 50))

	fills := fillsOf(*events, "O-1")
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	// Takers execute at the book level, not their limit.
	if fills[0].LastPx.Raw != domain.NewPrice(100.02, 2).Raw {
		t.Errorf("taker filled at %s, want book 100.02", fills[0].LastPx)
	}
	if fills[0].LiquiditySide != domain.LiquiditySideTaker {
		t.Errorf("liquidity side = %s", fills[0].LiquiditySide)
	}
}

func TestPostOnlyMarketableRejected(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	quote(x, 99.90, 100.10, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		Quantity:      domain.NewQty(10, 0),
		TimeInForce:   domain.TimeInForceGTC,
		Price:         domain.NewPrice(100.10, 2),
		PostOnly:      true,
	})
	submit(t, x, o)

	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", got)
	}
}

func TestMarketToLimitRestsRemainder(t *testing.T) {
	x, _ := l3Venue(t, Config{})

	delta(x, domain.OrderSideSell, 100.02, 100, 21, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeMarketToLimit,
		Quantity:      domain.NewQty(150, 0),
		TimeInForce:   domain.TimeInForceGTC,
	})
	submit(t, x, o)

	got := orderAt(t, x, "O-1")
	if got.Status() != domain.OrderStatusPartiallyFilled {
		t.Fatalf("status = %s, want PARTIALLY_FILLED", got.Status())
	}
	// The remainder rests at the first execution price.
	if got.Price.Raw != domain.NewPrice(100.02, 2).Raw {
		t.Errorf("assigned limit = %s, want 100.02", got.Price)
	}
	eng, _ := x.Engine(testInstrument().ID)
	if v := eng.Book().VolumeAt(domain.OrderSideBuy, domain.NewPrice(100.02, 2)); v.Raw != domain.NewQty(50, 0).Raw {
		t.Errorf("resting remainder = %s, want 50", v)
	}
}

// A FOK limit short of depth is rejected outright, never accepted and then
// canceled, and leaves no trace in the book or the account.
func TestFOKLimitRejectedWhenShort(t *testing.T) {
	x, _ := l3Venue(t, Config{})
	events := collectEvents(x)
	delta(x, domain.OrderSideSell, 100.02, 60, 21, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		Quantity:      domain.NewQty(100, 0),
		TimeInForce:   domain.TimeInForceFOK,
		Price:         domain.NewPrice(100.02, 2),
	})
	submit(t, x, o)

	got := orderAt(t, x, "O-1")
	if got.Status() != domain.OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status())
	}
	if got.FilledQty.IsPositive() {
		t.Errorf("FOK partially filled: %s", got.FilledQty)
	}
	types := eventTypes(*events)
	if len(types) != 2 || types[0] != "ORDER_SUBMITTED" || types[1] != "ORDER_REJECTED" {
		t.Errorf("events = %v, want [ORDER_SUBMITTED ORDER_REJECTED]", types)
	}
	rej, ok := (*events)[1].(domain.OrderRejected)
	if !ok {
		t.Fatalf("event 1 is %T, want domain.OrderRejected", (*events)[1])
	}
	if rej.Reason != "insufficient depth" {
		t.Errorf("reason = %q, want %q", rej.Reason, "insufficient depth")
	}
	if len(x.TradeReports()) != 0 {
		t.Error("rejected FOK produced trades")
	}
	eng, _ := x.Engine(testInstrument().ID)
	if v := eng.Book().VolumeAt(domain.OrderSideBuy, domain.NewPrice(100.02, 2)); v.IsPositive() {
		t.Errorf("rejected FOK rests in book: %s", v)
	}
}

func TestIOCFillsThenCancelsRemainder(t *testing.T) {
	x, _ := l3Venue(t, Config{})
	delta(x, domain.OrderSideSell, 100.02, 60, 21, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		Quantity:      domain.NewQty(100, 0),
		TimeInForce:   domain.TimeInForceIOC,
		Price:         domain.NewPrice(100.02, 2),
	})
	submit(t, x, o)

	got := orderAt(t, x, "O-1")
	if got.Status() != domain.OrderStatusCanceled {
		t.Errorf("status = %s, want CANCELED", got.Status())
	}
	if got.FilledQty.Raw != domain.NewQty(60, 0).Raw {
		t.Errorf("filled = %s, want 60", got.FilledQty)
	}
}

func stopMarket(t *testing.T, id string, side domain.OrderSide, trigger float64, qty float64) *domain.Order {
	return mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: domain.ClientOrderID(id),
		Side:          side,
		Type:          domain.OrderTypeStopMarket,
		Quantity:      domain.NewQty(qty, 0),
		TimeInForce:   domain.TimeInForceGTC,
		TriggerPrice:  domain.NewPrice(trigger, 2),
	})
}

func TestStopMarketTriggersOnLast(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	trade(x, 100.00, 10, 1)

	submit(t, x, stopMarket(t, "O-1", domain.OrderSideBuy, 101.00, 10))
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED while waiting", got)
	}

	trade(x, 100.50, 10, 2)
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusAccepted {
		t.Fatalf("stop fired below trigger")
	}

	trade(x, 101.20, 10, 3)
	got := orderAt(t, x, "O-1")
	if got.Status() != domain.OrderStatusFilled {
		t.Fatalf("status = %s, want FILLED after trigger", got.Status())
	}
}

func TestRejectStopOrdersInMarket(t *testing.T) {
	x, _ := newTestVenue(t, Config{RejectStopOrders: true})
	trade(x, 101.50, 10, 1)

	// A buy stop with trigger below last is already triggerable.
	submit(t, x, stopMarket(t, "O-1", domain.OrderSideBuy, 101.00, 10))
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", got)
	}
}

func TestStopLimitTriggeredThenRests(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	trade(x, 100.00, 10, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeStopLimit,
		Quantity:      domain.NewQty(10, 0),
		TimeInForce:   domain.TimeInForceGTC,
		Price:         domain.NewPrice(100.80, 2),
		TriggerPrice:  domain.NewPrice(101.00, 2),
	})
	submit(t, x, o)

	trade(x, 101.10, 10, 2)
	got := orderAt(t, x, "O-1")
	// Triggered, but the limit 100.80 is below the market; it rests.
	if !got.IsTriggeredFlag {
		t.Fatal("stop limit did not trigger")
	}
	if got.Status() != domain.OrderStatusTriggered {
		t.Fatalf("status = %s, want TRIGGERED", got.Status())
	}

	trade(x, 100.70, 10, 3)
	got = orderAt(t, x, "O-1")
	if got.Status() != domain.OrderStatusFilled {
		t.Errorf("status = %s, want FILLED once price reached the limit", got.Status())
	}
}

func TestTrailingStopRatchets(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	trade(x, 100.00, 10, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:       testInstrument().ID,
		ClientOrderID:      "O-1",
		Side:               domain.OrderSideSell,
		Type:               domain.OrderTypeTrailingStopMarket,
		Quantity:           domain.NewQty(10, 0),
		TimeInForce:        domain.TimeInForceGTC,
		TrailingOffset:     domain.NewPrice(1.00, 2),
		TrailingOffsetType: domain.TrailingOffsetTypePrice,
	})
	submit(t, x, o)

	got := orderAt(t, x, "O-1")
	if got.TriggerPrice.Raw != domain.NewPrice(99.00, 2).Raw {
		t.Fatalf("initial trigger = %s, want 99.00", got.TriggerPrice)
	}

	// The market rallies; a sell trail follows it up.
	trade(x, 102.00, 10, 2)
	if got.TriggerPrice.Raw != domain.NewPrice(101.00, 2).Raw {
		t.Fatalf("trigger after rally = %s, want 101.00", got.TriggerPrice)
	}

	// A pullback that stays above the trigger never loosens it.
	trade(x, 101.50, 10, 3)
	if got.TriggerPrice.Raw != domain.NewPrice(101.00, 2).Raw {
		t.Fatalf("trigger loosened to %s", got.TriggerPrice)
	}

	trade(x, 100.90, 10, 4)
	if got.Status() != domain.OrderStatusFilled {
		t.Errorf("status = %s, want FILLED after trigger breach", got.Status())
	}
}

func TestOCOFillCancelsPeer(t *testing.T) {
	x, _ := newTestVenue(t, Config{SupportContingentOrders: true})
	quote(x, 99.90, 100.10, 1)

	take := mustOrder(t, domain.NewOrderParams{
		InstrumentID:    testInstrument().ID,
		ClientOrderID:   "O-TP",
		Side:            domain.OrderSideSell,
		Type:            domain.OrderTypeLimit,
		Quantity:        domain.NewQty(10, 0),
		TimeInForce:     domain.TimeInForceGTC,
		Price:           domain.NewPrice(101.00, 2),
		ContingencyType: domain.ContingencyTypeOCO,
		LinkedOrderIDs:  []domain.ClientOrderID{"O-SL"},
	})
	stop := mustOrder(t, domain.NewOrderParams{
		InstrumentID:    testInstrument().ID,
		ClientOrderID:   "O-SL",
		Side:            domain.OrderSideSell,
		Type:            domain.OrderTypeStopMarket,
		Quantity:        domain.NewQty(10, 0),
		TimeInForce:     domain.TimeInForceGTC,
		TriggerPrice:    domain.NewPrice(99.00, 2),
		ContingencyType: domain.ContingencyTypeOCO,
		LinkedOrderIDs:  []domain.ClientOrderID{"O-TP"},
	})
	submit(t, x, take)
	submit(t, x, stop)

	// Price prints through the take profit.
	trade(x, 101.10, 50, 2)

	if got := orderAt(t, x, "O-TP").Status(); got != domain.OrderStatusFilled {
		t.Fatalf("take profit = %s, want FILLED", got)
	}
	if got := orderAt(t, x, "O-SL").Status(); got != domain.OrderStatusCanceled {
		t.Errorf("stop leg = %s, want CANCELED", got)
	}
}

func TestOTOChildWaitsForParentFill(t *testing.T) {
	x, _ := newTestVenue(t, Config{SupportContingentOrders: true})
	quote(x, 99.90, 100.10, 1)

	parent := mustOrder(t, domain.NewOrderParams{
		InstrumentID:    testInstrument().ID,
		ClientOrderID:   "O-P",
		Side:            domain.OrderSideBuy,
		Type:            domain.OrderTypeLimit,
		Quantity:        domain.NewQty(10, 0),
		TimeInForce:     domain.TimeInForceGTC,
		Price:           domain.NewPrice(99.50, 2),
		ContingencyType: domain.ContingencyTypeOTO,
	})
	child := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-C",
		Side:          domain.OrderSideSell,
		Type:          domain.OrderTypeLimit,
		Quantity:      domain.NewQty(10, 0),
		TimeInForce:   domain.TimeInForceGTC,
		Price:         domain.NewPrice(101.00, 2),
		ParentOrderID: "O-P",
	})
	submit(t, x, parent)
	submit(t, x, child)

	// Child is held: submitted but never accepted.
	if got := orderAt(t, x, "O-C").Status(); got != domain.OrderStatusSubmitted {
		t.Fatalf("held child = %s, want SUBMITTED", got)
	}

	// Parent fills; the child releases and starts working.
	trade(x, 99.40, 50, 2)
	if got := orderAt(t, x, "O-P").Status(); got != domain.OrderStatusFilled {
		t.Fatalf("parent = %s, want FILLED", got)
	}
	if got := orderAt(t, x, "O-C").Status(); got != domain.OrderStatusAccepted {
		t.Errorf("released child = %s, want ACCEPTED", got)
	}
}

func TestOTOChildDiesWithParent(t *testing.T) {
	x, _ := newTestVenue(t, Config{SupportContingentOrders: true})
	quote(x, 99.90, 100.10, 1)

	parent := mustOrder(t, domain.NewOrderParams{
		InstrumentID:    testInstrument().ID,
		ClientOrderID:   "O-P",
		Side:            domain.OrderSideBuy,
		Type:            domain.OrderTypeLimit,
		Quantity:        domain.NewQty(10, 0),
		TimeInForce:     domain.TimeInForceGTC,
		Price:           domain.NewPrice(99.50, 2),
		ContingencyType: domain.ContingencyTypeOTO,
	})
	child := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-C",
		Side:          domain.OrderSideSell,
		Type:          domain.OrderTypeLimit,
		Quantity:      domain.NewQty(10, 0),
		TimeInForce:   domain.TimeInForceGTC,
		Price:         domain.NewPrice(101.00, 2),
		ParentOrderID: "O-P",
	})
	submit(t, x, parent)
	submit(t, x, child)

	cancel := domain.CancelOrder{
		CommandBase:   domain.NewCommandBase(testTrader, testStrategy, testInstrument().ID, x.NowNs()),
		ClientOrderID: "O-P",
	}
	if err := x.Send(cancel); err != nil {
		t.Fatal(err)
	}
	x.Process(x.NowNs())

	if got := orderAt(t, x, "O-C").Status(); got != domain.OrderStatusCanceled {
		t.Errorf("child = %s, want CANCELED with parent", got)
	}
}

func TestOUOPartialFillMirrorsQuantity(t *testing.T) {
	x, _ := l3Venue(t, Config{SupportContingentOrders: true})

	delta(x, domain.OrderSideBuy, 99.00, 1000, 31, 1)
	delta(x, domain.OrderSideSell, 101.50, 1000, 32, 1)

	a := mustOrder(t, domain.NewOrderParams{
		InstrumentID:    testInstrument().ID,
		ClientOrderID:   "O-A",
		Side:            domain.OrderSideSell,
		Type:            domain.OrderTypeLimit,
		Quantity:        domain.NewQty(100, 0),
		TimeInForce:     domain.TimeInForceGTC,
		Price:           domain.NewPrice(101.00, 2),
		ContingencyType: domain.ContingencyTypeOUO,
		LinkedOrderIDs:  []domain.ClientOrderID{"O-B"},
	})
	b := mustOrder(t, domain.NewOrderParams{
		InstrumentID:    testInstrument().ID,
		ClientOrderID:   "O-B",
		Side:            domain.OrderSideSell,
		Type:            domain.OrderTypeLimit,
		Quantity:        domain.NewQty(100, 0),
		TimeInForce:     domain.TimeInForceGTC,
		Price:           domain.NewPrice(102.00, 2),
		ContingencyType: domain.ContingencyTypeOUO,
		LinkedOrderIDs:  []domain.ClientOrderID{"O-A"},
	})
	submit(t, x, a)
	submit(t, x, b)

	// A buyer lifts 40 of leg A.
	delta(x, domain.OrderSideBuy, 101.00, 40, 33, 2)

	legA := orderAt(t, x, "O-A")
	if legA.FilledQty.Raw != domain.NewQty(40, 0).Raw {
		t.Fatalf("leg A filled = %s, want 40", legA.FilledQty)
	}
	legB := orderAt(t, x, "O-B")
	// Leg B resizes so its leaves match leg A's.
	if legB.Quantity.Raw != domain.NewQty(60, 0).Raw {
		t.Errorf("leg B quantity = %s, want mirrored 60", legB.Quantity)
	}
}

func TestModifyPriceLosesQueuePriority(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	quote(x, 99.90, 100.10, 1)

	submit(t, x, limitOrder(t, "O-1", domain.OrderSideBuy, 99.00, 10))

	newPx := domain.NewPrice(99.50, 2)
	mod := domain.ModifyOrder{
		CommandBase:   domain.NewCommandBase(testTrader, testStrategy, testInstrument().ID, x.NowNs()),
		ClientOrderID: "O-1",
		Price:         &newPx,
	}
	if err := x.Send(mod); err != nil {
		t.Fatal(err)
	}
	x.Process(x.NowNs())

	got := orderAt(t, x, "O-1")
	if got.Price.Raw != newPx.Raw {
		t.Fatalf("price = %s, want 99.50", got.Price)
	}
	eng, _ := x.Engine(testInstrument().ID)
	if v := eng.Book().VolumeAt(domain.OrderSideBuy, newPx); v.Raw != domain.NewQty(10, 0).Raw {
		t.Errorf("order not resting at new price: %s", v)
	}
}

func TestModifyRejectedForClosedOrder(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	events := collectEvents(x)
	quote(x, 99.98, 100.00, 1)

	submit(t, x, marketOrder(t, "O-1", domain.OrderSideBuy, 10))

	q := domain.NewQty(20, 0)
	mod := domain.ModifyOrder{
		CommandBase:   domain.NewCommandBase(testTrader, testStrategy, testInstrument().ID, x.NowNs()),
		ClientOrderID: "O-1",
		Quantity:      &q,
	}
	if err := x.Send(mod); err != nil {
		t.Fatal(err)
	}
	x.Process(x.NowNs())

	var rejected bool
	for _, ev := range *events {
		if _, ok := ev.(domain.OrderModifyRejected); ok {
			rejected = true
		}
	}
	if !rejected {
		t.Error("modify of a filled order was not rejected")
	}
}

func TestCancelAllSweepsOneSide(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	quote(x, 99.90, 100.10, 1)

	submit(t, x, limitOrder(t, "O-B1", domain.OrderSideBuy, 99.00, 10))
	submit(t, x, limitOrder(t, "O-B2", domain.OrderSideBuy, 98.00, 10))
	submit(t, x, limitOrder(t, "O-S1", domain.OrderSideSell, 101.00, 10))

	cancel := domain.CancelAllOrders{
		CommandBase: domain.NewCommandBase(testTrader, testStrategy, testInstrument().ID, x.NowNs()),
		Side:        domain.OrderSideBuy,
	}
	if err := x.Send(cancel); err != nil {
		t.Fatal(err)
	}
	x.Process(x.NowNs())

	if got := orderAt(t, x, "O-B1").Status(); got != domain.OrderStatusCanceled {
		t.Errorf("O-B1 = %s, want CANCELED", got)
	}
	if got := orderAt(t, x, "O-B2").Status(); got != domain.OrderStatusCanceled {
		t.Errorf("O-B2 = %s, want CANCELED", got)
	}
	if got := orderAt(t, x, "O-S1").Status(); got != domain.OrderStatusAccepted {
		t.Errorf("O-S1 = %s, want still ACCEPTED", got)
	}
}

func TestGTDExpiresOnClock(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	quote(x, 99.90, 100.10, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		Quantity:      domain.NewQty(10, 0),
		TimeInForce:   domain.TimeInForceGTD,
		Price:         domain.NewPrice(99.00, 2),
		ExpireTimeNs:  5_000,
	})
	submit(t, x, o)

	quote(x, 99.90, 100.10, 4_000)
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusAccepted {
		t.Fatalf("expired early: %s", got)
	}

	quote(x, 99.90, 100.10, 6_000)
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusExpired {
		t.Errorf("status = %s, want EXPIRED", got)
	}
}

func TestReduceOnlyValidation(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	quote(x, 99.98, 100.00, 1)

	ro := func(id string, side domain.OrderSide, qty float64) *domain.Order {
		return mustOrder(t, domain.NewOrderParams{
			InstrumentID:  testInstrument().ID,
			ClientOrderID: domain.ClientOrderID(id),
			Side:          side,
			Type:          domain.OrderTypeMarket,
			Quantity:      domain.NewQty(qty, 0),
			TimeInForce:   domain.TimeInForceIOC,
			ReduceOnly:    true,
		})
	}

	// Flat: reduce-only can't open.
	submit(t, x, ro("O-1", domain.OrderSideSell, 10))
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusRejected {
		t.Fatalf("flat reduce-only = %s, want REJECTED", got)
	}

	submit(t, x, marketOrder(t, "O-2", domain.OrderSideBuy, 100))

	// Long: reduce-only buy would increase.
	submit(t, x, ro("O-3", domain.OrderSideBuy, 10))
	if got := orderAt(t, x, "O-3").Status(); got != domain.OrderStatusRejected {
		t.Errorf("increasing reduce-only = %s, want REJECTED", got)
	}

	// Oversized reduce would flip.
	submit(t, x, ro("O-4", domain.OrderSideSell, 150))
	if got := orderAt(t, x, "O-4").Status(); got != domain.OrderStatusRejected {
		t.Errorf("oversized reduce-only = %s, want REJECTED", got)
	}

	// A correctly sized reduce passes.
	submit(t, x, ro("O-5", domain.OrderSideSell, 100))
	if got := orderAt(t, x, "O-5").Status(); got != domain.OrderStatusFilled {
		t.Errorf("valid reduce-only = %s, want FILLED", got)
	}
}

func TestQuantityPrecisionMismatchRejected(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	quote(x, 99.98, 100.00, 1)

	o := mustOrder(t, domain.NewOrderParams{
		InstrumentID:  testInstrument().ID,
		ClientOrderID: "O-1",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeMarket,
		Quantity:      domain.NewQty(10, 2), // instrument size precision is 0
		TimeInForce:   domain.TimeInForceIOC,
	})
	submit(t, x, o)
	if got := orderAt(t, x, "O-1").Status(); got != domain.OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", got)
	}
}

func TestBarReplayTouchesOHLC(t *testing.T) {
	x, _ := newTestVenue(t, Config{})
	events := collectEvents(x)
	quote(x, 99.90, 100.10, 1)

	// A sell limit above the open fills when the bar's high touches it.
	submit(t, x, limitOrder(t, "O-1", domain.OrderSideSell, 101.00, 10))

	bar, err := domain.NewBar(
		domain.BarType{InstrumentID: testInstrument().ID, Spec: "1-DAY"},
		domain.NewPrice(100.00, 2), // open
		domain.NewPrice(101.50, 2), // high
		domain.NewPrice(99.50, 2),  // low
		domain.NewPrice(101.20, 2), // close
		domain.NewQty(4000, 0),
		2_000, 2_000)
	if err != nil {
		t.Fatal(err)
	}
	x.ProcessBar(bar)

	fills := fillsOf(*events, "O-1")
	if len(fills) == 0 {
		t.Fatal("bar high did not fill the resting sell")
	}
	if fills[0].LastPx.Raw != domain.NewPrice(101.00, 2).Raw {
		t.Errorf("filled at %s, want own limit 101.00", fills[0].LastPx)
	}
}

func TestIDGeneratorSequences(t *testing.T) {
	g := NewIDGenerator("XNAS")
	inst := testInstrument().ID

	if id := g.NextVenueOrderID(inst); id != "XNAS-AAPL-001" {
		t.Errorf("venue order id = %s", id)
	}
	if id := g.NextVenueOrderID(inst); id != "XNAS-AAPL-002" {
		t.Errorf("venue order id = %s", id)
	}
	if id := g.NextPositionID(inst); id != "XNAS-AAPL-001" {
		t.Errorf("position id = %s", id)
	}
	if id := g.NextTradeID(); id != "XNAS-001" {
		t.Errorf("trade id = %s", id)
	}

	g.Reset()
	if id := g.NextVenueOrderID(inst); id != "XNAS-AAPL-001" {
		t.Errorf("after reset venue order id = %s", id)
	}
}

func TestFillModelValidation(t *testing.T) {
	if _, err := NewFillModel(1.5, 1, 0, 0); err == nil {
		t.Error("probability above 1 accepted")
	}
	if _, err := NewFillModel(1, -0.1, 0, 0); err == nil {
		t.Error("negative probability accepted")
	}
	m := PerfectFill()
	if !m.IsLimitFilled() || !m.IsStopFilled() || m.IsSlipped() {
		t.Error("PerfectFill should always fill and never slip")
	}
}
