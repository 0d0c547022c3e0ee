package account

import (
	"fmt"
	"testing"

	"tradesim/internal/domain"
)

func testInstrument() *domain.Instrument {
	return &domain.Instrument{
		ID:             domain.NewInstrumentID("AAPL", "XNAS"),
		BaseCurrency:   domain.Currency{Code: "AAPL", Precision: 0},
		QuoteCurrency:  domain.USD,
		PricePrecision: 2,
		SizePrecision:  0,
		PriceIncrement: domain.NewPrice(0.01, 2),
		SizeIncrement:  domain.NewQty(1, 0),
	}
}

var fillSeq int

func fill(side domain.OrderSide, qty, px, commission float64, ts int64) domain.OrderFilled {
	fillSeq++
	return domain.OrderFilled{
		OrderEventBase: domain.OrderEventBase{
			TraderID:      "TRADER-001",
			StrategyID:    "S-001",
			InstrumentID:  testInstrument().ID,
			ClientOrderID: domain.ClientOrderID(fmt.Sprintf("O-%d", fillSeq)),
			AccountID:     "XNAS-001",
			EventID:       fmt.Sprintf("evt-%d", fillSeq),
			TsEvent:       ts,
			TsInit:        ts,
		},
		TradeID:       domain.TradeID(fmt.Sprintf("T-%d", fillSeq)),
		PositionID:    "P-1",
		Side:          side,
		LastQty:       domain.NewQty(qty, 0),
		LastPx:        domain.NewPrice(px, 2),
		Commission:    domain.NewMoney(commission, domain.USD),
		LiquiditySide: domain.LiquiditySideTaker,
	}
}

func assertMoney(t *testing.T, got domain.Money, want float64) {
	t.Helper()
	if got.Raw != domain.NewMoney(want, got.Currency).Raw {
		t.Errorf("money = %s, want %.2f %s", got, want, got.Currency.Code)
	}
}

func TestPositionWeightedAverageOpen(t *testing.T) {
	inst := testInstrument()
	p := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 0, 1))

	if p.Side() != domain.PositionSideLong || p.SignedQty() != 100 {
		t.Fatalf("side=%s qty=%f", p.Side(), p.SignedQty())
	}
	if p.AvgPxOpen() != 100.00 {
		t.Fatalf("avg = %f", p.AvgPxOpen())
	}

	p.ApplyFill(fill(domain.OrderSideBuy, 100, 102.00, 0, 2))
	if p.AvgPxOpen() != 101.00 {
		t.Errorf("avg after add = %f, want 101.00", p.AvgPxOpen())
	}
	if p.SignedQty() != 200 {
		t.Errorf("qty = %f, want 200", p.SignedQty())
	}
	// Nothing realized while only adding.
	assertMoney(t, p.RealizedPnl(), 0)
}

func TestPositionRealizesOnReduce(t *testing.T) {
	inst := testInstrument()
	p := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 0, 1))

	p.ApplyFill(fill(domain.OrderSideSell, 40, 105.00, 0, 2))
	// 40 closed at +5.00 each.
	assertMoney(t, p.RealizedPnl(), 200)
	if p.SignedQty() != 60 {
		t.Errorf("remaining = %f, want 60", p.SignedQty())
	}
	// The open average does not move on a reduce.
	if p.AvgPxOpen() != 100.00 {
		t.Errorf("avg moved on reduce: %f", p.AvgPxOpen())
	}

	p.ApplyFill(fill(domain.OrderSideSell, 60, 99.00, 0, 3))
	// 60 more at -1.00 each.
	assertMoney(t, p.RealizedPnl(), 200-60)
	if !p.IsClosed() {
		t.Error("position should be flat")
	}
	if p.TsClosed != 3 {
		t.Errorf("ts_closed = %d", p.TsClosed)
	}
}

func TestPositionFlipReopensAtFillPrice(t *testing.T) {
	inst := testInstrument()
	p := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 0, 1))

	p.ApplyFill(fill(domain.OrderSideSell, 150, 103.00, 0, 2))

	if p.Side() != domain.PositionSideShort || p.SignedQty() != -50 {
		t.Fatalf("side=%s qty=%f, want SHORT -50", p.Side(), p.SignedQty())
	}
	// The long 100 realized at +3.00; the short 50 opens at the fill price.
	assertMoney(t, p.RealizedPnl(), 300)
	if p.AvgPxOpen() != 103.00 {
		t.Errorf("reopened avg = %f, want 103.00", p.AvgPxOpen())
	}
}

func TestPositionCommissionNetsIntoRealized(t *testing.T) {
	inst := testInstrument()
	p := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 5.00, 1))
	assertMoney(t, p.RealizedPnl(), -5)

	// Commission in a foreign currency is not netted here.
	f := fill(domain.OrderSideSell, 100, 100.00, 0, 2)
	f.Commission = domain.NewMoney(0.001, domain.BTC)
	p.ApplyFill(f)
	assertMoney(t, p.RealizedPnl(), -5)
}

func TestPositionUnrealizedPnl(t *testing.T) {
	inst := testInstrument()
	long := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 0, 1))
	assertMoney(t, long.UnrealizedPnl(domain.NewPrice(102.50, 2)), 250)

	short := NewPosition(inst, fill(domain.OrderSideSell, 100, 100.00, 0, 1))
	assertMoney(t, short.UnrealizedPnl(domain.NewPrice(102.50, 2)), -250)
}

func TestPositionWouldIncrease(t *testing.T) {
	inst := testInstrument()
	p := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 0, 1))

	if !p.WouldIncrease(domain.OrderSideBuy, domain.NewQty(10, 0)) {
		t.Error("buy on a long should increase")
	}
	if p.WouldIncrease(domain.OrderSideSell, domain.NewQty(100, 0)) {
		t.Error("full close is not an increase")
	}
	if !p.WouldIncrease(domain.OrderSideSell, domain.NewQty(150, 0)) {
		t.Error("flip counts as an increase")
	}
}

func TestPortfolioNetRaw(t *testing.T) {
	inst := testInstrument()
	pf := NewPortfolio()

	a := NewPosition(inst, fill(domain.OrderSideBuy, 100, 100.00, 0, 1))
	a.ID = "P-A"
	pf.Add(a)
	b := NewPosition(inst, fill(domain.OrderSideSell, 30, 100.00, 0, 2))
	b.ID = "P-B"
	pf.Add(b)
	other := NewPosition(inst, fill(domain.OrderSideBuy, 500, 100.00, 0, 3))
	other.ID = "P-X"
	other.StrategyID = "S-OTHER"
	pf.Add(other)

	net := pf.NetRaw(inst.ID, "S-001")
	want := int64(domain.NewQty(70, 0).Raw)
	if net != want {
		t.Errorf("net = %d, want %d", net, want)
	}

	open := pf.OpenForInstrument(inst.ID)
	if len(open) != 3 {
		t.Errorf("open positions = %d, want 3", len(open))
	}

	pf.Reset()
	if len(pf.All()) != 0 {
		t.Error("portfolio not empty after reset")
	}
}
