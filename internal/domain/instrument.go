package domain

// Instrument is the immutable definition of a tradeable instrument. The
// matching engine reads only its numeric facets; fee rates feed the
// commission model.
type Instrument struct {
	ID             InstrumentID
	BaseCurrency   Currency
	QuoteCurrency  Currency
	PricePrecision uint8
	SizePrecision  uint8
	PriceIncrement Price
	SizeIncrement  Quantity
	Multiplier     Quantity
	LotSize        Quantity
	MarginInit     float64 // initial margin rate, e.g. 0.05
	MarginMaint    float64 // maintenance margin rate
	MakerFee       float64 // fee rate applied to maker fills
	TakerFee       float64 // fee rate applied to taker fills
	IsInverse      bool
}

// MakePrice builds a Price at this instrument's price precision.
func (i *Instrument) MakePrice(value float64) Price {
	return NewPrice(value, i.PricePrecision)
}

// MakeQty builds a Quantity at this instrument's size precision.
func (i *Instrument) MakeQty(value float64) Quantity {
	return NewQty(value, i.SizePrecision)
}

// Notional returns the quote-currency value of qty at px, including the
// contract multiplier.
func (i *Instrument) Notional(qty Quantity, px Price) Money {
	mult := 1.0
	if i.Multiplier.IsPositive() {
		mult = i.Multiplier.Float64()
	}
	return NewMoney(qty.Float64()*px.Float64()*mult, i.QuoteCurrency)
}

// CommissionModel computes the fee charged for a fill.
type CommissionModel interface {
	Commission(instrument *Instrument, qty Quantity, px Price, side LiquiditySide) Money
}

// MakerTakerCommission charges the instrument's maker or taker fee rate on
// the fill notional. This mirrors the fee schedule of most crypto venues.
type MakerTakerCommission struct{}

// Commission implements CommissionModel.
func (MakerTakerCommission) Commission(instrument *Instrument, qty Quantity, px Price, side LiquiditySide) Money {
	rate := instrument.TakerFee
	if side == LiquiditySideMaker {
		rate = instrument.MakerFee
	}
	notional := instrument.Notional(qty, px)
	return NewMoney(notional.Float64()*rate, instrument.QuoteCurrency)
}

// FixedCommission charges a flat amount per fill regardless of size.
type FixedCommission struct {
	Fee Money
}

// Commission implements CommissionModel.
func (c FixedCommission) Commission(_ *Instrument, _ Quantity, _ Price, _ LiquiditySide) Money {
	return c.Fee
}
