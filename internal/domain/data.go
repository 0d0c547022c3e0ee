package domain

// Market data records are immutable and carry two timestamps: TsEvent is
// when the event occurred at the venue, TsInit when the record was created.
// TsEvent <= TsInit is enforced at construction.

// checkTimestamps validates the TsEvent <= TsInit ordering.
func checkTimestamps(tsEvent, tsInit int64) error {
	if tsEvent > tsInit {
		return Validationf("ts_event %d > ts_init %d", tsEvent, tsInit)
	}
	return nil
}

// QuoteTick is a top-of-book quote update.
type QuoteTick struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Bid          Price        `json:"bid"`
	Ask          Price        `json:"ask"`
	BidSize      Quantity     `json:"bid_size"`
	AskSize      Quantity     `json:"ask_size"`
	TsEvent      int64        `json:"ts_event"`
	TsInit       int64        `json:"ts_init"`
}

// NewQuoteTick builds a validated QuoteTick.
func NewQuoteTick(id InstrumentID, bid, ask Price, bidSize, askSize Quantity, tsEvent, tsInit int64) (QuoteTick, error) {
	if err := checkTimestamps(tsEvent, tsInit); err != nil {
		return QuoteTick{}, err
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return QuoteTick{}, Validationf("quote prices must be positive: bid=%s ask=%s", bid, ask)
	}
	return QuoteTick{
		InstrumentID: id,
		Bid:          bid,
		Ask:          ask,
		BidSize:      bidSize,
		AskSize:      askSize,
		TsEvent:      tsEvent,
		TsInit:       tsInit,
	}, nil
}

// ExtractPrice returns the quote price for the requested price type.
func (q QuoteTick) ExtractPrice(pt PriceType) Price {
	switch pt {
	case PriceTypeBid:
		return q.Bid
	case PriceTypeAsk:
		return q.Ask
	case PriceTypeMid:
		return MidPrice(q.Bid, q.Ask)
	}
	return MidPrice(q.Bid, q.Ask)
}

// TradeTick is a single trade print.
type TradeTick struct {
	InstrumentID  InstrumentID  `json:"instrument_id"`
	Price         Price         `json:"price"`
	Size          Quantity      `json:"size"`
	AggressorSide AggressorSide `json:"aggressor_side"`
	TradeID       TradeID       `json:"trade_id"`
	TsEvent       int64         `json:"ts_event"`
	TsInit        int64         `json:"ts_init"`
}

// NewTradeTick builds a validated TradeTick.
func NewTradeTick(id InstrumentID, px Price, size Quantity, aggressor AggressorSide, tradeID TradeID, tsEvent, tsInit int64) (TradeTick, error) {
	if err := checkTimestamps(tsEvent, tsInit); err != nil {
		return TradeTick{}, err
	}
	if !px.IsPositive() {
		return TradeTick{}, Validationf("trade price must be positive: %s", px)
	}
	if !size.IsPositive() {
		return TradeTick{}, Validationf("trade size must be positive: %s", size)
	}
	return TradeTick{
		InstrumentID:  id,
		Price:         px,
		Size:          size,
		AggressorSide: aggressor,
		TradeID:       tradeID,
		TsEvent:       tsEvent,
		TsInit:        tsInit,
	}, nil
}

// BarType identifies a bar series: instrument plus an aggregation spec such
// as "1-MINUTE-LAST" or "1-DAY-LAST".
type BarType struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Spec         string       `json:"spec"`
}

// String returns the canonical "SYMBOL.VENUE-SPEC" form.
func (bt BarType) String() string {
	return bt.InstrumentID.String() + "-" + bt.Spec
}

// Bar is an OHLCV aggregation over a time or tick window.
type Bar struct {
	Type    BarType  `json:"bar_type"`
	Open    Price    `json:"open"`
	High    Price    `json:"high"`
	Low     Price    `json:"low"`
	Close   Price    `json:"close"`
	Volume  Quantity `json:"volume"`
	TsEvent int64    `json:"ts_event"`
	TsInit  int64    `json:"ts_init"`
}

// NewBar builds a validated Bar.
func NewBar(bt BarType, open, high, low, closePx Price, volume Quantity, tsEvent, tsInit int64) (Bar, error) {
	if err := checkTimestamps(tsEvent, tsInit); err != nil {
		return Bar{}, err
	}
	if high.Less(low) {
		return Bar{}, Validationf("bar high %s below low %s", high, low)
	}
	if high.Less(open) || high.Less(closePx) || open.Less(low) || closePx.Less(low) {
		return Bar{}, Validationf("bar open/close outside [low, high]: o=%s h=%s l=%s c=%s", open, high, low, closePx)
	}
	return Bar{Type: bt, Open: open, High: high, Low: low, Close: closePx, Volume: volume, TsEvent: tsEvent, TsInit: tsInit}, nil
}

// IsBullish reports whether the bar closed at or above its open. Bullish
// bars replay open -> low -> high -> close; bearish bars replay
// open -> high -> low -> close.
func (b Bar) IsBullish() bool { return !b.Close.Less(b.Open) }

// BookOrder is a single entry in an order book delta or snapshot. OrderID
// is meaningful only for L3 books; L1/L2 books synthesize stable IDs per
// side or per level.
type BookOrder struct {
	Side    OrderSide `json:"side"`
	Price   Price     `json:"price"`
	Size    Quantity  `json:"size"`
	OrderID uint64    `json:"order_id"`
}

// OrderBookDelta is a single mutation of the book.
type OrderBookDelta struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Action       BookAction   `json:"action"`
	Order        BookOrder    `json:"order"`
	TsEvent      int64        `json:"ts_event"`
	TsInit       int64        `json:"ts_init"`
}

// NewOrderBookDelta builds a validated delta.
func NewOrderBookDelta(id InstrumentID, action BookAction, order BookOrder, tsEvent, tsInit int64) (OrderBookDelta, error) {
	if err := checkTimestamps(tsEvent, tsInit); err != nil {
		return OrderBookDelta{}, err
	}
	switch action {
	case BookActionAdd, BookActionUpdate, BookActionDelete, BookActionClear:
	default:
		return OrderBookDelta{}, Validationf("invalid book action %q", action)
	}
	return OrderBookDelta{InstrumentID: id, Action: action, Order: order, TsEvent: tsEvent, TsInit: tsInit}, nil
}

// OrderBookSnapshot replaces the book contents atomically.
type OrderBookSnapshot struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Bids         []BookOrder  `json:"bids"`
	Asks         []BookOrder  `json:"asks"`
	TsEvent      int64        `json:"ts_event"`
	TsInit       int64        `json:"ts_init"`
}

// NewOrderBookSnapshot builds a validated snapshot. Bids and asks must not
// cross.
func NewOrderBookSnapshot(id InstrumentID, bids, asks []BookOrder, tsEvent, tsInit int64) (OrderBookSnapshot, error) {
	if err := checkTimestamps(tsEvent, tsInit); err != nil {
		return OrderBookSnapshot{}, err
	}
	for _, b := range bids {
		if b.Side != OrderSideBuy {
			return OrderBookSnapshot{}, Validationf("snapshot bid with side %s", b.Side)
		}
	}
	for _, a := range asks {
		if a.Side != OrderSideSell {
			return OrderBookSnapshot{}, Validationf("snapshot ask with side %s", a.Side)
		}
	}
	return OrderBookSnapshot{InstrumentID: id, Bids: bids, Asks: asks, TsEvent: tsEvent, TsInit: tsInit}, nil
}

// Data is the union of market data records the exchange accepts. The
// backtest runner streams values of this interface in ts_event order.
type Data interface {
	DataInstrumentID() InstrumentID
	DataTsEvent() int64
}

// DataInstrumentID implements Data.
func (q QuoteTick) DataInstrumentID() InstrumentID { return q.InstrumentID }

// DataTsEvent implements Data.
func (q QuoteTick) DataTsEvent() int64 { return q.TsEvent }

// DataInstrumentID implements Data.
func (t TradeTick) DataInstrumentID() InstrumentID { return t.InstrumentID }

// DataTsEvent implements Data.
func (t TradeTick) DataTsEvent() int64 { return t.TsEvent }

// DataInstrumentID implements Data.
func (b Bar) DataInstrumentID() InstrumentID { return b.Type.InstrumentID }

// DataTsEvent implements Data.
func (b Bar) DataTsEvent() int64 { return b.TsEvent }

// DataInstrumentID implements Data.
func (d OrderBookDelta) DataInstrumentID() InstrumentID { return d.InstrumentID }

// DataTsEvent implements Data.
func (d OrderBookDelta) DataTsEvent() int64 { return d.TsEvent }

// DataInstrumentID implements Data.
func (s OrderBookSnapshot) DataInstrumentID() InstrumentID { return s.InstrumentID }

// DataTsEvent implements Data.
func (s OrderBookSnapshot) DataTsEvent() int64 { return s.TsEvent }
