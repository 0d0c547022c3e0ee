package exchange

import (
	"log/slog"

	"tradesim/internal/account"
	"tradesim/internal/domain"
)

// Config assembles a simulated exchange.
type Config struct {
	Venue       domain.Venue
	OmsType     domain.OmsType
	AccountType domain.AccountType
	BookType    domain.BookType

	StartingBalances []domain.Money
	DefaultLeverage  float64

	// RejectStopOrders rejects stops already triggerable at submission.
	RejectStopOrders bool
	// SupportContingentOrders enables OTO/OCO/OUO.
	SupportContingentOrders bool
	// FrozenAccount disables balance mutations; matching still runs.
	FrozenAccount bool

	// Seed drives the fill model PRNG when FillModel is nil.
	Seed int64

	Latency    LatencyModel
	FillModel  *FillModel
	Commission domain.CommissionModel
	Log        *slog.Logger
}

// SimulatedExchange is a single venue: it accepts trading commands through
// a latency-delayed inflight queue, matches them against per-instrument
// books fed by market data, and keeps the venue-side account and positions.
// All methods must be called from one goroutine; the backtest loop is that
// goroutine.
type SimulatedExchange struct {
	cfg Config
	log *slog.Logger

	instruments   map[domain.InstrumentID]*domain.Instrument
	instrumentSeq []domain.InstrumentID
	engines       map[domain.InstrumentID]*MatchingEngine

	acct      *account.Account
	portfolio *account.Portfolio

	latency    LatencyModel
	fillModel  *FillModel
	commission domain.CommissionModel
	ids        *IDGenerator
	inflight   *inflightQueue
	clients    map[domain.ClientID]struct{}

	nowNs  int64
	trades []domain.TradeReport

	onEvent  func(domain.OrderEvent)
	onReport func(domain.OrderStatusReport)
}

// New builds an exchange from the config, filling in defaults: zero
// latency, perfect fills, and maker/taker commissions.
func New(cfg Config) (*SimulatedExchange, error) {
	if cfg.Venue == "" {
		return nil, &domain.ConfigurationError{Message: "venue is required"}
	}
	if cfg.OmsType == "" {
		cfg.OmsType = domain.OmsTypeNetting
	}
	if cfg.AccountType == "" {
		cfg.AccountType = domain.AccountTypeMargin
	}
	if cfg.BookType == "" {
		cfg.BookType = domain.BookTypeL1TBBO
	}
	if cfg.Latency == nil {
		cfg.Latency = ZeroLatency{}
	}
	if cfg.FillModel == nil {
		fm, err := NewFillModel(1, 1, 0, cfg.Seed)
		if err != nil {
			return nil, err
		}
		cfg.FillModel = fm
	}
	if cfg.Commission == nil {
		cfg.Commission = domain.MakerTakerCommission{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.DefaultLeverage <= 0 {
		cfg.DefaultLeverage = 1
	}

	x := &SimulatedExchange{
		cfg:         cfg,
		log:         cfg.Log.With("venue", string(cfg.Venue)),
		instruments: make(map[domain.InstrumentID]*domain.Instrument),
		engines:     make(map[domain.InstrumentID]*MatchingEngine),
		portfolio:   account.NewPortfolio(),
		latency:     cfg.Latency,
		fillModel:   cfg.FillModel,
		commission:  cfg.Commission,
		ids:         NewIDGenerator(cfg.Venue),
		inflight:    newInflightQueue(),
		clients:     make(map[domain.ClientID]struct{}),
	}
	x.initAccount()
	return x, nil
}

func (x *SimulatedExchange) initAccount() {
	id := domain.AccountID(string(x.cfg.Venue) + "-001")
	x.acct = account.NewAccount(id, x.cfg.AccountType, x.cfg.StartingBalances)
	if err := x.acct.SetDefaultLeverage(x.cfg.DefaultLeverage); err != nil {
		x.log.Error("bad default leverage", "err", err)
	}
	if x.cfg.FrozenAccount {
		x.acct.Freeze()
	}
}

// Venue returns the venue identifier.
func (x *SimulatedExchange) Venue() domain.Venue { return x.cfg.Venue }

// Account returns the venue-side account.
func (x *SimulatedExchange) Account() *account.Account { return x.acct }

// Portfolio returns the venue-side positions.
func (x *SimulatedExchange) Portfolio() *account.Portfolio { return x.portfolio }

// NowNs returns the exchange's logical clock.
func (x *SimulatedExchange) NowNs() int64 { return x.nowNs }

// OnEvent registers the handler that receives every order event.
func (x *SimulatedExchange) OnEvent(h func(domain.OrderEvent)) { x.onEvent = h }

// OnReport registers the handler that receives order status reports
// produced for QUERY_ORDER commands.
func (x *SimulatedExchange) OnReport(h func(domain.OrderStatusReport)) { x.onReport = h }

// RegisterClient allows the client to send commands. With no clients
// registered, all senders are accepted.
func (x *SimulatedExchange) RegisterClient(id domain.ClientID) {
	x.clients[id] = struct{}{}
}

// AddInstrument registers an instrument and creates its matching engine.
func (x *SimulatedExchange) AddInstrument(inst *domain.Instrument) error {
	if _, dup := x.instruments[inst.ID]; dup {
		return &domain.ConfigurationError{Message: "instrument already registered: " + inst.ID.String()}
	}
	instrumentID := inst.ID
	deps := EngineDeps{
		FillModel:  x.fillModel,
		Commission: x.commission,
		IDs:        x.ids,
		AccountID:  x.acct.ID,
		Log:        x.log,
		Emit:       x.routeEvent,
		PositionFor: func(o *domain.Order) domain.PositionID {
			return x.resolvePositionID(instrumentID, o)
		},
		NetPosition: func(strategyID domain.StrategyID) int64 {
			return x.portfolio.NetRaw(instrumentID, strategyID)
		},
	}
	cfg := EngineConfig{
		OmsType:                 x.cfg.OmsType,
		BookType:                x.cfg.BookType,
		RejectStopOrders:        x.cfg.RejectStopOrders,
		SupportContingentOrders: x.cfg.SupportContingentOrders,
	}
	x.instruments[inst.ID] = inst
	x.instrumentSeq = append(x.instrumentSeq, inst.ID)
	x.engines[inst.ID] = NewMatchingEngine(inst, cfg, deps)
	return nil
}

// Instrument returns a registered instrument definition.
func (x *SimulatedExchange) Instrument(id domain.InstrumentID) (*domain.Instrument, bool) {
	inst, ok := x.instruments[id]
	return inst, ok
}

// Engine returns the matching engine for an instrument.
func (x *SimulatedExchange) Engine(id domain.InstrumentID) (*MatchingEngine, bool) {
	e, ok := x.engines[id]
	return e, ok
}

// AdjustAccount applies a manual balance delta (deposit or withdrawal).
func (x *SimulatedExchange) AdjustAccount(delta domain.Money) error {
	return x.acct.ApplyDelta(delta)
}

// ---------------------------------------------------------------------------
// Command intake
// ---------------------------------------------------------------------------

// Send queues a command; it commits after the latency model's delay. The
// send time is the exchange's current logical clock.
func (x *SimulatedExchange) Send(cmd domain.TradingCommand) error {
	if _, ok := x.engines[cmd.CommandInstrumentID()]; !ok {
		return domain.ErrInstrumentNotFound
	}
	if len(x.clients) > 0 {
		if clientID := senderOf(cmd); clientID != "" {
			if _, ok := x.clients[clientID]; !ok {
				return &domain.ConfigurationError{Message: "client not registered: " + string(clientID)}
			}
		}
	}
	commitNs := x.nowNs + x.latency.Delay(cmd)
	x.inflight.push(commitNs, cmd)
	return nil
}

func senderOf(cmd domain.TradingCommand) domain.ClientID {
	switch c := cmd.(type) {
	case domain.SubmitOrder:
		return c.ClientID
	case domain.SubmitOrderList:
		return c.ClientID
	case domain.ModifyOrder:
		return c.ClientID
	case domain.CancelOrder:
		return c.ClientID
	case domain.CancelAllOrders:
		return c.ClientID
	case domain.QueryOrder:
		return c.ClientID
	}
	return ""
}

// Process advances the logical clock to nowNs, executing every inflight
// command whose commit time has arrived, in (commit time, send order).
func (x *SimulatedExchange) Process(nowNs int64) {
	for {
		commit, ok := x.inflight.peekCommit()
		if !ok || commit > nowNs {
			break
		}
		item := x.inflight.pop()
		x.nowNs = item.commitNs
		x.execute(item.cmd, item.commitNs)
	}
	if nowNs > x.nowNs {
		x.nowNs = nowNs
	}
}

func (x *SimulatedExchange) execute(cmd domain.TradingCommand, commitNs int64) {
	eng, ok := x.engines[cmd.CommandInstrumentID()]
	if !ok {
		x.log.Error("command for unknown instrument", "instrument", cmd.CommandInstrumentID().String())
		return
	}
	switch c := cmd.(type) {
	case domain.SubmitOrder:
		if c.PositionID != "" {
			if _, exists := x.portfolio.Get(c.PositionID); !exists && c.CheckPositionExists {
				x.log.Error("submit names unknown position",
					"client_order_id", c.Order.ClientOrderID,
					"position_id", c.PositionID)
				return
			}
			c.Order.PositionID = c.PositionID
		}
		eng.ProcessOrder(c.Order, commitNs)
	case domain.SubmitOrderList:
		eng.ProcessOrderList(c.List, commitNs)
	case domain.ModifyOrder:
		eng.ProcessModify(c, commitNs)
	case domain.CancelOrder:
		eng.ProcessCancel(c, commitNs)
	case domain.CancelAllOrders:
		eng.ProcessCancelAll(c, commitNs)
	case domain.QueryOrder:
		if o, ok := eng.Order(c.ClientOrderID); ok {
			if x.onReport != nil {
				x.onReport(x.statusReport(o))
			}
		} else {
			x.log.Warn("query for unknown order", "client_order_id", c.ClientOrderID)
		}
	default:
		x.log.Error("unknown command", "type", cmd.CommandType())
	}
}

// ---------------------------------------------------------------------------
// Market data intake
// ---------------------------------------------------------------------------

// ProcessQuoteTick commits due commands, then applies the quote.
func (x *SimulatedExchange) ProcessQuoteTick(q domain.QuoteTick) {
	x.Process(q.TsEvent)
	if eng, ok := x.engines[q.InstrumentID]; ok {
		eng.OnQuoteTick(q)
	}
}

// ProcessTradeTick commits due commands, then applies the trade.
func (x *SimulatedExchange) ProcessTradeTick(t domain.TradeTick) {
	x.Process(t.TsEvent)
	if eng, ok := x.engines[t.InstrumentID]; ok {
		eng.OnTradeTick(t)
	}
}

// ProcessBar commits due commands, then replays the bar's OHLC path.
// Historical bars move the book exactly like live prints.
func (x *SimulatedExchange) ProcessBar(b domain.Bar) {
	x.Process(b.TsEvent)
	if eng, ok := x.engines[b.Type.InstrumentID]; ok {
		eng.OnBar(b)
	}
}

// ProcessOrderBookDelta commits due commands, then applies the delta.
func (x *SimulatedExchange) ProcessOrderBookDelta(d domain.OrderBookDelta) {
	x.Process(d.TsEvent)
	if eng, ok := x.engines[d.InstrumentID]; ok {
		eng.OnDelta(d)
	}
}

// ProcessOrderBookSnapshot commits due commands, then applies the snapshot.
func (x *SimulatedExchange) ProcessOrderBookSnapshot(s domain.OrderBookSnapshot) {
	x.Process(s.TsEvent)
	if eng, ok := x.engines[s.InstrumentID]; ok {
		eng.OnSnapshot(s)
	}
}

// ---------------------------------------------------------------------------
// Event routing and accounting
// ---------------------------------------------------------------------------

// routeEvent settles fills into the account and positions before forwarding
// every event to the external handler.
func (x *SimulatedExchange) routeEvent(ev domain.OrderEvent) {
	if fill, ok := ev.(domain.OrderFilled); ok {
		x.settleFill(fill)
	}
	if x.onEvent != nil {
		x.onEvent(ev)
	}
}

func (x *SimulatedExchange) settleFill(fill domain.OrderFilled) {
	inst, ok := x.instruments[fill.InstrumentID]
	if !ok {
		x.log.Error("fill for unknown instrument", "instrument", fill.InstrumentID.String())
		return
	}
	pos, exists := x.portfolio.Get(fill.PositionID)
	var before domain.Money
	if exists {
		before = pos.RealizedPnl()
		pos.ApplyFill(fill)
	} else {
		pos = account.NewPosition(inst, fill)
		before = domain.MoneyFromRaw(0, inst.QuoteCurrency)
		x.portfolio.Add(pos)
	}
	realizedDelta := pos.RealizedPnl().Sub(before)

	if err := x.acct.ApplyFill(inst, fill, realizedDelta); err != nil {
		x.log.Warn("fill not settled to account",
			"client_order_id", fill.ClientOrderID,
			"err", err)
	}
	if x.cfg.AccountType == domain.AccountTypeMargin {
		x.updateMarginLock(inst, fill.LastPx)
	}

	x.trades = append(x.trades, domain.TradeReport{
		AccountID:     fill.AccountID,
		InstrumentID:  fill.InstrumentID,
		ClientOrderID: fill.ClientOrderID,
		VenueOrderID:  fill.VenueOrderID,
		TradeID:       fill.TradeID,
		PositionID:    fill.PositionID,
		OrderSide:     fill.Side,
		LastQty:       fill.LastQty.String(),
		LastPx:        fill.LastPx.String(),
		Commission:    fill.Commission.String(),
		LiquiditySide: fill.LiquiditySide,
		TsEvent:       fill.TsEvent,
		TsInit:        fill.TsInit,
	})
}

// updateMarginLock re-marks the instrument's margin lock after a fill. The
// lock covers the total open quantity across the instrument's positions at
// the last fill price; going flat releases the lock.
func (x *SimulatedExchange) updateMarginLock(inst *domain.Instrument, px domain.Price) {
	var openRaw uint64
	for _, p := range x.portfolio.OpenForInstrument(inst.ID) {
		openRaw += p.Quantity().Raw
	}
	if openRaw == 0 {
		x.acct.UnlockMargin(inst.ID)
		return
	}
	required := x.acct.InitialMargin(inst, domain.QtyFromRaw(openRaw, inst.SizePrecision), px)
	if err := x.acct.LockMargin(inst.ID, required); err != nil {
		x.log.Warn("margin lock not updated",
			"instrument", inst.ID.String(),
			"required", required.String(),
			"err", err)
	}
}

// resolvePositionID honors the OMS type: NETTING reuses the strategy's open
// position on the instrument; HEDGING issues a fresh ID per order.
func (x *SimulatedExchange) resolvePositionID(instrumentID domain.InstrumentID, o *domain.Order) domain.PositionID {
	if o.PositionID != "" {
		return o.PositionID
	}
	if x.cfg.OmsType == domain.OmsTypeNetting {
		for _, p := range x.portfolio.OpenForInstrument(instrumentID) {
			if p.StrategyID == o.StrategyID {
				return p.ID
			}
		}
	}
	return x.ids.NextPositionID(instrumentID)
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// statusReport snapshots one order as a status report.
func (x *SimulatedExchange) statusReport(o *domain.Order) domain.OrderStatusReport {
	r := domain.OrderStatusReport{
		AccountID:     x.acct.ID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
		OrderSide:     o.Side,
		OrderType:     o.Type,
		TimeInForce:   o.TimeInForce,
		OrderStatus:   o.Status(),
		Quantity:      o.Quantity.String(),
		FilledQty:     o.FilledQty.String(),
		LeavesQty:     o.LeavesQty().String(),
		PostOnly:      o.PostOnly,
		ReduceOnly:    o.ReduceOnly,
		ExpireTimeNs:  o.ExpireTimeNs,
		TsLast:        o.TsLast,
		TsInit:        x.nowNs,
	}
	if !o.Price.IsZero() {
		r.Price = o.Price.String()
	}
	if !o.TriggerPrice.IsZero() {
		r.TriggerPrice = o.TriggerPrice.String()
	}
	if o.FilledQty.IsPositive() {
		if inst, ok := x.instruments[o.InstrumentID]; ok {
			r.AvgPx = domain.NewPrice(o.AvgPx, inst.PricePrecision).String()
		}
	}
	for _, ev := range o.Events() {
		if _, ok := ev.(domain.OrderAccepted); ok {
			r.TsAccepted = ev.EventTsEvent()
			break
		}
	}
	return r
}

// OrderStatusReports snapshots every order the venue has seen.
func (x *SimulatedExchange) OrderStatusReports() []domain.OrderStatusReport {
	var out []domain.OrderStatusReport
	for _, id := range x.instrumentSeq {
		for _, o := range x.engines[id].Orders() {
			out = append(out, x.statusReport(o))
		}
	}
	return out
}

// TradeReports returns every fill the venue has produced.
func (x *SimulatedExchange) TradeReports() []domain.TradeReport {
	out := make([]domain.TradeReport, len(x.trades))
	copy(out, x.trades)
	return out
}

// PositionStatusReports snapshots every position.
func (x *SimulatedExchange) PositionStatusReports() []domain.PositionStatusReport {
	positions := x.portfolio.All()
	out := make([]domain.PositionStatusReport, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Report(x.nowNs))
	}
	return out
}

// GenerateMassStatus aggregates order, trade, and position reports.
func (x *SimulatedExchange) GenerateMassStatus() domain.ExecutionMassStatus {
	return domain.ExecutionMassStatus{
		AccountID:       x.acct.ID,
		Venue:           x.cfg.Venue,
		OrderReports:    x.OrderStatusReports(),
		TradeReports:    x.TradeReports(),
		PositionReports: x.PositionStatusReports(),
		TsInit:          x.nowNs,
	}
}

// OpenOrders returns every working order across instruments.
func (x *SimulatedExchange) OpenOrders() []*domain.Order {
	var out []*domain.Order
	for _, id := range x.instrumentSeq {
		out = append(out, x.engines[id].OpenOrders()...)
	}
	return out
}

// Reset returns the venue to its initial state: books and orders cleared,
// inflight queue drained, counters rewound, account re-funded, positions
// dropped. Instrument registrations survive.
func (x *SimulatedExchange) Reset() {
	for _, id := range x.instrumentSeq {
		x.engines[id].Reset()
	}
	x.inflight.reset()
	x.ids.Reset()
	x.portfolio.Reset()
	x.initAccount()
	x.trades = nil
	x.nowNs = 0
}
