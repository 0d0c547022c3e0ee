package account

import (
	"sort"

	"tradesim/internal/domain"
)

// Balance is the (total, locked, free) triple for one currency. The
// invariant free = total - locked holds after every mutation.
type Balance struct {
	Total  domain.Money
	Locked domain.Money
	Free   domain.Money
}

// Account tracks per-currency balances, margin locks, and per-instrument
// leverage for one venue account. A frozen account refuses all balance
// mutations with ErrAccountFrozen.
type Account struct {
	ID   domain.AccountID
	Type domain.AccountType

	balances        map[string]Balance
	locks           map[domain.InstrumentID]domain.Money
	leverages       map[domain.InstrumentID]float64
	defaultLeverage float64
	frozen          bool
}

// NewAccount creates an account funded with the starting balances.
func NewAccount(id domain.AccountID, accountType domain.AccountType, starting []domain.Money) *Account {
	a := &Account{
		ID:              id,
		Type:            accountType,
		balances:        make(map[string]Balance),
		locks:           make(map[domain.InstrumentID]domain.Money),
		leverages:       make(map[domain.InstrumentID]float64),
		defaultLeverage: 1,
	}
	for _, m := range starting {
		a.balances[m.Currency.Code] = Balance{
			Total:  m,
			Locked: domain.MoneyFromRaw(0, m.Currency),
			Free:   m,
		}
	}
	return a
}

// Balance returns the balance for a currency.
func (a *Account) Balance(c domain.Currency) (Balance, bool) {
	b, ok := a.balances[c.Code]
	return b, ok
}

// Balances returns all balances in currency-code order.
func (a *Account) Balances() []Balance {
	codes := make([]string, 0, len(a.balances))
	for code := range a.balances {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]Balance, 0, len(codes))
	for _, code := range codes {
		out = append(out, a.balances[code])
	}
	return out
}

// ApplyDelta adjusts the total balance of the delta's currency. A negative
// delta must be covered by the free balance.
func (a *Account) ApplyDelta(delta domain.Money) error {
	if a.frozen {
		return domain.ErrAccountFrozen
	}
	b, ok := a.balances[delta.Currency.Code]
	if !ok {
		zero := domain.MoneyFromRaw(0, delta.Currency)
		b = Balance{Total: zero, Locked: zero, Free: zero}
	}
	if delta.Raw < 0 && b.Free.Raw < -delta.Raw {
		return domain.Validationf("insufficient %s balance: free %s, delta %s",
			delta.Currency.Code, b.Free, delta)
	}
	b.Total = b.Total.Add(delta)
	b.Free = b.Total.Sub(b.Locked)
	a.balances[delta.Currency.Code] = b
	return nil
}

// LockMargin reserves margin for an instrument out of the free balance.
// Successive locks for the same instrument replace the previous lock.
func (a *Account) LockMargin(instrumentID domain.InstrumentID, amount domain.Money) error {
	if a.frozen {
		return domain.ErrAccountFrozen
	}
	b, ok := a.balances[amount.Currency.Code]
	if !ok {
		return domain.Validationf("no %s balance to lock against", amount.Currency.Code)
	}
	prev, hasPrev := a.locks[instrumentID]
	available := b.Free
	if hasPrev && prev.Currency.Code == amount.Currency.Code {
		available = available.Add(prev)
	}
	if available.Raw < amount.Raw {
		return domain.Validationf("insufficient free %s for margin: free %s, required %s",
			amount.Currency.Code, available, amount)
	}
	if hasPrev {
		a.releaseLock(prev)
	}
	b = a.balances[amount.Currency.Code]
	b.Locked = b.Locked.Add(amount)
	b.Free = b.Total.Sub(b.Locked)
	a.balances[amount.Currency.Code] = b
	a.locks[instrumentID] = amount
	return nil
}

// UnlockMargin releases the margin lock for an instrument.
func (a *Account) UnlockMargin(instrumentID domain.InstrumentID) {
	if lock, ok := a.locks[instrumentID]; ok {
		a.releaseLock(lock)
		delete(a.locks, instrumentID)
	}
}

func (a *Account) releaseLock(lock domain.Money) {
	b, ok := a.balances[lock.Currency.Code]
	if !ok {
		return
	}
	b.Locked = b.Locked.Sub(lock)
	b.Free = b.Total.Sub(b.Locked)
	a.balances[lock.Currency.Code] = b
}

// MarginLock returns the current margin lock for an instrument.
func (a *Account) MarginLock(instrumentID domain.InstrumentID) (domain.Money, bool) {
	m, ok := a.locks[instrumentID]
	return m, ok
}

// SetLeverage sets the leverage used for margin on one instrument.
func (a *Account) SetLeverage(instrumentID domain.InstrumentID, leverage float64) error {
	if leverage <= 0 {
		return domain.Validationf("leverage must be positive: %v", leverage)
	}
	a.leverages[instrumentID] = leverage
	return nil
}

// SetDefaultLeverage sets the leverage used when no per-instrument value is
// set.
func (a *Account) SetDefaultLeverage(leverage float64) error {
	if leverage <= 0 {
		return domain.Validationf("leverage must be positive: %v", leverage)
	}
	a.defaultLeverage = leverage
	return nil
}

// Leverage returns the effective leverage for an instrument.
func (a *Account) Leverage(instrumentID domain.InstrumentID) float64 {
	if l, ok := a.leverages[instrumentID]; ok {
		return l
	}
	return a.defaultLeverage
}

// InitialMargin computes the margin required to open qty at px, scaled down
// by leverage.
func (a *Account) InitialMargin(instrument *domain.Instrument, qty domain.Quantity, px domain.Price) domain.Money {
	notional := instrument.Notional(qty, px)
	return domain.NewMoney(notional.Float64()*instrument.MarginInit/a.Leverage(instrument.ID), instrument.QuoteCurrency)
}

// Freeze blocks all balance mutations until Unfreeze.
func (a *Account) Freeze() { a.frozen = true }

// Unfreeze re-enables balance mutations.
func (a *Account) Unfreeze() { a.frozen = false }

// IsFrozen reports whether the account refuses mutations.
func (a *Account) IsFrozen() bool { return a.frozen }

// ApplyFill settles a fill against the account. Cash accounts exchange base
// against quote; margin accounts book the realized PnL portion. Commission
// is charged in its own currency either way.
func (a *Account) ApplyFill(instrument *domain.Instrument, ev domain.OrderFilled, realized domain.Money) error {
	if a.frozen {
		return domain.ErrAccountFrozen
	}
	switch a.Type {
	case domain.AccountTypeCash:
		notional := instrument.Notional(ev.LastQty, ev.LastPx)
		base := domain.NewMoney(ev.LastQty.Float64(), instrument.BaseCurrency)
		if ev.Side == domain.OrderSideBuy {
			if err := a.ApplyDelta(notional.Neg()); err != nil {
				return err
			}
			if err := a.ApplyDelta(base); err != nil {
				return err
			}
		} else {
			if err := a.ApplyDelta(base.Neg()); err != nil {
				return err
			}
			if err := a.ApplyDelta(notional); err != nil {
				return err
			}
		}
	default:
		// Margin account: settle only the realized portion.
		if realized.Raw != 0 {
			if err := a.ApplyDelta(realized); err != nil {
				return err
			}
		}
	}
	if ev.Commission.Raw != 0 && a.Type == domain.AccountTypeCash {
		// Margin accounts already net commission inside realized PnL.
		if err := a.ApplyDelta(ev.Commission.Neg()); err != nil {
			return err
		}
	}
	return nil
}
