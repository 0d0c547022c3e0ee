package util

import "time"

// sessionOpen and sessionClose are the regular US equity session bounds in
// exchange-local time (America/New_York).
const (
	sessionOpenHour   = 9
	sessionOpenMinute = 30
	sessionCloseHour  = 16
)

// TradingCalendar provides regular-session awareness for US equities.
// Exchange holidays and half days are not modeled; only weekends and
// session hours are.
type TradingCalendar struct {
	loc *time.Location
}

// NewTradingCalendar creates a TradingCalendar pinned to exchange-local time.
func NewTradingCalendar() *TradingCalendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fall back to a fixed offset (EST) when tzdata is unavailable.
		loc = time.FixedZone("EST", -5*60*60)
	}
	return &TradingCalendar{loc: loc}
}

// IsTradingDay reports whether t falls on a weekday.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.In(tc.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// IsMarketOpen reports whether the regular session is open at time t.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	local := t.In(tc.loc)
	if !tc.IsTradingDay(local) {
		return false
	}
	open := tc.sessionOpen(local)
	close := tc.sessionClose(local)
	return !local.Before(open) && local.Before(close)
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	local := t.In(tc.loc)
	for {
		open := tc.sessionOpen(local)
		if tc.IsTradingDay(local) && !open.Before(local) {
			return open
		}
		local = open.AddDate(0, 0, 1)
	}
}

// NextClose returns the next session close at or after t.
func (tc *TradingCalendar) NextClose(t time.Time) time.Time {
	local := t.In(tc.loc)
	for {
		close := tc.sessionClose(local)
		if tc.IsTradingDay(local) && !local.After(close) {
			return close
		}
		local = tc.sessionOpen(local).AddDate(0, 0, 1)
	}
}

func (tc *TradingCalendar) sessionOpen(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, tc.loc)
}

func (tc *TradingCalendar) sessionClose(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), sessionCloseHour, 0, 0, 0, tc.loc)
}
