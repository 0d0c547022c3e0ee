package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for venue-side refusals and lookups. Runtime refusals on
// live orders are reported as events; these errors surface only where a
// caller violated a contract or referenced something unknown.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrAccountFrozen      = errors.New("account is frozen")
	ErrInsufficientDepth  = errors.New("insufficient depth")
)

// ValidationError reports an input that violates a construction contract
// (negative quantity, GTD without expiry, display quantity above total,
// wrong price precision). It is raised synchronously with no state change.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidStateTrigger reports an order event that is not a legal transition
// from the order's current status. The order is left unchanged.
type InvalidStateTrigger struct {
	Status  OrderStatus
	Trigger OrderStatus
}

func (e *InvalidStateTrigger) Error() string {
	return fmt.Sprintf("invalid state trigger: %s -> %s", e.Status, e.Trigger)
}

// ConfigurationError reports missing setup (unregistered instrument or
// client) detected at wiring time. It is fatal to the run.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// RiskError reports a pre-trade refusal. The order never reaches the venue;
// it is denied locally with an ORDER_DENIED event.
type RiskError struct {
	Message string
}

func (e *RiskError) Error() string { return e.Message }

// RiskDeniedf builds a RiskError from a format string.
func RiskDeniedf(format string, args ...any) *RiskError {
	return &RiskError{Message: fmt.Sprintf(format, args...)}
}
