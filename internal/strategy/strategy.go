// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"sort"

	"tradesim/internal/domain"
)

// Strategy is the interface that all trading strategies must implement.
// Handlers are invoked from the backtest loop's single goroutine; the
// Context gives the strategy its handle on the simulated venue.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the strategy begins
	// processing market data.
	Init(ctx *Context) error

	// OnBar is called when a new OHLCV bar is available.
	OnBar(ctx *Context, bar domain.Bar) error

	// OnQuoteTick is called when a new top-of-book quote is available.
	OnQuoteTick(ctx *Context, quote domain.QuoteTick) error

	// OnTradeTick is called when a new trade print is available.
	OnTradeTick(ctx *Context, trade domain.TradeTick) error

	// OnEvent is called for every order event the venue emits for this
	// strategy's orders.
	OnEvent(ctx *Context, ev domain.OrderEvent) error

	// Stop is called once after the last data element has been replayed.
	Stop(ctx *Context) error
}

// BaseStrategy provides no-op implementations of every handler except Name.
// Strategies embed it and override only the handlers they care about.
type BaseStrategy struct{}

// Init implements Strategy.
func (BaseStrategy) Init(*Context) error { return nil }

// OnBar implements Strategy.
func (BaseStrategy) OnBar(*Context, domain.Bar) error { return nil }

// OnQuoteTick implements Strategy.
func (BaseStrategy) OnQuoteTick(*Context, domain.QuoteTick) error { return nil }

// OnTradeTick implements Strategy.
func (BaseStrategy) OnTradeTick(*Context, domain.TradeTick) error { return nil }

// OnEvent implements Strategy.
func (BaseStrategy) OnEvent(*Context, domain.OrderEvent) error { return nil }

// Stop implements Strategy.
func (BaseStrategy) Stop(*Context) error { return nil }

// Factory builds a strategy instance from its string parameters.
type Factory func(params map[string]string) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a strategy factory by name. The second return value indicates
// whether the factory was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
