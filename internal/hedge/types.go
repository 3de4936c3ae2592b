package hedge

import "context"

type Leverage struct {
	Start   float64 `json:"start"`
	Current float64 `json:"current"`
}

// Position is a snapshot of a short perp position. It is fetched per
// operation and goes stale after every order or margin transfer.
type Position struct {
	Symbol   string   `json:"symbol"`
	Notional float64  `json:"notional"`
	Size     float64  `json:"size"`
	Margin   float64  `json:"margin"`
	PnL      float64  `json:"pnl"`
	Leverage Leverage `json:"leverage"`
}

// CurrentLeverage recomputes notional / margin; Leverage.Current is only a
// display value rounded at the exchange boundary.
func (p Position) CurrentLeverage() float64 {
	return p.Notional / p.Margin
}

type Balance struct {
	Amount float64 `json:"amount"`
	Symbol string  `json:"symbol"`
}

type OrderResult struct {
	Size      float64 `json:"size"`
	FillPrice float64 `json:"fillPrice"`
	OrderID   string  `json:"orderId"`
}

type BuyOptions struct {
	ReduceOnly bool
	// Slippage is a fraction of the mark price; zero selects the exchange default.
	Slippage float64
}

// Exchange is the perp exchange facade. FetchPosition only returns short
// positions; ok is false when the account has none for the symbol.
type Exchange interface {
	FetchMarkPrice(ctx context.Context, symbol string) (price float64, ok bool, err error)
	FetchBalance(ctx context.Context) (Balance, error)
	FetchPosition(ctx context.Context, symbol string) (pos Position, ok bool, err error)
	MarketBuy(ctx context.Context, symbol string, amount float64, opts BuyOptions) (OrderResult, error)
	MarketSell(ctx context.Context, symbol string, amount float64) (OrderResult, error)
	AddMargin(ctx context.Context, symbol string, amount float64) (Position, error)
	RemoveMargin(ctx context.Context, symbol string, amount float64) (Position, error)
}
