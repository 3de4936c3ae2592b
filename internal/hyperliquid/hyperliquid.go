// Package hyperliquid adapts the Hyperliquid REST and exchange clients to
// the hedge.Exchange interface.
package hyperliquid

import (
	"context"
	"errors"
	"fmt"

	"duncan/internal/account"
	"duncan/internal/hedge"
	"duncan/internal/hl/exchange"
	"duncan/internal/market"

	"go.uber.org/zap"
)

const Name = "hyperliquid"

type Options struct {
	Network      string
	SellSlippage float64
	BuySlippage  float64
}

// Exchange is one network's view of Hyperliquid.
type Exchange struct {
	network  string
	market   *market.MarketData
	account  *account.Account
	exchange *exchange.Client
	log      *zap.Logger

	sellSlippage float64
	buySlippage  float64
}

var _ hedge.Exchange = (*Exchange)(nil)

func New(md *market.MarketData, acct *account.Account, client *exchange.Client, opts Options, log *zap.Logger) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exchange{
		network:      opts.Network,
		market:       md,
		account:      acct,
		exchange:     client,
		log:          log.With(zap.String("exchange", Name), zap.String("network", opts.Network)),
		sellSlippage: opts.SellSlippage,
		buySlippage:  opts.BuySlippage,
	}
}

func (e *Exchange) Network() string {
	return e.network
}

func (e *Exchange) Market() *market.MarketData {
	return e.market
}

func (e *Exchange) FetchMarkPrice(ctx context.Context, symbol string) (float64, bool, error) {
	e.logCall("fetchMarkPrice", symbol)
	price, ok, err := e.market.MarkPrice(ctx, symbol)
	if err != nil {
		return 0, false, e.fail("fetchMarkPrice", err, symbol)
	}
	return price, ok, nil
}

func (e *Exchange) FetchBalance(ctx context.Context) (hedge.Balance, error) {
	e.logCall("fetchBalance")
	balance, err := e.account.Balance(ctx)
	if err != nil {
		return hedge.Balance{}, e.fail("fetchBalance", err)
	}
	return balance, nil
}

func (e *Exchange) FetchPosition(ctx context.Context, symbol string) (hedge.Position, bool, error) {
	e.logCall("fetchPosition", symbol)
	pos, ok, err := e.account.ShortPosition(ctx, symbol)
	if err != nil {
		return hedge.Position{}, false, e.fail("fetchPosition", err, symbol)
	}
	return pos, ok, nil
}

func (e *Exchange) MarketSell(ctx context.Context, symbol string, amount float64) (hedge.OrderResult, error) {
	e.logCall("marketSell", symbol, amount)
	order, err := e.marketOrder(ctx, symbol, amount, false, false, e.sellSlippage)
	if err != nil {
		return hedge.OrderResult{}, e.fail("marketSell", err, symbol, amount)
	}
	return order, nil
}

func (e *Exchange) MarketBuy(ctx context.Context, symbol string, amount float64, opts hedge.BuyOptions) (hedge.OrderResult, error) {
	e.logCall("marketBuy", symbol, amount)
	slippage := opts.Slippage
	if slippage <= 0 {
		slippage = e.buySlippage
	}
	order, err := e.marketOrder(ctx, symbol, amount, true, opts.ReduceOnly, slippage)
	if err != nil {
		return hedge.OrderResult{}, e.fail("marketBuy", err, symbol, amount)
	}
	return order, nil
}

func (e *Exchange) AddMargin(ctx context.Context, symbol string, amount float64) (hedge.Position, error) {
	e.logCall("addMargin", symbol, amount)
	pos, err := e.updateMargin(ctx, symbol, amount, true)
	if err != nil {
		return hedge.Position{}, e.fail("addMargin", err, symbol, amount)
	}
	return pos, nil
}

func (e *Exchange) RemoveMargin(ctx context.Context, symbol string, amount float64) (hedge.Position, error) {
	e.logCall("removeMargin", symbol, amount)
	pos, err := e.updateMargin(ctx, symbol, amount, false)
	if err != nil {
		return hedge.Position{}, e.fail("removeMargin", err, symbol, amount)
	}
	return pos, nil
}

// marketOrder emulates a market order with an IOC limit priced off the mark.
func (e *Exchange) marketOrder(ctx context.Context, symbol string, amount float64, isBuy, reduceOnly bool, slippage float64) (hedge.OrderResult, error) {
	if e.exchange == nil {
		return hedge.OrderResult{}, errors.New("exchange client is required")
	}
	perp, err := e.perp(ctx, symbol)
	if err != nil {
		return hedge.OrderResult{}, err
	}
	mark, ok, err := e.market.MarkPrice(ctx, symbol)
	if err != nil {
		return hedge.OrderResult{}, err
	}
	if !ok {
		return hedge.OrderResult{}, fmt.Errorf("%w %s", hedge.ErrNoPrice, symbol)
	}
	size := exchange.RoundSize(amount, perp.SzDecimals)
	if size <= 0 {
		return hedge.OrderResult{}, fmt.Errorf("order size %v rounds to zero at %d decimals", amount, perp.SzDecimals)
	}
	limit := exchange.MarketPrice(mark, slippage, isBuy, perp.SzDecimals)
	wire, err := exchange.LimitOrderWire(perp.Index, isBuy, size, limit, reduceOnly, exchange.TifIoc, exchange.NewCloid())
	if err != nil {
		return hedge.OrderResult{}, err
	}
	resp, err := e.exchange.PlaceOrder(ctx, wire)
	if err != nil {
		return hedge.OrderResult{}, err
	}
	fill, err := exchange.ParseFill(resp)
	if err != nil {
		return hedge.OrderResult{}, err
	}
	e.log.Info("order filled",
		zap.String("symbol", symbol),
		zap.Bool("buy", isBuy),
		zap.Float64("size", fill.TotalSize),
		zap.Float64("avg_price", fill.AvgPrice),
		zap.String("order_id", fill.OrderID),
	)
	return hedge.OrderResult{Size: fill.TotalSize, FillPrice: fill.AvgPrice, OrderID: fill.OrderID}, nil
}

func (e *Exchange) updateMargin(ctx context.Context, symbol string, amount float64, add bool) (hedge.Position, error) {
	if e.exchange == nil {
		return hedge.Position{}, errors.New("exchange client is required")
	}
	perp, err := e.perp(ctx, symbol)
	if err != nil {
		return hedge.Position{}, err
	}
	resp, err := e.exchange.UpdateIsolatedMargin(ctx, perp.Index, exchange.MarginNtli(amount, add))
	if err != nil {
		return hedge.Position{}, err
	}
	if err := exchange.CheckResponse(resp); err != nil {
		return hedge.Position{}, err
	}
	pos, ok, err := e.account.ShortPosition(ctx, symbol)
	if err != nil {
		return hedge.Position{}, err
	}
	if !ok {
		return hedge.Position{}, fmt.Errorf("%w for %s", hedge.ErrPositionNotFound, symbol)
	}
	return pos, nil
}

func (e *Exchange) perp(ctx context.Context, symbol string) (market.PerpContext, error) {
	perp, ok, err := e.market.PerpContext(ctx, symbol)
	if err != nil {
		return market.PerpContext{}, err
	}
	if !ok {
		return market.PerpContext{}, fmt.Errorf("unknown perp %s", symbol)
	}
	return perp, nil
}

func (e *Exchange) logCall(call string, args ...any) {
	e.log.Debug("exchange call", zap.String("call", call), zap.Any("args", args))
}

func (e *Exchange) fail(call string, err error, args ...any) error {
	e.log.Warn("exchange call failed", zap.String("call", call), zap.Any("args", args), zap.Error(err))
	return &hedge.ExchangeCallError{Exchange: Name, Call: call, Args: args, Err: err}
}
