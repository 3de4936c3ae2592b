package hedge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"duncan/internal/metrics"

	"go.uber.org/zap"
)

var ErrInvalidAmount = errors.New("amount must be > 0")

// Manager runs hedge operations against a single exchange network. It does
// not serialize calls; callers must not rebalance one symbol concurrently.
type Manager struct {
	exchange Exchange
	planner  Planner
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewManager(exchange Exchange, planner Planner, log *zap.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Manager{exchange: exchange, planner: planner, log: log, metrics: m}
}

func (m *Manager) Balance(ctx context.Context) (Balance, error) {
	return m.exchange.FetchBalance(ctx)
}

func (m *Manager) Price(ctx context.Context, symbol string) (float64, error) {
	price, ok, err := m.exchange.FetchMarkPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, noPrice(symbol)
	}
	return price, nil
}

func (m *Manager) Info(ctx context.Context, symbol string) (Position, error) {
	return m.requirePosition(ctx, symbol)
}

// Increase grows the short by floor(amount) asset units.
func (m *Manager) Increase(ctx context.Context, symbol string, amount float64) (OrderResult, error) {
	amount = math.Floor(amount)
	if amount <= 0 {
		return OrderResult{}, ErrInvalidAmount
	}
	if _, err := m.requirePosition(ctx, symbol); err != nil {
		return OrderResult{}, err
	}
	return m.sell(ctx, symbol, amount)
}

// Decrease buys back floor(amount) asset units, reduce-only.
func (m *Manager) Decrease(ctx context.Context, symbol string, amount float64) (OrderResult, error) {
	amount = math.Floor(amount)
	if amount <= 0 {
		return OrderResult{}, ErrInvalidAmount
	}
	if _, err := m.requirePosition(ctx, symbol); err != nil {
		return OrderResult{}, err
	}
	return m.buy(ctx, symbol, amount)
}

func (m *Manager) AddMargin(ctx context.Context, symbol string, amount float64) (Position, error) {
	if amount <= 0 {
		return Position{}, ErrInvalidAmount
	}
	if _, err := m.requirePosition(ctx, symbol); err != nil {
		return Position{}, err
	}
	return m.transferMargin(ctx, symbol, MarginAdd, amount)
}

func (m *Manager) RemoveMargin(ctx context.Context, symbol string, amount float64) (Position, error) {
	if amount <= 0 {
		return Position{}, ErrInvalidAmount
	}
	if _, err := m.requirePosition(ctx, symbol); err != nil {
		return Position{}, err
	}
	return m.transferMargin(ctx, symbol, MarginRemove, amount)
}

// Rebalance restores the position's opening leverage. Steps are not atomic:
// when a later step fails the earlier ones stay applied and no report is
// returned.
func (m *Manager) Rebalance(ctx context.Context, symbol string) (Report, error) {
	report, err := m.rebalance(ctx, symbol)
	switch {
	case err == nil:
		m.metrics.RebalancesExecuted.Inc()
	case errors.Is(err, ErrMinTradeSize):
		m.metrics.RebalancesSkipped.Inc()
	default:
		m.metrics.RebalancesFailed.Inc()
	}
	return report, err
}

func (m *Manager) rebalance(ctx context.Context, symbol string) (Report, error) {
	pos, err := m.requirePosition(ctx, symbol)
	if err != nil {
		return Report{}, err
	}
	price, err := m.Price(ctx, symbol)
	if err != nil {
		return Report{}, err
	}
	plan, err := m.planner.Plan(pos, price)
	if err != nil {
		return Report{}, err
	}
	m.log.Info("rebalance planned",
		zap.String("symbol", symbol),
		zap.String("direction", string(plan.Direction)),
		zap.Float64("leverage_current", plan.CurrentLeverage),
		zap.Float64("leverage_target", plan.TargetLeverage),
		zap.Float64("delta_margin", plan.Margin.Amount),
		zap.Float64("delta_notional", plan.Notional.Amount),
		zap.Float64("mark_price", price),
	)

	report := newReport(plan)
	var done []StepKind
	for _, step := range plan.Steps() {
		switch step {
		case StepMargin:
			stepReport, err := m.applyMarginStep(ctx, plan)
			if err != nil {
				m.logPartial(symbol, step, done, err)
				return Report{}, err
			}
			report.Margin = stepReport
		case StepOrder:
			stepReport, err := m.applyOrderStep(ctx, plan)
			if err != nil {
				m.logPartial(symbol, step, done, err)
				return Report{}, err
			}
			report.Notional = stepReport
		}
		done = append(done, step)
	}
	return report, nil
}

func (m *Manager) applyMarginStep(ctx context.Context, plan Plan) (*StepReport, error) {
	step := plan.Margin
	amount := step.Amount
	target := step.Target
	if step.CapToFreeBalance {
		balance, err := m.exchange.FetchBalance(ctx)
		if err != nil {
			return nil, err
		}
		amount = step.MarginToAdd(balance.Amount)
		target = step.Current + amount
	}
	stepReport := &StepReport{
		Current: step.Current,
		Target:  target,
		Change:  amount,
		Side:    string(step.Side),
	}
	if amount <= 0 {
		m.log.Warn("margin step skipped: no free balance", zap.String("symbol", plan.Symbol))
		return stepReport, nil
	}
	if _, err := m.transferMargin(ctx, plan.Symbol, step.Side, amount); err != nil {
		return nil, err
	}
	return stepReport, nil
}

func (m *Manager) applyOrderStep(ctx context.Context, plan Plan) (*StepReport, error) {
	step := plan.Notional
	var (
		order OrderResult
		err   error
	)
	if step.Side == SideBuy {
		order, err = m.buy(ctx, plan.Symbol, step.Size)
	} else {
		order, err = m.sell(ctx, plan.Symbol, step.Size)
	}
	if err != nil {
		return nil, err
	}
	return &StepReport{
		Current: step.Current,
		Target:  step.Target,
		Change:  step.Amount,
		Side:    string(step.Side),
		Order:   &order,
	}, nil
}

func (m *Manager) requirePosition(ctx context.Context, symbol string) (Position, error) {
	pos, ok, err := m.exchange.FetchPosition(ctx, symbol)
	if err != nil {
		return Position{}, err
	}
	if !ok {
		return Position{}, positionNotFound(symbol)
	}
	return pos, nil
}

func (m *Manager) sell(ctx context.Context, symbol string, size float64) (OrderResult, error) {
	order, err := m.exchange.MarketSell(ctx, symbol, size)
	m.countOrder(err)
	return order, err
}

func (m *Manager) buy(ctx context.Context, symbol string, size float64) (OrderResult, error) {
	order, err := m.exchange.MarketBuy(ctx, symbol, size, BuyOptions{ReduceOnly: true})
	m.countOrder(err)
	return order, err
}

func (m *Manager) transferMargin(ctx context.Context, symbol string, side MarginSide, amount float64) (Position, error) {
	var (
		pos Position
		err error
	)
	switch side {
	case MarginAdd:
		pos, err = m.exchange.AddMargin(ctx, symbol, amount)
	case MarginRemove:
		pos, err = m.exchange.RemoveMargin(ctx, symbol, amount)
	default:
		return Position{}, fmt.Errorf("unknown margin side %q", side)
	}
	if err == nil {
		m.metrics.MarginTransfers.Inc()
	}
	return pos, err
}

func (m *Manager) countOrder(err error) {
	if err != nil {
		m.metrics.OrdersFailed.Inc()
		return
	}
	m.metrics.OrdersPlaced.Inc()
}

func (m *Manager) logPartial(symbol string, failed StepKind, done []StepKind, err error) {
	completed := make([]string, 0, len(done))
	for _, step := range done {
		completed = append(completed, string(step))
	}
	m.log.Error("rebalance step failed",
		zap.String("symbol", symbol),
		zap.String("failed_step", string(failed)),
		zap.Strings("completed_steps", completed),
		zap.Error(err),
	)
}
