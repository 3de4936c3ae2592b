package hedge

import (
	"fmt"
	"math"
)

const DefaultMinTradeNotional = 10.0

type Direction string

const (
	IncreaseLeverage Direction = "increase-leverage"
	DecreaseLeverage Direction = "decrease-leverage"
)

type MarginSide string

const (
	MarginAdd    MarginSide = "add"
	MarginRemove MarginSide = "remove"
)

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type StepKind string

const (
	StepMargin StepKind = "margin"
	StepOrder  StepKind = "order"
)

type MarginStep struct {
	Side    MarginSide
	Current float64
	Target  float64
	Amount  float64
	// CapToFreeBalance marks an add whose Amount is an upper bound; the
	// executed transfer is floor(min(Amount, free balance)).
	CapToFreeBalance bool
}

type NotionalStep struct {
	Side       OrderSide
	Current    float64
	Target     float64
	Amount     float64
	Size       float64
	ReduceOnly bool
}

type Plan struct {
	Symbol          string
	Direction       Direction
	CurrentLeverage float64
	TargetLeverage  float64
	MarkPrice       float64
	Margin          MarginStep
	Notional        NotionalStep
}

// Steps returns the execution order. Raising leverage frees margin before
// growing the short; lowering it buys back first and then tops up margin.
func (p Plan) Steps() []StepKind {
	if p.Direction == IncreaseLeverage {
		return []StepKind{StepMargin, StepOrder}
	}
	return []StepKind{StepOrder, StepMargin}
}

type Planner struct {
	MinTradeNotional float64
}

func NewPlanner(minTradeNotional float64) Planner {
	if minTradeNotional <= 0 {
		minTradeNotional = DefaultMinTradeNotional
	}
	return Planner{MinTradeNotional: minTradeNotional}
}

// Plan computes the adjustments that bring pos back to its opening leverage.
// A non-positive markPrice is treated as absent.
func (p Planner) Plan(pos Position, markPrice float64) (Plan, error) {
	if !positiveFinite(pos.Margin) || !positiveFinite(pos.Notional) {
		return Plan{}, fmt.Errorf("%w: %s notional %v margin %v", ErrInvalidPosition, pos.Symbol, pos.Notional, pos.Margin)
	}
	if !positiveFinite(pos.Leverage.Start) {
		return Plan{}, fmt.Errorf("%w: %s target leverage %v", ErrInvalidPosition, pos.Symbol, pos.Leverage.Start)
	}
	if !positiveFinite(markPrice) {
		return Plan{}, noPrice(pos.Symbol)
	}
	minNotional := p.MinTradeNotional
	if !positiveFinite(minNotional) {
		minNotional = DefaultMinTradeNotional
	}

	target := pos.Leverage.Start
	current := pos.CurrentLeverage()
	plan := Plan{
		Symbol:          pos.Symbol,
		CurrentLeverage: current,
		TargetLeverage:  target,
		MarkPrice:       markPrice,
	}
	if target == current {
		return Plan{}, ErrAlreadyBalanced
	}

	if target > current {
		targetMargin := pos.Notional / target
		deltaMargin := math.Floor(pos.Margin - targetMargin)
		deltaNotional := deltaMargin * target
		if !(deltaNotional >= minNotional) {
			return Plan{}, ErrMinTradeSize
		}
		plan.Direction = IncreaseLeverage
		plan.Margin = MarginStep{
			Side:    MarginRemove,
			Current: pos.Margin,
			Target:  targetMargin,
			Amount:  deltaMargin,
		}
		plan.Notional = NotionalStep{
			Side:    SideSell,
			Current: pos.Notional,
			Target:  pos.Notional + deltaNotional,
			Amount:  deltaNotional,
			Size:    deltaNotional / markPrice,
		}
		return plan, nil
	}

	targetNotional := pos.Margin * target
	deltaNotional := math.Floor(pos.Notional - targetNotional)
	if !(deltaNotional >= minNotional) {
		return Plan{}, ErrMinTradeSize
	}
	marginCap := targetNotional / current
	plan.Direction = DecreaseLeverage
	plan.Notional = NotionalStep{
		Side:       SideBuy,
		Current:    pos.Notional,
		Target:     targetNotional,
		Amount:     deltaNotional,
		Size:       deltaNotional / markPrice,
		ReduceOnly: true,
	}
	plan.Margin = MarginStep{
		Side:             MarginAdd,
		Current:          pos.Margin,
		Target:           pos.Margin + marginCap,
		Amount:           marginCap,
		CapToFreeBalance: true,
	}
	return plan, nil
}

// positiveFinite is false for NaN and both infinities.
func positiveFinite(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

// MarginToAdd resolves a capped add against the free balance.
func (s MarginStep) MarginToAdd(freeBalance float64) float64 {
	amount := s.Amount
	if s.CapToFreeBalance {
		amount = math.Min(amount, freeBalance)
	}
	if amount <= 0 {
		return 0
	}
	return math.Floor(amount)
}
