package hedge

type LeverageReport struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
}

type StepReport struct {
	Current float64      `json:"current"`
	Target  float64      `json:"target"`
	Change  float64      `json:"change"`
	Side    string       `json:"side"`
	Order   *OrderResult `json:"order,omitempty"`
}

type Report struct {
	Symbol    string         `json:"symbol"`
	Direction Direction      `json:"direction"`
	Leverage  LeverageReport `json:"leverage"`
	Margin    *StepReport    `json:"margin,omitempty"`
	Notional  *StepReport    `json:"notional,omitempty"`
}

func newReport(plan Plan) Report {
	return Report{
		Symbol:    plan.Symbol,
		Direction: plan.Direction,
		Leverage: LeverageReport{
			Current: plan.CurrentLeverage,
			Target:  plan.TargetLeverage,
		},
	}
}
