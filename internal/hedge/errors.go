package hedge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPositionNotFound = errors.New("no short position")
	ErrNoPrice          = errors.New("no price for asset")
	ErrMinTradeSize     = errors.New("change in notional under minimum trade size")
	ErrInvalidPosition  = errors.New("invalid position")
)

// ErrAlreadyBalanced is returned when current and target leverage are equal.
// It matches ErrMinTradeSize as well since the resulting trade is empty.
var ErrAlreadyBalanced = fmt.Errorf("%w: position already at target leverage", ErrMinTradeSize)

// ExchangeCallError wraps a failed facade call with the call name and its
// arguments.
type ExchangeCallError struct {
	Exchange string
	Call     string
	Args     []any
	Err      error
}

func (e *ExchangeCallError) Error() string {
	args := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		args = append(args, fmt.Sprint(arg))
	}
	return fmt.Sprintf("%s %s(%s): %v", e.Exchange, e.Call, strings.Join(args, ", "), e.Err)
}

func (e *ExchangeCallError) Unwrap() error {
	return e.Err
}

func positionNotFound(symbol string) error {
	return fmt.Errorf("%w for %s", ErrPositionNotFound, symbol)
}

func noPrice(symbol string) error {
	return fmt.Errorf("%w %s", ErrNoPrice, symbol)
}
