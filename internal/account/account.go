package account

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"duncan/internal/hedge"
	"duncan/internal/hl/rest"

	"go.uber.org/zap"
)

const defaultQuoteAsset = "USDC"

// Account reads the perp clearinghouse state of one user.
type Account struct {
	rest  *rest.Client
	log   *zap.Logger
	user  string
	quote string

	mu        sync.RWMutex
	lastState map[string]any
}

func New(restClient *rest.Client, log *zap.Logger, user, quoteAsset string) *Account {
	if log == nil {
		log = zap.NewNop()
	}
	quoteAsset = strings.TrimSpace(quoteAsset)
	if quoteAsset == "" {
		quoteAsset = defaultQuoteAsset
	}
	return &Account{rest: restClient, log: log, user: strings.TrimSpace(user), quote: quoteAsset}
}

func (a *Account) User() string {
	return a.user
}

func (a *Account) clearinghouseState(ctx context.Context) (map[string]any, error) {
	if a.rest == nil {
		return nil, errors.New("rest client is required")
	}
	if a.user == "" {
		return nil, errors.New("account user is required")
	}
	state, err := a.rest.Info(ctx, rest.InfoRequest{Type: "clearinghouseState", User: a.user})
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.lastState = state
	a.mu.Unlock()
	return state, nil
}

// Balance reports the withdrawable quote balance.
func (a *Account) Balance(ctx context.Context) (hedge.Balance, error) {
	state, err := a.clearinghouseState(ctx)
	if err != nil {
		return hedge.Balance{}, err
	}
	return parseBalance(state, a.quote), nil
}

// ShortPosition returns the open short on asset. Flat and long positions
// report ok=false.
func (a *Account) ShortPosition(ctx context.Context, asset string) (hedge.Position, bool, error) {
	state, err := a.clearinghouseState(ctx)
	if err != nil {
		return hedge.Position{}, false, err
	}
	pos, ok := parsePositions(state)[asset]
	if !ok || !pos.short {
		return hedge.Position{}, false, nil
	}
	return pos.Position, true, nil
}

// LastState returns the most recent raw clearinghouseState payload.
func (a *Account) LastState() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastState
}

type parsedPosition struct {
	hedge.Position
	short bool
}

func parseBalance(payload map[string]any, quote string) hedge.Balance {
	amount, _ := floatFromAny(payload["withdrawable"])
	return hedge.Balance{Amount: amount, Symbol: quote}
}

func parsePositions(payload map[string]any) map[string]parsedPosition {
	positions := make(map[string]parsedPosition)
	if payload == nil {
		return positions
	}
	raw, ok := payload["assetPositions"].([]any)
	if !ok || len(raw) == 0 {
		return positions
	}
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pos := entry
		if nested, ok := entry["position"].(map[string]any); ok {
			pos = nested
		}
		asset := stringFromAny(pos["coin"])
		if asset == "" {
			continue
		}
		szi, _ := floatFromAny(pos["szi"])
		notional, _ := floatFromAny(pos["positionValue"])
		margin, _ := floatFromAny(pos["marginUsed"])
		pnl, _ := floatFromAny(pos["unrealizedPnl"])
		positions[asset] = parsedPosition{
			Position: hedge.Position{
				Symbol:   asset,
				Notional: notional,
				Size:     -math.Abs(szi),
				Margin:   margin,
				PnL:      pnl,
				Leverage: hedge.Leverage{
					Start:   leverageValue(pos["leverage"]),
					Current: roundedLeverage(notional, margin),
				},
			},
			short: szi < 0,
		}
	}
	return positions
}

func leverageValue(v any) float64 {
	switch val := v.(type) {
	case map[string]any:
		f, _ := floatFromAny(val["value"])
		return f
	default:
		f, _ := floatFromAny(val)
		return f
	}
}

func roundedLeverage(notional, margin float64) float64 {
	if margin == 0 {
		return 0
	}
	return math.Round(notional*100/margin) / 100
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
