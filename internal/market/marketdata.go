package market

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"duncan/internal/hl/rest"
	"duncan/internal/hl/ws"

	"go.uber.org/zap"
)

const (
	defaultRefreshWindow = 5 * time.Second
	defaultMarkMaxAge    = 10 * time.Second
)

type PerpContext struct {
	Name        string
	Index       int
	SzDecimals  int
	MaxLeverage int
	Delisted    bool
	FundingRate float64
	OraclePrice float64
	MarkPrice   float64
}

type markQuote struct {
	price float64
	at    time.Time
}

// MarketData caches perp metadata from metaAndAssetCtxs. Mark prices pushed
// over the websocket take precedence while they are fresh.
type MarketData struct {
	rest *rest.Client
	ws   *ws.Client
	log  *zap.Logger
	now  func() time.Time

	mu               sync.RWMutex
	perpCtx          map[string]PerpContext
	marks            map[string]markQuote
	lastCtxRefresh   time.Time
	ctxRefreshWindow time.Duration
	markMaxAge       time.Duration
}

func New(restClient *rest.Client, wsClient *ws.Client, log *zap.Logger) *MarketData {
	if log == nil {
		log = zap.NewNop()
	}
	return &MarketData{
		rest:             restClient,
		ws:               wsClient,
		log:              log,
		now:              time.Now,
		perpCtx:          make(map[string]PerpContext),
		marks:            make(map[string]markQuote),
		ctxRefreshWindow: defaultRefreshWindow,
		markMaxAge:       defaultMarkMaxAge,
	}
}

func (m *MarketData) SetRefreshWindow(window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if window > 0 {
		m.ctxRefreshWindow = window
	}
}

// Watch subscribes to activeAssetCtx for each asset and keeps their mark
// prices current until ctx is done.
func (m *MarketData) Watch(ctx context.Context, assets []string) error {
	if m.ws == nil || len(assets) == 0 {
		return nil
	}
	for _, asset := range assets {
		if err := m.ws.Subscribe(ctx, ws.Subscription{Type: "activeAssetCtx", Coin: asset}); err != nil {
			return err
		}
	}
	go func() {
		if err := m.ws.Run(ctx, m.handleMessage); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Warn("mark price stream stopped", zap.Error(err))
		}
	}()
	return nil
}

func (m *MarketData) RefreshContexts(ctx context.Context) error {
	if m.rest == nil {
		return errors.New("rest client is required")
	}
	if !m.shouldRefresh() {
		return nil
	}
	resp, err := m.rest.InfoAny(ctx, rest.InfoRequest{Type: "metaAndAssetCtxs"})
	if err != nil {
		return err
	}
	perpCtx, err := parsePerpContexts(resp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.perpCtx = perpCtx
	m.lastCtxRefresh = m.now().UTC()
	m.mu.Unlock()
	return nil
}

func (m *MarketData) shouldRefresh() bool {
	m.mu.RLock()
	last := m.lastCtxRefresh
	window := m.ctxRefreshWindow
	m.mu.RUnlock()
	if last.IsZero() {
		return true
	}
	return m.now().Sub(last) >= window
}

// PerpContext returns the metadata of asset, refreshing the cache when stale.
func (m *MarketData) PerpContext(ctx context.Context, asset string) (PerpContext, bool, error) {
	if err := m.RefreshContexts(ctx); err != nil {
		return PerpContext{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	perp, ok := m.perpCtx[asset]
	return perp, ok, nil
}

// MarkPrice reports ok=false when the asset is not listed or has no mark.
func (m *MarketData) MarkPrice(ctx context.Context, asset string) (float64, bool, error) {
	m.mu.RLock()
	quote, streamed := m.marks[asset]
	maxAge := m.markMaxAge
	m.mu.RUnlock()
	if streamed && m.now().Sub(quote.at) < maxAge {
		return quote.price, true, nil
	}
	perp, ok, err := m.PerpContext(ctx, asset)
	if err != nil {
		return 0, false, err
	}
	if !ok || !(perp.MarkPrice > 0) || math.IsInf(perp.MarkPrice, 1) {
		return 0, false, nil
	}
	return perp.MarkPrice, true, nil
}

func (m *MarketData) handleMessage(msg ws.Message) {
	if msg.Channel != "activeAssetCtx" {
		return
	}
	var data map[string]any
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		m.log.Debug("activeAssetCtx decode error", zap.Error(err))
		return
	}
	coin, mark, ok := parseActiveAssetCtx(data)
	if !ok {
		return
	}
	m.mu.Lock()
	m.marks[coin] = markQuote{price: mark, at: m.now()}
	m.mu.Unlock()
}
