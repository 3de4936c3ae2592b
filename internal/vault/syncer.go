package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"duncan/internal/hedge"
	"duncan/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const setAssetsInUseFn = "setAssetsInUse"

var ErrInvalidAddress = errors.New("invalid vault address")

// PositionSource reads the hedge position backing a vault.
type PositionSource interface {
	FetchPosition(ctx context.Context, symbol string) (hedge.Position, bool, error)
}

type SyncResult struct {
	Vault string      `json:"vault"`
	Fn    string      `json:"fn"`
	Args  []string    `json:"args"`
	Tx    common.Hash `json:"-"`
}

// Syncer reports the margin of a vault's short position to the vault
// contract as its assets in use.
type Syncer struct {
	binder    Binder
	positions PositionSource
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewSyncer(binder Binder, positions PositionSource, log *zap.Logger, m *metrics.Metrics) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Syncer{binder: binder, positions: positions, log: log, metrics: m}
}

// Sync computes assets in use for the vault at address and, unless simulate
// is set, writes it on chain.
func (s *Syncer) Sync(ctx context.Context, address string, simulate bool) (SyncResult, error) {
	result, err := s.sync(ctx, address, simulate)
	if err != nil {
		s.metrics.VaultSyncsFailed.Inc()
		return SyncResult{}, err
	}
	s.metrics.VaultSyncs.Inc()
	return result, nil
}

func (s *Syncer) sync(ctx context.Context, address string, simulate bool) (SyncResult, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return SyncResult{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	contract, err := s.binder.Bind(common.HexToAddress(address))
	if err != nil {
		return SyncResult{}, err
	}
	shareSymbol, err := contract.Symbol(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	symbol := StripShareSymbol(shareSymbol)
	decimals, err := contract.Decimals(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	pos, ok, err := s.positions.FetchPosition(ctx, symbol)
	if err != nil {
		return SyncResult{}, err
	}
	if !ok {
		return SyncResult{}, fmt.Errorf("%w for %s", hedge.ErrPositionNotFound, symbol)
	}
	amount := AssetsInUse(pos.Margin, decimals)
	result := SyncResult{Vault: address, Fn: setAssetsInUseFn, Args: []string{amount.String()}}
	if simulate {
		s.log.Info("vault sync simulated", zap.String("vault", address), zap.String("symbol", symbol), zap.String("assets_in_use", amount.String()))
		return result, nil
	}
	tx, err := contract.SetAssetsInUse(ctx, amount)
	if err != nil {
		return SyncResult{}, err
	}
	result.Tx = tx
	s.log.Info("vault synced",
		zap.String("vault", address),
		zap.String("symbol", symbol),
		zap.String("assets_in_use", amount.String()),
		zap.String("tx", tx.Hex()),
	)
	return result, nil
}
