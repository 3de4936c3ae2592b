package scheduler

import (
	"context"
	"errors"
	"fmt"

	"duncan/internal/alerts"
	"duncan/internal/hedge"
	"duncan/internal/journal"
	"duncan/internal/vault"
)

type Rebalancer interface {
	Rebalance(ctx context.Context, symbol string) (hedge.Report, error)
}

type VaultSyncer interface {
	Sync(ctx context.Context, address string, simulate bool) (vault.SyncResult, error)
}

type Recorder interface {
	Enqueue(entry journal.Entry)
}

type Notifier interface {
	Notify(ctx context.Context, message string)
}

// RebalanceJob restores the opening leverage of one symbol. A position that
// is already balanced or under the minimum trade size is not a failure.
type RebalanceJob struct {
	Network  string
	Symbol   string
	Manager  Rebalancer
	Journal  Recorder
	Notifier Notifier
}

func (j *RebalanceJob) Name() string {
	return fmt.Sprintf("rebalance:%s:%s", j.Network, j.Symbol)
}

func (j *RebalanceJob) Run(ctx context.Context) error {
	report, err := j.Manager.Rebalance(ctx, j.Symbol)
	var payload any
	if err == nil {
		payload = report
	}
	if j.Journal != nil {
		j.Journal.Enqueue(journal.NewEntry(journal.KindRebalance, j.Network, j.Symbol, payload, err))
	}
	if errors.Is(err, hedge.ErrMinTradeSize) {
		return nil
	}
	if j.Notifier != nil {
		j.Notifier.Notify(ctx, alerts.RebalanceMessage(j.Network, j.Symbol, report, err))
	}
	return err
}

type VaultSyncJob struct {
	Address  string
	Syncer   VaultSyncer
	Journal  Recorder
	Notifier Notifier
}

func (j *VaultSyncJob) Name() string {
	return "vault-sync:" + j.Address
}

func (j *VaultSyncJob) Run(ctx context.Context) error {
	result, err := j.Syncer.Sync(ctx, j.Address, false)
	var payload any
	if err == nil {
		payload = result
	}
	if j.Journal != nil {
		j.Journal.Enqueue(journal.NewEntry(journal.KindVaultSync, "mainnet", j.Address, payload, err))
	}
	if j.Notifier != nil {
		j.Notifier.Notify(ctx, alerts.VaultSyncMessage(j.Address, result, err))
	}
	return err
}
