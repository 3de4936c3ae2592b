package alerts

import (
	"errors"
	"strings"
	"testing"

	"duncan/internal/hedge"
	"duncan/internal/vault"
)

func TestRebalanceMessage(t *testing.T) {
	report := hedge.Report{
		Symbol:    "ETH",
		Direction: hedge.IncreaseLeverage,
		Leverage:  hedge.LeverageReport{Current: 10, Target: 12},
		Margin:    &hedge.StepReport{Current: 1000, Target: 833.33, Change: 166, Side: "remove"},
		Notional: &hedge.StepReport{
			Current: 10000, Target: 11992, Change: 1992, Side: "sell",
			Order: &hedge.OrderResult{Size: 0.996, FillPrice: 2000, OrderID: "42"},
		},
	}
	msg := RebalanceMessage("mainnet", "ETH", report, nil)
	for _, want := range []string{"[mainnet] rebalance ETH", "10.00x -> 12.00x", "margin remove 166.00", "notional sell 1992.00", "order 42 filled 0.996 @ 2000"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in message:\n%s", want, msg)
		}
	}
}

func TestRebalanceMessageOutcomes(t *testing.T) {
	if msg := RebalanceMessage("testnet", "BTC", hedge.Report{}, hedge.ErrAlreadyBalanced); !strings.HasSuffix(msg, "already balanced") {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg := RebalanceMessage("testnet", "BTC", hedge.Report{}, hedge.ErrMinTradeSize); !strings.Contains(msg, "skipped") {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg := RebalanceMessage("testnet", "BTC", hedge.Report{}, errors.New("boom")); !strings.Contains(msg, "FAILED\nboom") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestVaultSyncMessage(t *testing.T) {
	msg := VaultSyncMessage("0xabc", vault.SyncResult{Vault: "0xabc", Fn: "setAssetsInUse", Args: []string{"12345600"}}, nil)
	if !strings.Contains(msg, "setAssetsInUse(12345600)") {
		t.Fatalf("unexpected message %q", msg)
	}
	msg = VaultSyncMessage("0xabc", vault.SyncResult{}, errors.New("no short position for ETH"))
	if !strings.Contains(msg, "FAILED") {
		t.Fatalf("unexpected message %q", msg)
	}
}
