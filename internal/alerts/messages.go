package alerts

import (
	"errors"
	"fmt"
	"strings"

	"duncan/internal/hedge"
	"duncan/internal/vault"
)

func RebalanceMessage(network, symbol string, report hedge.Report, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] rebalance %s: ", network, symbol)
	switch {
	case errors.Is(err, hedge.ErrAlreadyBalanced):
		b.WriteString("already balanced")
		return b.String()
	case errors.Is(err, hedge.ErrMinTradeSize):
		b.WriteString("skipped, change under minimum trade size")
		return b.String()
	case err != nil:
		fmt.Fprintf(&b, "FAILED\n%v", err)
		return b.String()
	}
	fmt.Fprintf(&b, "%s %.2fx -> %.2fx", report.Direction, report.Leverage.Current, report.Leverage.Target)
	if report.Margin != nil {
		fmt.Fprintf(&b, "\nmargin %s %.2f (%.2f -> %.2f)", report.Margin.Side, report.Margin.Change, report.Margin.Current, report.Margin.Target)
	}
	if report.Notional != nil {
		fmt.Fprintf(&b, "\nnotional %s %.2f (%.2f -> %.2f)", report.Notional.Side, report.Notional.Change, report.Notional.Current, report.Notional.Target)
		if order := report.Notional.Order; order != nil {
			fmt.Fprintf(&b, "\norder %s filled %g @ %g", order.OrderID, order.Size, order.FillPrice)
		}
	}
	return b.String()
}

func VaultSyncMessage(address string, result vault.SyncResult, err error) string {
	if err != nil {
		return fmt.Sprintf("vault %s sync FAILED\n%v", address, err)
	}
	return fmt.Sprintf("vault %s %s(%s) tx %s", result.Vault, result.Fn, strings.Join(result.Args, ", "), result.Tx.Hex())
}
