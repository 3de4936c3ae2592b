package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"duncan/internal/app"
	"duncan/internal/hedge"
	"duncan/internal/vault"
)

// operations is what commands need from one network.
type operations interface {
	Balance(ctx context.Context) (hedge.Balance, error)
	Price(ctx context.Context, symbol string) (float64, error)
	Info(ctx context.Context, symbol string) (hedge.Position, error)
	Increase(ctx context.Context, symbol string, amount float64) (hedge.OrderResult, error)
	Decrease(ctx context.Context, symbol string, amount float64) (hedge.OrderResult, error)
	AddMargin(ctx context.Context, symbol string, amount float64) (hedge.Position, error)
	RemoveMargin(ctx context.Context, symbol string, amount float64) (hedge.Position, error)
	Rebalance(ctx context.Context, symbol string) (hedge.Report, error)
	SyncVault(ctx context.Context, address string, simulate bool) (vault.SyncResult, error)
}

type networkOperations struct {
	*hedge.Manager
	app     *app.App
	testnet bool
}

func newOperations(a *app.App, testnet bool) operations {
	return &networkOperations{Manager: a.Manager(testnet), app: a, testnet: testnet}
}

func (o *networkOperations) Rebalance(ctx context.Context, symbol string) (hedge.Report, error) {
	return o.app.Rebalance(ctx, o.testnet, symbol)
}

func (o *networkOperations) SyncVault(ctx context.Context, address string, simulate bool) (vault.SyncResult, error) {
	return o.app.SyncVault(ctx, address, simulate)
}

type command struct {
	name string
	args []string
	help string
	run  func(ctx context.Context, ops operations, args []string) (any, error)
}

func (c command) usage() string {
	parts := append([]string{c.name}, c.args...)
	return strings.Join(parts, " ")
}

var commands = []command{
	{
		name: "balance",
		help: "free balance available to trade",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			if err := wantArgs(args, 0); err != nil {
				return nil, err
			}
			return ops.Balance(ctx)
		},
	},
	{
		name: "price",
		args: []string{"<SYMBOL>"},
		help: "current mark price",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			if err := wantArgs(args, 1); err != nil {
				return nil, err
			}
			price, err := ops.Price(ctx, args[0])
			if err != nil {
				return nil, err
			}
			return map[string]float64{"price": price}, nil
		},
	},
	{
		name: "info",
		args: []string{"<SYMBOL>"},
		help: "short position details",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			if err := wantArgs(args, 1); err != nil {
				return nil, err
			}
			return ops.Info(ctx, args[0])
		},
	},
	{
		name: "decrease",
		args: []string{"<SYMBOL>", "<AMOUNT>"},
		help: "buy back whole asset units, reduce-only",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			symbol, amount, err := symbolAmount(args)
			if err != nil {
				return nil, err
			}
			return ops.Decrease(ctx, symbol, amount)
		},
	},
	{
		name: "increase",
		args: []string{"<SYMBOL>", "<AMOUNT>"},
		help: "sell whole asset units into the short",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			symbol, amount, err := symbolAmount(args)
			if err != nil {
				return nil, err
			}
			return ops.Increase(ctx, symbol, amount)
		},
	},
	{
		name: "margin-add",
		args: []string{"<SYMBOL>", "<AMOUNT>"},
		help: "move quote balance into the position margin",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			symbol, amount, err := symbolAmount(args)
			if err != nil {
				return nil, err
			}
			return ops.AddMargin(ctx, symbol, amount)
		},
	},
	{
		name: "margin-remove",
		args: []string{"<SYMBOL>", "<AMOUNT>"},
		help: "release margin from the position",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			symbol, amount, err := symbolAmount(args)
			if err != nil {
				return nil, err
			}
			return ops.RemoveMargin(ctx, symbol, amount)
		},
	},
	{
		name: "rebalance",
		args: []string{"<SYMBOL>"},
		help: "restore the opening leverage",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			if err := wantArgs(args, 1); err != nil {
				return nil, err
			}
			return ops.Rebalance(ctx, args[0])
		},
	},
	{
		name: "vault-sync",
		args: []string{"[--simulate]", "<ADDRESS>"},
		help: "write a vault's assets in use (mainnet)",
		run: func(ctx context.Context, ops operations, args []string) (any, error) {
			fs := flag.NewFlagSet("vault-sync", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			simulate := fs.Bool("simulate", false, "compute without writing")
			if err := fs.Parse(args); err != nil {
				return nil, err
			}
			if err := wantArgs(fs.Args(), 1); err != nil {
				return nil, err
			}
			return ops.SyncVault(ctx, fs.Arg(0), *simulate)
		},
	},
	{
		name: "serve",
		help: "run the http api and scheduled jobs",
	},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func symbolAmount(args []string) (string, float64, error) {
	if err := wantArgs(args, 2); err != nil {
		return "", 0, err
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid amount %q", args[1])
	}
	return args[0], amount, nil
}

// writeResult prints result, or {"error": msg} on failure, as indented JSON.
func writeResult(w io.Writer, result any, err error) {
	if err != nil {
		result = map[string]string{"error": err.Error()}
	}
	out, mErr := json.MarshalIndent(result, "", "  ")
	if mErr != nil {
		out, _ = json.MarshalIndent(map[string]string{"error": mErr.Error()}, "", "  ")
	}
	fmt.Fprintln(w, string(out))
}
